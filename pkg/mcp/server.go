package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	srsconverter "github.com/eikowagenknecht/srs-converter-sub002/pkg"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/config"
)

type ConverterMCPServer struct {
	mcpServer *server.MCPServer
	cfg       *config.Config
	logger    *zap.SugaredLogger
}

// NewConverterMCPServer creates an MCP server exposing the converter tools.
// cfg supplies the defaults tool calls can override.
func NewConverterMCPServer(cfg *config.Config, logger *zap.SugaredLogger) *ConverterMCPServer {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := server.NewMCPServer(
		"srsconv MCP Server",
		srsconverter.Version,
		server.WithLogging(),
		server.WithRecovery(),
	)

	srv := &ConverterMCPServer{mcpServer: s, cfg: cfg, logger: logger}
	RegisterPingTool(s)
	RegisterInspectTool(s, srv.handlers())
	RegisterToUniversalTool(s, srv.handlers())
	RegisterToAnkiTool(s, srv.handlers())
	return srv
}

// ToolNames lists the registered tools.
func ToolNames() []string {
	return []string{"ping", "inspect_anki_package", "convert_anki_to_universal", "convert_universal_to_anki"}
}

// Start runs the stdio event loop.
func (s *ConverterMCPServer) Start() error {
	return server.ServeStdio(s.mcpServer)
}

// MCPRawServer exposes the raw mcp-go server (useful for additional configuration).
func (s *ConverterMCPServer) MCPRawServer() *server.MCPServer {
	return s.mcpServer
}

func (s *ConverterMCPServer) handlers() *toolHandlers {
	return &toolHandlers{cfg: s.cfg, logger: s.logger}
}
