package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/anki"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/config"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/utils"
)

type toolHandlers struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
}

// RegisterPingTool registers the simple ping tool.
func RegisterPingTool(s *server.MCPServer) {
	pingTool := mcp.NewTool("ping",
		mcp.WithDescription("Responds with 'pong' to check if the srsconv MCP server is alive."),
	)
	s.AddTool(pingTool, pingHandler)
}

func pingHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("pong_srsconv"), nil
}

func withModeArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("error_handling", mcp.Description("Optional: 'best-effort' (default) keeps partial data, 'strict' fails on the first row-level error.")),
		mcp.WithBoolean("compact", mcp.Description("Optional: drop decks and note types no note uses.")),
	}
}

// RegisterInspectTool registers the inspect_anki_package tool.
func RegisterInspectTool(s *server.MCPServer, h *toolHandlers) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Validates an Anki .apkg file and reports its content counts and any issues found."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the .apkg file to inspect.")),
	}
	inspectTool := mcp.NewTool("inspect_anki_package", append(opts, withModeArgs()...)...)
	s.AddTool(inspectTool, h.inspect)
}

// RegisterToUniversalTool registers the convert_anki_to_universal tool.
func RegisterToUniversalTool(s *server.MCPServer, h *toolHandlers) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Converts an Anki .apkg file to the universal flashcard format. Without 'output' the converted document is returned inline as JSON."),
		mcp.WithString("input", mcp.Required(), mcp.Description("Path of the .apkg file to convert.")),
		mcp.WithString("output", mcp.Description("Optional: file to write the universal package to.")),
		mcp.WithString("format", mcp.Description("Optional: 'json', 'yaml' or 'bson'. Defaults to the output file extension.")),
	}
	toUniversalTool := mcp.NewTool("convert_anki_to_universal", append(opts, withModeArgs()...)...)
	s.AddTool(toUniversalTool, h.toUniversal)
}

// RegisterToAnkiTool registers the convert_universal_to_anki tool.
func RegisterToAnkiTool(s *server.MCPServer, h *toolHandlers) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Converts a universal flashcard package file to an Anki .apkg file."),
		mcp.WithString("input", mcp.Required(), mcp.Description("Path of the universal package (json, yaml or bson).")),
		mcp.WithString("output", mcp.Required(), mcp.Description("Path of the .apkg file to write.")),
		mcp.WithString("format", mcp.Description("Optional: format of the input. Defaults to the input file extension.")),
	}
	toAnkiTool := mcp.NewTool("convert_universal_to_anki", append(opts, withModeArgs()...)...)
	s.AddTool(toAnkiTool, h.toAnki)
}

func (h *toolHandlers) inspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, ok := stringArg(request, "path")
	if !ok {
		return mcp.NewToolResultError("'path' parameter is required and must be a non-empty string."), nil
	}
	opts, err := h.options(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	read := anki.ReadPackage(ctx, path, opts...)
	report := conversionReport{Status: read.Status, Issues: read.Issues}
	if read.HasData() {
		defer read.Data.Close()
		report.MediaFiles = len(read.Data.MediaFiles())

		conv := read.Data.ToUniversal(ctx, opts...)
		report.merge(conv.Status, conv.Issues)
		if conv.HasData() {
			counts := conv.Data.Counts()
			report.Counts = &counts
		}
	}

	h.logger.Debugw("Inspected package", "path", path, "status", report.Status)
	return jsonToolResult(report)
}

func (h *toolHandlers) toUniversal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, ok := stringArg(request, "input")
	if !ok {
		return mcp.NewToolResultError("'input' parameter is required and must be a non-empty string."), nil
	}
	output, _ := stringArg(request, "output")
	formatArg, _ := stringArg(request, "format")
	opts, err := h.options(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := anki.ConvertPackageFile(ctx, input, opts...)
	report := conversionReport{Status: res.Status, Issues: res.Issues}
	if !res.HasData() {
		return jsonToolResult(report)
	}
	counts := res.Data.Counts()
	report.Counts = &counts

	if output == "" {
		data, err := srs.Marshal(res.Data, srs.FormatJSON)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize universal package: %v", err)), nil
		}
		report.Document = data
		return jsonToolResult(report)
	}

	outPath, err := utils.ResolveAndEnsureOutputPath(output)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := srs.Format(formatArg)
	if format == "" {
		format = h.cfg.Format
	}
	if formatArg == "" && hasExtension(outPath) {
		format = ""
	}
	if err := srs.WriteFile(res.Data, outPath, format); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report.Output = outPath
	return jsonToolResult(report)
}

func (h *toolHandlers) toAnki(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, ok := stringArg(request, "input")
	if !ok {
		return mcp.NewToolResultError("'input' parameter is required and must be a non-empty string."), nil
	}
	output, ok := stringArg(request, "output")
	if !ok {
		return mcp.NewToolResultError("'output' parameter is required and must be a non-empty string."), nil
	}
	formatArg, _ := stringArg(request, "format")
	opts, err := h.options(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	u, err := srs.ReadFile(input, srs.Format(formatArg))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := anki.FromUniversal(ctx, u, opts...)
	report := conversionReport{Status: res.Status, Issues: res.Issues}
	if !res.HasData() {
		return jsonToolResult(report)
	}
	defer res.Data.Close()

	outPath, err := utils.ResolveAndEnsureOutputPath(output)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := res.Data.Save(outPath); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to write package: %v", err)), nil
	}
	counts := u.Counts()
	report.Counts = &counts
	report.Output = outPath
	return jsonToolResult(report)
}

// options builds conversion options from the server config and the
// optional error_handling and compact arguments.
func (h *toolHandlers) options(request mcp.CallToolRequest) ([]anki.Option, error) {
	mode := h.cfg.ErrorHandling
	if s, ok := stringArg(request, "error_handling"); ok {
		parsed, err := issues.ParseErrorHandling(s)
		if err != nil {
			return nil, err
		}
		mode = parsed
	}
	compact := h.cfg.Compact
	if b, ok := request.Params.Arguments["compact"].(bool); ok {
		compact = b
	}

	opts := []anki.Option{
		anki.WithErrorHandling(mode),
		anki.WithCompaction(compact),
		anki.WithLogger(h.logger),
	}
	if h.cfg.TempDir != "" {
		opts = append(opts, anki.WithTempDir(h.cfg.TempDir))
	}
	return opts, nil
}
