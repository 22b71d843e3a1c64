package mcp

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
)

// conversionReport is the JSON body every conversion tool returns.
type conversionReport struct {
	Status     issues.Status   `json:"status"`
	Counts     *srs.Counts     `json:"counts,omitempty"`
	MediaFiles int             `json:"mediaFiles,omitempty"`
	Output     string          `json:"output,omitempty"`
	Issues     []issues.Issue  `json:"issues"`
	Document   json.RawMessage `json:"document,omitempty"`
}

// merge folds the outcome of a later stage into the report.
func (r *conversionReport) merge(status issues.Status, list []issues.Issue) {
	r.Status = worseStatus(r.Status, status)
	r.Issues = append(r.Issues, list...)
}

func statusRank(s issues.Status) int {
	switch s {
	case issues.StatusFailure:
		return 2
	case issues.StatusPartial:
		return 1
	default:
		return 0
	}
}

func worseStatus(a, b issues.Status) issues.Status {
	if statusRank(b) > statusRank(a) {
		return b
	}
	return a
}

// stringArg returns a non-empty string argument.
func stringArg(request mcp.CallToolRequest, name string) (string, bool) {
	s, ok := request.Params.Arguments[name].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func hasExtension(path string) bool {
	return filepath.Ext(path) != ""
}

func jsonToolResult(v any) (*mcp.CallToolResult, error) {
	if r, ok := v.(conversionReport); ok && r.Issues == nil {
		r.Issues = []issues.Issue{}
		v = r
	}
	jsonResult, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize result to JSON: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonResult)), nil
}
