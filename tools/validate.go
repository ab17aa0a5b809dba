package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/docsearch/mcp-server/internal/searchindex"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ValidateSearchIndexInput defines input for validate_search_index tool
type ValidateSearchIndexInput struct {
	SearchIndex string `json:"search_index" jsonschema:"search_index.js content (script or bare JSON) or a file path"`
}

// ValidateSearchIndexOutput defines output for validate_search_index tool
type ValidateSearchIndexOutput struct {
	Valid      bool                       `json:"valid"`
	Variable   string                     `json:"variable,omitempty"`
	Records    int                        `json:"records"`
	Violations []searchindex.Violation    `json:"violations"`
	Skipped    []searchindex.SkippedEntry `json:"skipped"`
	Summary    string                     `json:"summary"`
	Guidance   string                     `json:"guidance,omitempty"`
}

// isFilePath determines if a string is a file path rather than index content
func isFilePath(s string) bool {
	// Empty string is not a file path
	if s == "" {
		return false
	}

	// Content starts with JSON or a variable assignment (ignoring whitespace)
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return false
	}
	for _, kw := range []string{"var ", "let ", "const "} {
		if strings.HasPrefix(trimmed, kw) {
			return false
		}
	}
	if strings.Contains(s, "\n") {
		return false
	}

	// Unix absolute path
	if strings.HasPrefix(s, "/") {
		return true
	}

	// Relative path
	if strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") {
		return true
	}

	// Windows absolute path (C:\, D:\, etc.)
	if len(s) >= 3 && s[1] == ':' && (s[2] == '\\' || s[2] == '/') {
		return true
	}

	return strings.HasSuffix(s, ".js") || strings.HasSuffix(s, ".json")
}

// ValidateSearchIndex checks a search index against the schema and reports
// the records a lenient load would skip
func ValidateSearchIndex(ctx context.Context, req *mcp.CallToolRequest, input ValidateSearchIndexInput) (*mcp.CallToolResult, ValidateSearchIndexOutput, error) {
	output := ValidateSearchIndexOutput{
		Violations: []searchindex.Violation{},
		Skipped:    []searchindex.SkippedEntry{},
	}

	content := []byte(input.SearchIndex)
	if isFilePath(input.SearchIndex) {
		data, err := os.ReadFile(input.SearchIndex)
		if err != nil {
			var msg string
			if os.IsNotExist(err) {
				msg = fmt.Sprintf("Search index file not found: %s", input.SearchIndex)
			} else if os.IsPermission(err) {
				msg = fmt.Sprintf("Permission denied reading file: %s", input.SearchIndex)
			} else {
				msg = fmt.Sprintf("Failed to read search index file '%s': %s", input.SearchIndex, err.Error())
			}
			output.Violations = append(output.Violations, searchindex.Violation{Message: msg})
			output.Summary = "Search index file could not be read"
			output.Guidance = "Ensure the file path is correct and the file exists. Use an absolute path or a path relative to the current working directory."
			return nil, output, nil
		}
		content = data
	}

	violations, err := searchindex.Validate(content)
	if err != nil {
		return nil, output, fmt.Errorf("validation failed: %w", err)
	}
	if violations != nil {
		output.Violations = violations
	}

	// A lenient load still works when only some records are bad
	if c, report, err := searchindex.Parse(content); err == nil {
		output.Variable = c.Variable
		output.Records = c.Len()
		output.Skipped = report.Skipped
	}

	output.Valid = len(output.Violations) == 0
	switch {
	case output.Valid:
		output.Summary = fmt.Sprintf("Search index is valid (%d records)", output.Records)
	case output.Records > 0:
		output.Summary = fmt.Sprintf("Search index has %d schema violation(s); %d records load, %d would be skipped",
			len(output.Violations), output.Records, len(output.Skipped))
	default:
		output.Summary = fmt.Sprintf("Search index is invalid (%d schema violation(s))", len(output.Violations))
	}
	return nil, output, nil
}

// RegisterValidationTools registers search index validation tools
func RegisterValidationTools(server *mcp.Server) error {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "validate_search_index",
			Description: "Validate a documentation search index (search_index.js) against its schema. Accepts file content or a file path.",
		},
		ValidateSearchIndex,
	)
	return nil
}
