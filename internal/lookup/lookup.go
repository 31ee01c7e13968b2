// Package lookup provides the web search capability offered to the
// reasoning service as a tool.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Searcher answers a free-text query with a plain-text digest.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Tool metadata shared by every agent backend.
const (
	ToolName        = "web_search"
	ToolDescription = "Search the web for up-to-date information about a food ingredient, additive, or its health effects. Returns a short digest of relevant sources."
)

// ToolSchema is the JSON schema of the tool input.
var ToolSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "What to search for, e.g. \"sodium benzoate health effects\".",
		},
	},
	"required": []string{"query"},
}

// ToolInput is the decoded tool call arguments.
type ToolInput struct {
	Query string `json:"query"`
}

// ParseToolInput decodes raw tool arguments and requires a non-empty query.
func ParseToolInput(raw json.RawMessage) (ToolInput, error) {
	var in ToolInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return ToolInput{}, fmt.Errorf("invalid %s input: %w", ToolName, err)
	}
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return ToolInput{}, fmt.Errorf("invalid %s input: query is required", ToolName)
	}
	return in, nil
}
