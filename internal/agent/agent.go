// Package agent sends a composed analysis prompt to a language-model service
// and returns its raw textual answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opensitee/ingredientcheck/internal/domain"
	"github.com/opensitee/ingredientcheck/internal/lookup"
)

// DefaultMaxToolRounds bounds the number of tool-use turns in one conversation.
const DefaultMaxToolRounds = 8

type Agent interface {
	Run(ctx context.Context, p domain.AnalysisPrompt) (string, error)
}

// ToolResult is what CallTool hands back to the model. IsError marks a
// result the model should treat as a failed call.
type ToolResult struct {
	Content string
	IsError bool
}

// CallTool runs a tool requested by the model. Malformed input and unknown
// tool names become error results for the model to recover from. A failing
// lookup aborts the conversation.
func CallTool(ctx context.Context, searcher lookup.Searcher, name string, input json.RawMessage) (ToolResult, error) {
	if searcher == nil || name != lookup.ToolName {
		return ToolResult{Content: fmt.Sprintf("unknown tool %q", name), IsError: true}, nil
	}

	in, err := lookup.ParseToolInput(input)
	if err != nil {
		return ToolResult{Content: err.Error(), IsError: true}, nil
	}

	out, err := searcher.Search(ctx, in.Query)
	if err != nil {
		return ToolResult{}, ClassifyLookupError(err)
	}
	return ToolResult{Content: out}, nil
}

// ClassifyLookupError keeps taxonomy and context errors as they are and
// folds anything else into ErrServiceUnavailable.
func ClassifyLookupError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, domain.ErrAuthentication), errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrServiceUnavailable):
		return fmt.Errorf("lookup failed: %w", err)
	default:
		return fmt.Errorf("%w: lookup failed: %v", domain.ErrServiceUnavailable, err)
	}
}
