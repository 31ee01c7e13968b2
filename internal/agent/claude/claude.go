// Package claude implements agent.Agent on the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/opensitee/ingredientcheck/internal/agent"
	"github.com/opensitee/ingredientcheck/internal/domain"
	"github.com/opensitee/ingredientcheck/internal/lookup"
)

type Agent struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	maxRounds int
	searcher  lookup.Searcher
	logger    *slog.Logger
}

// NewAgent builds a Claude agent. searcher may be nil, in which case no tool
// is declared. opts are passed through to the Anthropic client.
func NewAgent(apiKey, model string, maxTokens, maxRounds int, searcher lookup.Searcher, logger *slog.Logger, opts ...anthropic.ClientOption) (*Agent, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: claude api key is not configured", domain.ErrAuthentication)
	}
	if maxRounds <= 0 {
		maxRounds = agent.DefaultMaxToolRounds
	}
	return &Agent{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     model,
		maxTokens: maxTokens,
		maxRounds: maxRounds,
		searcher:  searcher,
		logger:    logger,
	}, nil
}

func (a *Agent) tools() []anthropic.ToolDefinition {
	if a.searcher == nil {
		return nil
	}
	return []anthropic.ToolDefinition{{
		Name:        lookup.ToolName,
		Description: lookup.ToolDescription,
		InputSchema: lookup.ToolSchema,
	}}
}

func (a *Agent) Run(ctx context.Context, p domain.AnalysisPrompt) (string, error) {
	messages := []anthropic.Message{anthropic.NewUserTextMessage(p.User)}
	tools := a.tools()

	for round := 0; ; round++ {
		req := anthropic.MessagesRequest{
			Model:     anthropic.Model(a.model),
			System:    p.System,
			Messages:  messages,
			MaxTokens: a.maxTokens,
			Tools:     tools,
		}
		if tools != nil && round >= a.maxRounds {
			req.ToolChoice = &anthropic.ToolChoice{Type: "none"}
		}

		resp, err := a.client.CreateMessages(ctx, req)
		if err != nil {
			return "", classify(ctx, err)
		}

		calls := toolUses(resp.Content)
		if resp.StopReason != anthropic.MessagesStopReasonToolUse || len(calls) == 0 {
			text := responseText(resp.Content)
			if strings.TrimSpace(text) == "" {
				return "", fmt.Errorf("%w: claude returned an empty response (stop reason %q)", domain.ErrServiceUnavailable, resp.StopReason)
			}
			a.logger.Debug("claude answered", "rounds", round, "input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)
			return text, nil
		}
		if round >= a.maxRounds {
			return "", fmt.Errorf("%w: claude kept requesting tools after %d rounds", domain.ErrServiceUnavailable, a.maxRounds)
		}

		messages = append(messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: resp.Content})

		var results []anthropic.MessageContent
		for _, call := range calls {
			a.logger.Debug("claude requested tool", "tool", call.Name, "round", round)
			res, err := agent.CallTool(ctx, a.searcher, call.Name, call.Input)
			if err != nil {
				return "", err
			}
			results = append(results, anthropic.NewToolResultsMessage(call.ID, res.Content, res.IsError).Content...)
		}
		messages = append(messages, anthropic.Message{Role: anthropic.RoleUser, Content: results})
	}
}

func toolUses(content []anthropic.MessageContent) []*anthropic.MessageContentToolUse {
	var calls []*anthropic.MessageContentToolUse
	for _, c := range content {
		if c.Type == anthropic.MessagesContentTypeToolUse && c.MessageContentToolUse != nil {
			calls = append(calls, c.MessageContentToolUse)
		}
	}
	return calls
}

func responseText(content []anthropic.MessageContent) string {
	var parts []string
	for _, c := range content {
		if c.Type == anthropic.MessagesContentTypeText {
			parts = append(parts, c.GetText())
		}
	}
	return strings.Join(parts, "\n")
}

// classify maps client errors onto the failure taxonomy.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("claude request aborted: %w", ctx.Err())
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case anthropic.ErrTypeAuthentication, anthropic.ErrTypePermission:
			return fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
		case anthropic.ErrTypeRateLimit:
			return fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, err)
		default:
			return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
		}
	}

	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.StatusCode {
		case 401, 403:
			return fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
		case 429:
			return fmt.Errorf("%w: %v", domain.ErrQuotaExceeded, err)
		}
	}

	return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
}
