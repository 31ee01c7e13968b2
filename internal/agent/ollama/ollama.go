// Package ollama implements agent.Agent against a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/opensitee/ingredientcheck/internal/agent"
	"github.com/opensitee/ingredientcheck/internal/domain"
	"github.com/opensitee/ingredientcheck/internal/lookup"
)

type message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
	ToolName  string     `json:"tool_name,omitempty"`
}

type toolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Tools    []tool    `json:"tools,omitempty"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message message `json:"message"`
	Error   string  `json:"error"`
}

type Agent struct {
	host      string
	model     string
	maxRounds int
	searcher  lookup.Searcher
	client    *http.Client
	logger    *slog.Logger
}

// NewAgent builds an Ollama agent. searcher may be nil, in which case no
// tool is declared.
func NewAgent(host, model string, maxRounds int, searcher lookup.Searcher, logger *slog.Logger) *Agent {
	if maxRounds <= 0 {
		maxRounds = agent.DefaultMaxToolRounds
	}
	return &Agent{
		host:      strings.TrimRight(host, "/"),
		model:     model,
		maxRounds: maxRounds,
		searcher:  searcher,
		client:    &http.Client{},
		logger:    logger,
	}
}

func (a *Agent) tools() []tool {
	if a.searcher == nil {
		return nil
	}
	return []tool{{
		Type: "function",
		Function: toolFunction{
			Name:        lookup.ToolName,
			Description: lookup.ToolDescription,
			Parameters:  lookup.ToolSchema,
		},
	}}
}

func (a *Agent) Run(ctx context.Context, p domain.AnalysisPrompt) (string, error) {
	messages := []message{
		{Role: "system", Content: p.System},
		{Role: "user", Content: p.User},
	}

	for round := 0; ; round++ {
		req := chatRequest{Model: a.model, Messages: messages}
		if round < a.maxRounds {
			req.Tools = a.tools()
		}

		reply, err := a.chat(ctx, req)
		if err != nil {
			return "", err
		}

		if len(reply.ToolCalls) == 0 || req.Tools == nil {
			if strings.TrimSpace(reply.Content) == "" {
				return "", fmt.Errorf("%w: ollama returned an empty response", domain.ErrServiceUnavailable)
			}
			a.logger.Debug("ollama answered", "rounds", round)
			return reply.Content, nil
		}

		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			a.logger.Debug("ollama requested tool", "tool", call.Function.Name, "round", round)
			res, err := agent.CallTool(ctx, a.searcher, call.Function.Name, call.Function.Arguments)
			if err != nil {
				return "", err
			}
			messages = append(messages, message{Role: "tool", Content: res.Content, ToolName: call.Function.Name})
		}
	}
}

func (a *Agent) chat(ctx context.Context, body chatRequest) (message, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return message{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return message{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return message{}, err
		}
		return message{}, fmt.Errorf("%w: failed to call ollama: %v", domain.ErrServiceUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close ollama response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return message{}, fmt.Errorf("%w: ollama returned status %d: %s", classifyStatus(resp.StatusCode), resp.StatusCode, errBody)
	}

	var respBody chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return message{}, fmt.Errorf("%w: failed to decode ollama response: %v", domain.ErrServiceUnavailable, err)
	}
	if respBody.Error != "" {
		return message{}, fmt.Errorf("%w: ollama: %s", domain.ErrServiceUnavailable, respBody.Error)
	}
	return respBody.Message, nil
}

// classifyStatus covers Ollama deployments behind an authenticating proxy.
func classifyStatus(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrAuthentication
	case http.StatusTooManyRequests:
		return domain.ErrQuotaExceeded
	default:
		return domain.ErrServiceUnavailable
	}
}
