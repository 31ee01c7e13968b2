// Package tavily implements lookup.Searcher with the Tavily search API.
package tavily

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

	"github.com/opensitee/ingredientcheck/internal/domain"
)

const defaultAPIURL = "https://api.tavily.com/search"

type request struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type response struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

type Searcher struct {
	apiKey     string
	maxResults int
	client     *http.Client
	baseURL    string
}

func NewSearcher(apiKey string, maxResults int) *Searcher {
	return &Searcher{
		apiKey:     apiKey,
		maxResults: maxResults,
		client:     &http.Client{},
		baseURL:    defaultAPIURL,
	}
}

func (s *Searcher) Search(ctx context.Context, query string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("%w: tavily api key is not configured", domain.ErrAuthentication)
	}

	payload, err := json.Marshal(request{
		Query:         query,
		SearchDepth:   "basic",
		MaxResults:    s.maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: failed to call tavily: %v", domain.ErrServiceUnavailable, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close tavily response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: tavily returned status %d: %s", classifyStatus(resp.StatusCode), resp.StatusCode, errBody)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: failed to decode tavily response: %v", domain.ErrServiceUnavailable, err)
	}
	return format(body), nil
}

// classifyStatus maps Tavily HTTP statuses onto the failure taxonomy.
// 432 and 433 are Tavily's plan and pay-as-you-go limit codes.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrAuthentication
	case code == http.StatusTooManyRequests || code == 432 || code == 433:
		return domain.ErrQuotaExceeded
	default:
		return domain.ErrServiceUnavailable
	}
}

func format(r response) string {
	var b strings.Builder
	if r.Answer != "" {
		b.WriteString("Answer: ")
		b.WriteString(r.Answer)
		b.WriteString("\n")
	}
	for i, res := range r.Results {
		fmt.Fprintf(&b, "\n[%d] %s (%s)\n%s\n", i+1, res.Title, res.URL, strings.TrimSpace(res.Content))
	}
	if b.Len() == 0 {
		return "No results found."
	}
	return b.String()
}
