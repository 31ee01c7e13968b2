// Package wiki implements lookup.Searcher over Wikipedia article summaries.
package wiki

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gowiki "github.com/trietmn/go-wiki"

	"github.com/opensitee/ingredientcheck/internal/domain"
)

const (
	maxArticleCount         = 3
	maxArticleSentenceCount = 5
)

type Searcher struct {
	logger  *slog.Logger
	search  func(query string, max int, suggestion bool) ([]string, string, error)
	summary func(title string, sentences int) (string, error)
}

func NewSearcher(logger *slog.Logger) *Searcher {
	return &Searcher{
		logger: logger,
		search: gowiki.Search,
		summary: func(title string, sentences int) (string, error) {
			return gowiki.Summary(title, sentences, -1, false, true)
		},
	}
}

type outcome struct {
	text string
	err  error
}

// Search returns the summary of the best matching article. go-wiki has no
// context support, so the lookup runs in its own goroutine and is abandoned
// when ctx is done.
func (s *Searcher) Search(ctx context.Context, query string) (string, error) {
	done := make(chan outcome, 1)
	go func() {
		text, err := s.lookup(query)
		done <- outcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case o := <-done:
		return o.text, o.err
	}
}

func (s *Searcher) lookup(query string) (string, error) {
	titles, suggestion, err := s.search(query, maxArticleCount, true)
	if err != nil {
		return "", fmt.Errorf("%w: wikipedia search failed: %v", domain.ErrServiceUnavailable, err)
	}
	if len(titles) == 0 && suggestion != "" {
		titles = []string{suggestion}
	}
	if len(titles) == 0 {
		return "No results found.", nil
	}

	for _, title := range titles {
		summary, err := s.summary(title, maxArticleSentenceCount)
		if err != nil {
			// Disambiguation pages fail here; try the next title.
			s.logger.Debug("wikipedia summary failed", "title", title, "error", err)
			continue
		}
		if summary = strings.TrimSpace(summary); summary != "" {
			return fmt.Sprintf("%s: %s", title, summary), nil
		}
	}
	return "No results found.", nil
}
