package wiki

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensitee/ingredientcheck/internal/domain"
)

func newTestSearcher(titles []string, suggestion string, searchErr error, summaries map[string]string) *Searcher {
	s := NewSearcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.search = func(string, int, bool) ([]string, string, error) {
		return titles, suggestion, searchErr
	}
	s.summary = func(title string, _ int) (string, error) {
		text, ok := summaries[title]
		if !ok {
			return "", errors.New("page is a disambiguation page")
		}
		return text, nil
	}
	return s
}

func TestSearchTopArticle(t *testing.T) {
	s := newTestSearcher(
		[]string{"Sodium benzoate", "Benzoic acid"}, "", nil,
		map[string]string{
			"Sodium benzoate": "Sodium benzoate is a preservative. ",
			"Benzoic acid":    "Benzoic acid is an acid.",
		},
	)

	out, err := s.Search(context.Background(), "sodium benzoate")
	require.NoError(t, err)
	assert.Equal(t, "Sodium benzoate: Sodium benzoate is a preservative.", out)
}

func TestSearchSkipsFailingSummary(t *testing.T) {
	s := newTestSearcher(
		[]string{"E211", "Sodium benzoate"}, "", nil,
		map[string]string{"Sodium benzoate": "A preservative."},
	)

	out, err := s.Search(context.Background(), "E211")
	require.NoError(t, err)
	assert.Equal(t, "Sodium benzoate: A preservative.", out)
}

func TestSearchUsesSuggestion(t *testing.T) {
	s := newTestSearcher(nil, "Aspartame", nil, map[string]string{"Aspartame": "A sweetener."})

	out, err := s.Search(context.Background(), "aspartam")
	require.NoError(t, err)
	assert.Equal(t, "Aspartame: A sweetener.", out)
}

func TestSearchNoResults(t *testing.T) {
	s := newTestSearcher(nil, "", nil, nil)

	out, err := s.Search(context.Background(), "qwzx")
	require.NoError(t, err)
	assert.Equal(t, "No results found.", out)
}

func TestSearchError(t *testing.T) {
	s := newTestSearcher(nil, "", errors.New("connection refused"), nil)

	_, err := s.Search(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestSearchContextDone(t *testing.T) {
	s := newTestSearcher(nil, "", nil, nil)
	block := make(chan struct{})
	defer close(block)
	s.search = func(string, int, bool) ([]string, string, error) {
		<-block
		return nil, "", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Search(ctx, "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
