// Package annotate formats raw analysis text for display.
package annotate

import (
	"fmt"
	"strings"

	"github.com/opensitee/ingredientcheck/internal/domain"
)

// highlights are applied in order, each to every occurrence.
var highlights = []struct {
	term        string
	replacement string
}{
	{"preservatives", "**preservatives** ⚠️"},
	{"chemicals", "**chemicals** 🧪"},
	{"additives", "**additives** 🍭"},
	{"healthier alternatives", "🍏 **healthier alternatives** 🍎"},
}

const closingMessage = "✨ Stay healthy and enjoy your food! ✨"

// Banner is the heading placed before the analysis.
func Banner(r domain.Rating) string {
	return fmt.Sprintf("🌟 Rating: %d / 5 🌟\n\n", r)
}

// Closing is the block appended after the analysis.
func Closing(r domain.Rating) string {
	return fmt.Sprintf("\n\n🎉 Overall Rating: %d ⭐\n\n%s", r, closingMessage)
}

// Annotate prepends the rating banner, highlights risk terms (case-sensitive,
// all occurrences) and appends the closing block. Raw text is otherwise
// passed through untouched.
func Annotate(raw string, r domain.Rating) string {
	body := Highlight(raw)

	var b strings.Builder
	b.Grow(len(body) + 128)
	b.WriteString(Banner(r))
	b.WriteString(body)
	b.WriteString(Closing(r))
	return b.String()
}

// Highlight applies the term substitutions only.
func Highlight(raw string) string {
	for _, h := range highlights {
		raw = strings.ReplaceAll(raw, h.term, h.replacement)
	}
	return raw
}
