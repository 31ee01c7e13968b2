package annotate

import (
	"math/rand/v2"

	"github.com/opensitee/ingredientcheck/internal/domain"
)

// Rater supplies the star rating for one analysis.
type Rater interface {
	Rate() domain.Rating
}

// RandomRater draws a uniform rating per call, independent of the analysis.
// It is a placeholder for content-derived scoring.
type RandomRater struct{}

func (RandomRater) Rate() domain.Rating {
	return domain.MinRating + domain.Rating(rand.IntN(int(domain.MaxRating-domain.MinRating)+1))
}

// FixedRater always returns the same rating.
type FixedRater domain.Rating

func (f FixedRater) Rate() domain.Rating {
	return domain.Rating(f)
}
