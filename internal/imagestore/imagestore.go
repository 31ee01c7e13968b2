// Package imagestore holds uploaded images on disk for the lifetime of one
// analysis.
package imagestore

import (
	"context"
	"errors"
	"io"

	"github.com/opensitee/ingredientcheck/internal/domain"
)

var ErrNotFound = errors.New("image not found")

type ImageStore interface {
	Save(ctx context.Context, format domain.ImageFormat, r io.Reader) (domain.ImageHandle, error)
	Delete(ctx context.Context, h domain.ImageHandle) error
}
