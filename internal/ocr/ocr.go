// Package ocr turns ingredient-label photos into plain text.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/opensitee/ingredientcheck/internal/domain"
)

// Extractor transcribes the visible text of an image. Output is whatever the
// engine detects, noise included; an empty string is a valid result.
type Extractor interface {
	Extract(ctx context.Context, img domain.ImageHandle) (string, error)
}

// DecodeCheck verifies that data is a jpeg or png image and, when a format
// tag is given, that it matches. Failures wrap domain.ErrDecode.
func DecodeCheck(data []byte, format domain.ImageFormat) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty image", domain.ErrDecode)
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("%w: image has no pixels", domain.ErrDecode)
	}
	decoded := domain.ImageFormat(name)
	if decoded != domain.FormatJPEG && decoded != domain.FormatPNG {
		return fmt.Errorf("%w: unsupported format %q", domain.ErrDecode, name)
	}
	if format != "" && format != decoded {
		return fmt.Errorf("%w: declared %s but decoded %s", domain.ErrDecode, format, decoded)
	}
	return nil
}

// Load reads the image behind h and validates it with DecodeCheck.
func Load(h domain.ImageHandle) ([]byte, error) {
	data, err := h.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if err := DecodeCheck(data, h.Format); err != nil {
		return nil, err
	}
	return data, nil
}
