// Package tesseract runs OCR in-process through libtesseract.
package tesseract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/otiai10/gosseract/v2"

	"github.com/opensitee/ingredientcheck/internal/domain"
	"github.com/opensitee/ingredientcheck/internal/ocr"
)

type Extractor struct {
	tessdataPrefix string
	languages      []string
	logger         *slog.Logger
}

// NewExtractor configures the engine resources once; the prefix may be empty
// to use libtesseract's compiled-in tessdata location.
func NewExtractor(tessdataPrefix string, languages []string, logger *slog.Logger) *Extractor {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Extractor{
		tessdataPrefix: tessdataPrefix,
		languages:      languages,
		logger:         logger,
	}
}

// Extract runs a single full-page pass. gosseract clients are not safe for
// concurrent use, so each call gets its own.
func (e *Extractor) Extract(ctx context.Context, img domain.ImageHandle) (string, error) {
	data, err := ocr.Load(img)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer func() {
		if err := client.Close(); err != nil {
			e.logger.Error("failed to close tesseract client", "error", err)
		}
	}()

	if e.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.tessdataPrefix); err != nil {
			return "", fmt.Errorf("%w: set tessdata prefix: %v", domain.ErrBackendUnavailable, err)
		}
	}
	if err := client.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("%w: set language: %v", domain.ErrBackendUnavailable, err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	e.logger.Debug("tesseract pass complete", "chars", len(text), "version", gosseract.Version())
	return text, nil
}
