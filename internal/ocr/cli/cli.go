// Package cli runs OCR by shelling out to the tesseract binary.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/opensitee/ingredientcheck/internal/domain"
	"github.com/opensitee/ingredientcheck/internal/ocr"
)

type Extractor struct {
	binary   string
	language string
	logger   *slog.Logger
	lookPath func(string) (string, error)
}

// NewExtractor accepts either a bare command name resolved on PATH or an
// absolute path to the tesseract executable.
func NewExtractor(binary, language string, logger *slog.Logger) *Extractor {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Extractor{
		binary:   binary,
		language: language,
		logger:   logger,
		lookPath: exec.LookPath,
	}
}

func (e *Extractor) Extract(ctx context.Context, img domain.ImageHandle) (string, error) {
	if _, err := ocr.Load(img); err != nil {
		return "", err
	}

	bin, err := e.lookPath(e.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, img.Path, "stdout", "-l", e.language)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: tesseract exited with code %d: %s",
				domain.ErrBackendUnavailable, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%w: run tesseract: %v", domain.ErrBackendUnavailable, err)
	}

	e.logger.Debug("tesseract command complete", "binary", bin, "chars", stdout.Len())
	return stdout.String(), nil
}
