package local

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/opensitee/ingredientcheck/internal/domain"
	"github.com/opensitee/ingredientcheck/internal/imagestore"
)

type Store struct {
	basePath string
}

func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

func (s *Store) Save(ctx context.Context, format domain.ImageFormat, r io.Reader) (domain.ImageHandle, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImageHandle{}, err
	}

	filename := uuid.NewString() + formatToExt(format)
	filePath := filepath.Join(s.basePath, filename)

	f, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return domain.ImageHandle{}, fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close file after write error", "error", cerr)
		}
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after write error", "error", rerr)
		}
		return domain.ImageHandle{}, fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after close error", "error", rerr)
		}
		return domain.ImageHandle{}, fmt.Errorf("failed to close file: %w", err)
	}
	return domain.ImageHandle{Path: filePath, Format: format}, nil
}

func (s *Store) Delete(_ context.Context, h domain.ImageHandle) error {
	filePath, err := s.contained(h.Path)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return imagestore.ErrNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// contained resolves path and rejects anything outside basePath.
func (s *Store) contained(path string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}

func formatToExt(format domain.ImageFormat) string {
	switch format {
	case domain.FormatPNG:
		return ".png"
	default:
		return ".jpg"
	}
}
