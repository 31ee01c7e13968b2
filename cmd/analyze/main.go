// Command analyze runs a single ingredient-label image through the pipeline
// and prints the annotated result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/opensitee/ingredientcheck/internal/app"
	"github.com/opensitee/ingredientcheck/internal/config"
	"github.com/opensitee/ingredientcheck/internal/domain"
	"github.com/opensitee/ingredientcheck/internal/logging"
	"github.com/opensitee/ingredientcheck/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	imagePath := fs.String("image", "", "path to a JPEG or PNG ingredient label")
	health := fs.String("health", "", "optional health condition to tailor the analysis")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *imagePath == "" {
		fs.Usage()
		return errors.New("-image is required")
	}

	img, err := imageHandle(*imagePath)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Logs go to stderr so stdout carries only the result.
	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile, "text")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer cleanup()

	svc, err := app.NewAnalysisService(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := svc.Analyze(ctx, img, *health)
	if err != nil {
		var stageErr *service.StageError
		if errors.As(err, &stageErr) {
			return fmt.Errorf("stage %s: %w", stageErr.Stage, stageErr.Err)
		}
		return err
	}

	fmt.Println(res.Text)
	return nil
}

// imageHandle sniffs the file header to pick the image format. Files that are
// not recognisably JPEG or PNG get no format, so the extractor's decode check
// rejects them at the extracting stage like any other bad upload.
func imageHandle(path string) (domain.ImageHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ImageHandle{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.ImageHandle{}, fmt.Errorf("failed to read image: %w", err)
	}

	format, _ := domain.FormatFromMIME(http.DetectContentType(header[:n]))
	return domain.ImageHandle{Path: path, Format: format}, nil
}
