package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensitee/ingredientcheck/internal/app"
	"github.com/opensitee/ingredientcheck/internal/config"
	"github.com/opensitee/ingredientcheck/internal/imagestore/local"
	"github.com/opensitee/ingredientcheck/internal/logging"
	"github.com/opensitee/ingredientcheck/internal/web"
	"github.com/opensitee/ingredientcheck/internal/web/templates"
)

const shutdownGrace = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	logger.Info("configuration loaded",
		"ocr_backend", cfg.OCRBackend,
		"agent_backend", cfg.AgentBackend,
		"lookup_backend", cfg.LookupBackend,
		"analysis_timeout", cfg.AnalysisTimeout,
		"max_concurrent_analyses", cfg.MaxConcurrentAnalyses,
		"credentials", cfg.Credentials,
	)

	svc, err := app.NewAnalysisService(cfg, logger)
	if err != nil {
		logger.Error("failed to build analysis pipeline", "error", err)
		return
	}

	images, err := local.NewStore(cfg.UploadDir)
	if err != nil {
		logger.Error("failed to initialize upload store", "error", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(svc, templates.FS, images, cfg.MaxUploadBytes, logger)
	if err := server.ListenAndServe(ctx, cfg.ListenAddr, cfg.AnalysisTimeout+30*time.Second, shutdownGrace); err != nil {
		logger.Error("server error", "error", err)
	}
}
