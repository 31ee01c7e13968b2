// Package app builds the analysis pipeline from configuration.
package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/opensitee/ingredientcheck/internal/agent"
	claudeagent "github.com/opensitee/ingredientcheck/internal/agent/claude"
	ollamaagent "github.com/opensitee/ingredientcheck/internal/agent/ollama"
	"github.com/opensitee/ingredientcheck/internal/annotate"
	"github.com/opensitee/ingredientcheck/internal/config"
	"github.com/opensitee/ingredientcheck/internal/lookup"
	"github.com/opensitee/ingredientcheck/internal/lookup/tavily"
	"github.com/opensitee/ingredientcheck/internal/lookup/wiki"
	"github.com/opensitee/ingredientcheck/internal/ocr"
	ocrcli "github.com/opensitee/ingredientcheck/internal/ocr/cli"
	"github.com/opensitee/ingredientcheck/internal/ocr/tesseract"
	"github.com/opensitee/ingredientcheck/internal/service"
)

func NewAnalysisService(cfg *config.Config, logger *slog.Logger) (*service.AnalysisService, error) {
	extractor := NewExtractor(cfg, logger)

	searcher := NewSearcher(cfg, logger)
	analyst, err := NewAgent(cfg, searcher, logger)
	if err != nil {
		return nil, err
	}

	return service.NewAnalysisService(
		extractor,
		analyst,
		annotate.RandomRater{},
		cfg.AnalysisTimeout,
		cfg.MaxConcurrentAnalyses,
		logger,
	), nil
}

func NewExtractor(cfg *config.Config, logger *slog.Logger) ocr.Extractor {
	switch cfg.OCRBackend {
	case "cli":
		logger.Info("using tesseract binary OCR backend", "path", cfg.TesseractPath, "language", cfg.OCRLanguage)
		return ocrcli.NewExtractor(cfg.TesseractPath, cfg.OCRLanguage, logger)
	default:
		logger.Info("using gosseract OCR backend", "language", cfg.OCRLanguage)
		return tesseract.NewExtractor(cfg.TessdataPrefix, strings.Split(cfg.OCRLanguage, "+"), logger)
	}
}

// NewSearcher returns nil when lookups are disabled.
func NewSearcher(cfg *config.Config, logger *slog.Logger) lookup.Searcher {
	switch cfg.LookupBackend {
	case "tavily":
		logger.Info("using Tavily lookup backend", "max_results", cfg.TavilyMaxResults)
		return tavily.NewSearcher(cfg.Credentials.TavilyAPIKey, cfg.TavilyMaxResults)
	case "wikipedia":
		logger.Info("using Wikipedia lookup backend")
		return wiki.NewSearcher(logger)
	default:
		logger.Info("lookup tool disabled")
		return nil
	}
}

func NewAgent(cfg *config.Config, searcher lookup.Searcher, logger *slog.Logger) (agent.Agent, error) {
	switch cfg.AgentBackend {
	case "ollama":
		logger.Info("using Ollama agent backend", "model", cfg.OllamaModel)
		return ollamaagent.NewAgent(cfg.OllamaHost, cfg.OllamaModel, cfg.AgentMaxToolRounds, searcher, logger), nil
	default:
		logger.Info("using Claude agent backend", "model", cfg.ClaudeModel)
		a, err := claudeagent.NewAgent(cfg.Credentials.ClaudeAPIKey, cfg.ClaudeModel, cfg.ClaudeMaxTokens, cfg.AgentMaxToolRounds, searcher, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create claude agent: %w", err)
		}
		return a, nil
	}
}
