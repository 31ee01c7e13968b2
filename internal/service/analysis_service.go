package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/opensitee/ingredientcheck/internal/agent"
	"github.com/opensitee/ingredientcheck/internal/annotate"
	"github.com/opensitee/ingredientcheck/internal/domain"
	"github.com/opensitee/ingredientcheck/internal/ocr"
	"github.com/opensitee/ingredientcheck/internal/prompt"
)

type Stage int

const (
	StageIdle Stage = iota
	StageExtracting
	StageComposing
	StageQuerying
	StageAnnotating
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageExtracting:
		return "extracting"
	case StageComposing:
		return "composing"
	case StageQuerying:
		return "querying"
	case StageAnnotating:
		return "annotating"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError reports the stage at which a pipeline run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("analysis failed while %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type AnalysisService struct {
	extractor ocr.Extractor
	agent     agent.Agent
	rater     annotate.Rater
	timeout   time.Duration
	slots     *semaphore.Weighted
	logger    *slog.Logger
}

func NewAnalysisService(
	extractor ocr.Extractor,
	agentClient agent.Agent,
	rater annotate.Rater,
	timeout time.Duration,
	maxConcurrent int64,
	logger *slog.Logger,
) *AnalysisService {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &AnalysisService{
		extractor: extractor,
		agent:     agentClient,
		rater:     rater,
		timeout:   timeout,
		slots:     semaphore.NewWeighted(maxConcurrent),
		logger:    logger,
	}
}

// Analyze runs one image through extraction, prompt composition, the agent
// and annotation. The caller keeps ownership of img.
func (s *AnalysisService) Analyze(ctx context.Context, img domain.ImageHandle, health string) (*domain.Result, error) {
	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	logger.Info("analysis started", "format", img.Format, "health_provided", prompt.ResolveHealth(health) != prompt.DefaultHealthContext)

	res, err := s.run(ctx, logger, requestID, img, health)
	if err != nil {
		var stageErr *StageError
		stage := StageIdle
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		logger.Error("analysis failed", "stage", stage.String(), "error", err, "elapsed", time.Since(start))
		return nil, err
	}

	logger.Info("analysis complete", "rating", int(res.Rating), "bytes", len(res.Text), "elapsed", time.Since(start))
	return res, nil
}

func (s *AnalysisService) run(ctx context.Context, logger *slog.Logger, requestID string, img domain.ImageHandle, health string) (*domain.Result, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, fail(ctx, StageIdle, err)
	}
	defer s.slots.Release(1)

	logger.Debug("stage", "stage", StageExtracting.String())
	text, err := s.extractor.Extract(ctx, img)
	if err != nil {
		return nil, fail(ctx, StageExtracting, err)
	}
	logger.Debug("text extracted", "chars", len(text))

	logger.Debug("stage", "stage", StageComposing.String())
	p := prompt.Compose(text, health)

	if err := ctx.Err(); err != nil {
		return nil, fail(ctx, StageQuerying, err)
	}
	logger.Debug("stage", "stage", StageQuerying.String())
	raw, err := s.agent.Run(ctx, p)
	if err != nil {
		return nil, fail(ctx, StageQuerying, err)
	}

	logger.Debug("stage", "stage", StageAnnotating.String())
	rating := s.rater.Rate()
	if !rating.Valid() {
		return nil, fail(ctx, StageAnnotating, fmt.Errorf("rating %d outside [%d, %d]", rating, domain.MinRating, domain.MaxRating))
	}

	return &domain.Result{
		RequestID: requestID,
		Rating:    rating,
		Text:      annotate.Annotate(raw, rating),
	}, nil
}

// fail wraps err as a StageError. A run that hit its deadline reports
// ErrTimeout whatever the backend made of the expired context.
func fail(ctx context.Context, stage Stage, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return &StageError{Stage: stage, Err: err}
}
