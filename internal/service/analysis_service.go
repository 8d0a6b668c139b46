package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "go-design-analyzer/internal/errors"
	"go-design-analyzer/internal/factory"
	"go-design-analyzer/internal/logger"
	"go-design-analyzer/internal/pipeline"
	"go-design-analyzer/internal/repository"
	"go-design-analyzer/pkg/models"
	"go-design-analyzer/pkg/validation"
)

// batchConcurrency bounds simultaneous pipeline runs in a batch. Each run
// owns private state, so the bound exists only to limit model-service load.
const batchConcurrency = 4

// AnalysisService drives the full analysis flow for one image: resolve the
// ref, execute the pipeline on a fresh run, consolidate, persist.
type AnalysisService interface {
	Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error)
	AnalyzeBatch(ctx context.Context, reqs []models.AnalyzeRequest) *models.AnalyzeBatchResponse
	GetRecord(ctx context.Context, imageID string) (*models.AnalysisRecord, error)
}

// analysisService implements AnalysisService
type analysisService struct {
	sources      *factory.SourceSelector
	orchestrator *pipeline.Orchestrator
	consolidator *pipeline.Consolidator
	store        repository.AnalysisStore
	validator    *validation.RefValidator
	budgets      models.BudgetTable
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	sources *factory.SourceSelector,
	orchestrator *pipeline.Orchestrator,
	consolidator *pipeline.Consolidator,
	store repository.AnalysisStore,
	validator *validation.RefValidator,
	budgets models.BudgetTable,
) AnalysisService {
	return &analysisService{
		sources:      sources,
		orchestrator: orchestrator,
		consolidator: consolidator,
		store:        store,
		validator:    validator,
		budgets:      budgets,
	}
}

// Analyze runs the pipeline end to end for one image. Every invocation gets
// its own PipelineRun with a fresh budget tracker and empty history.
func (s *analysisService) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	if err := s.validator.ValidateImageRef(req.ImageRef); err != nil {
		return nil, err
	}

	imageID := req.ImageID
	if imageID == "" {
		imageID = deriveImageID(req.ImageRef)
	}

	source, err := s.sources.ForRef(req.ImageRef)
	if err != nil {
		return nil, apperrors.NewValidationError("unresolvable image ref", err)
	}

	img, err := source.FetchImage(ctx, req.ImageRef)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to fetch image", err)
	}

	run := pipeline.NewRun(imageID, req.ImageRef, req.UserContext, s.budgets)
	log := logger.WithRun(run.ID).WithField("image_id", imageID)
	log.Info("Starting analysis pipeline")

	if err := s.orchestrator.Execute(ctx, run, img); err != nil {
		log.WithError(err).Error("Pipeline run failed")
		return nil, err
	}

	outcome, err := s.consolidator.Consolidate(run)
	if err != nil {
		log.WithError(err).Error("Consolidation failed")
		return nil, err
	}

	if err := s.store.SaveRecord(ctx, outcome.Record); err != nil {
		log.WithError(err).Error("Failed to persist analysis record")
		return nil, apperrors.NewInternalError("failed to persist analysis record", err)
	}

	s.orchestrator.EmitCompleted(ctx, run)

	for _, warning := range outcome.Warnings {
		log.WithField("warning", warning).Warn("Consolidation warning")
	}
	for _, fallback := range outcome.FallbacksApplied {
		log.WithField("fallback", fallback).Warn("Fallback applied")
	}
	log.WithFields(logrus.Fields{
		"tokens_used": outcome.Record.Metadata.TotalTokensUsed,
		"degraded":    outcome.Record.Metadata.DegradedAnalysis,
	}).Info("Analysis pipeline completed")

	return &models.AnalyzeResponse{
		Record:           outcome.Record,
		Warnings:         outcome.Warnings,
		FallbacksApplied: outcome.FallbacksApplied,
	}, nil
}

// AnalyzeBatch analyzes several images concurrently. Failures are reported
// per image; one bad image never fails the batch.
func (s *analysisService) AnalyzeBatch(ctx context.Context, reqs []models.AnalyzeRequest) *models.AnalyzeBatchResponse {
	results := make([]models.BatchResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, req := range reqs {
		g.Go(func() error {
			resp, err := s.Analyze(gctx, req)
			result := models.BatchResult{ImageRef: req.ImageRef}
			if err != nil {
				result.Error = err.Error()
				result.Stage = failingStage(err)
			} else {
				result.Response = resp
			}
			results[i] = result
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes completion.
	_ = g.Wait()

	return &models.AnalyzeBatchResponse{Results: results}
}

// GetRecord retrieves a previously persisted record
func (s *analysisService) GetRecord(ctx context.Context, imageID string) (*models.AnalysisRecord, error) {
	record, err := s.store.GetRecord(ctx, imageID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("no analysis record for image", err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load analysis record", err)
	}
	return record, nil
}

// deriveImageID produces a stable identifier from the ref so that repeated
// analyses of the same image upsert the same row.
func deriveImageID(imageRef string) string {
	sum := sha256.Sum256([]byte(imageRef))
	return hex.EncodeToString(sum[:16])
}

// failingStage extracts the stage name from a pipeline failure, if any.
func failingStage(err error) string {
	var pipeErr *pipeline.PipelineError
	if errors.As(err, &pipeErr) {
		return pipeErr.Stage
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Stage
	}
	return ""
}
