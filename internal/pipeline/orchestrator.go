package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"go-design-analyzer/internal/logger"
	"go-design-analyzer/internal/storage"
	"go-design-analyzer/internal/vision"
	"go-design-analyzer/pkg/models"
)

// ProgressSink receives best-effort progress events. Implementations must
// never block the caller; a misbehaving sink cannot affect run correctness.
type ProgressSink interface {
	Publish(ctx context.Context, progress models.PipelineProgress)
}

// Orchestrator executes the fixed, ordered stage sequence for one run at a
// time. It consults the run's own budget tracker before every stage, appends
// exactly one StageResult per stage attempt, and emits one progress event
// per append. All fallback behavior is delegated to the configured policy.
type Orchestrator struct {
	extractor   *vision.MetadataExtractor
	visionModel string
	stages      []Stage
	policy      FallbackPolicy
	progress    ProgressSink
}

// NewOrchestrator creates an orchestrator over the given stage sequence.
func NewOrchestrator(extractor *vision.MetadataExtractor, visionModel string, stages []Stage, policy FallbackPolicy, progress ProgressSink) *Orchestrator {
	return &Orchestrator{
		extractor:   extractor,
		visionModel: visionModel,
		stages:      stages,
		policy:      policy,
		progress:    progress,
	}
}

// Execute runs the full stage chain against one run. On failure the returned
// error is always a *PipelineError naming the stage and carrying the partial
// history appended so far.
func (o *Orchestrator) Execute(ctx context.Context, run *PipelineRun, img *storage.ImageData) error {
	o.emit(ctx, run, StageMetadataExtraction, 5, "starting analysis")

	metadata, err := o.extractMetadata(ctx, run, img)
	if err != nil {
		return err
	}
	o.emit(ctx, run, StageMetadataExtraction, 20, "metadata extracted")

	input := StageInput{
		Image:       img,
		Metadata:    metadata,
		UserContext: run.UserContext,
	}

	for _, stage := range o.stages {
		if err := ctx.Err(); err != nil {
			run.Append(errorMarker(stage.Name, stage.ModelID, 0, "canceled: "+err.Error()))
			return newStageExecutionError(stage.Name, err, run.History())
		}

		remaining := run.Tracker.Remaining(stage.ModelID, stage.Index)
		if remaining < stage.MinFloor {
			return o.handleBudgetExhausted(ctx, run, stage, metadata, remaining)
		}

		maxTokens := stage.MaxTokens
		if remaining < maxTokens {
			maxTokens = remaining
		}

		input.Prior = run.History()
		output, tokens, err := stage.Run(ctx, input, maxTokens)
		run.Tracker.Record(stage.ModelID, tokens)

		if err != nil {
			run.Append(errorMarker(stage.Name, stage.ModelID, tokens, err.Error()))
			o.emit(ctx, run, stage.Name, run.lastPercent, "stage failed: "+stage.Name)
			return newStageExecutionError(stage.Name, err, run.History())
		}

		run.Append(models.StageResult{
			StageName:  stage.Name,
			ModelID:    stage.ModelID,
			Success:    true,
			TokenUsage: tokens,
			Output:     output,
		})
		o.emit(ctx, run, stage.Name, stage.Percent, "completed "+stage.Name)
	}

	return nil
}

// extractMetadata performs the single vision call of the run and applies the
// configured policy when it fails.
func (o *Orchestrator) extractMetadata(ctx context.Context, run *PipelineRun, img *storage.ImageData) (models.CompressedMetadata, error) {
	metadata, tokens, err := o.extractor.Extract(ctx, img)
	run.Tracker.Record(o.visionModel, tokens)

	if err != nil {
		if !o.policy.ContinueWithoutVision() {
			run.Append(errorMarker(StageMetadataExtraction, o.visionModel, tokens, err.Error()))
			return models.CompressedMetadata{}, newMetadataExtractionError(err, run.History())
		}

		logger.WithRun(run.ID).WithError(err).Warn("Vision call failed; continuing with default metadata")
		metadata = vision.DefaultMetadata()
		run.Append(models.StageResult{
			StageName:  StageMetadataExtraction,
			ModelID:    o.visionModel,
			Success:    true,
			TokenUsage: tokens,
			Output:     &metadata,
			Fallback:   true,
			Compressed: true,
		})
		return metadata, nil
	}

	run.Append(models.StageResult{
		StageName:  StageMetadataExtraction,
		ModelID:    o.visionModel,
		Success:    true,
		TokenUsage: tokens,
		Output:     &metadata,
		Compressed: true,
	})
	return metadata, nil
}

// handleBudgetExhausted applies the configured policy when the remaining
// budget is below a stage's floor: either synthesize locally or abort.
// Either way the stage itself is never invoked.
func (o *Orchestrator) handleBudgetExhausted(ctx context.Context, run *PipelineRun, stage Stage, metadata models.CompressedMetadata, remaining int) error {
	if o.policy.DegradeOnBudget() {
		logger.WithRun(run.ID).WithFields(logrus.Fields{
			"stage":     stage.Name,
			"remaining": remaining,
			"floor":     stage.MinFloor,
		}).Warn("Budget exhausted; synthesizing degraded result locally")

		run.Append(models.StageResult{
			StageName: StageSynthesis,
			ModelID:   "local",
			Success:   true,
			Output:    DegradedSynthesis(metadata, run.History()),
			Fallback:  true,
		})
		o.emit(ctx, run, StageSynthesis, stage.Percent, "degraded synthesis (budget exhausted)")
		return nil
	}

	budgetErr := newTokenBudgetError(stage.Name, remaining, stage.MinFloor, nil)
	run.Append(errorMarker(stage.Name, stage.ModelID, 0, budgetErr.Error()))
	o.emit(ctx, run, stage.Name, run.lastPercent, "aborted: "+budgetErr.Error())
	budgetErr.History = run.History()
	return budgetErr
}

// emit publishes one progress event, keeping percent monotonically
// non-decreasing within the run. Delivery is best effort.
func (o *Orchestrator) emit(ctx context.Context, run *PipelineRun, stage string, percent float64, message string) {
	if percent < run.lastPercent {
		percent = run.lastPercent
	}
	run.lastPercent = percent

	if o.progress == nil {
		return
	}
	o.progress.Publish(ctx, models.PipelineProgress{
		RunID:           run.ID,
		Stage:           stage,
		Percent:         percent,
		Message:         message,
		BudgetUsed:      run.Tracker.TotalUsed(),
		BudgetRemaining: run.Tracker.TotalRemaining(),
	})
}

// EmitCompleted publishes the terminal 100% event. Callers invoke it only
// after the record has been consolidated and persisted, so percent reaches
// 100 exactly when the run succeeded.
func (o *Orchestrator) EmitCompleted(ctx context.Context, run *PipelineRun) {
	o.emit(ctx, run, "complete", 100, "analysis complete")
}

func errorMarker(stage, modelID string, tokens int, message string) models.StageResult {
	return models.StageResult{
		StageName:  stage,
		ModelID:    modelID,
		Success:    false,
		TokenUsage: tokens,
		Error:      message,
	}
}
