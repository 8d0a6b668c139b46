package pipeline

import (
	"fmt"

	"go-design-analyzer/pkg/models"
)

// FailureKind identifies where in the pipeline a run failed.
type FailureKind string

const (
	FailureMetadataExtraction FailureKind = "metadata_extraction_failed"
	FailureTokenBudget        FailureKind = "token_budget_exceeded"
	FailureStageExecution     FailureKind = "stage_execution_failed"
	FailureConsolidation      FailureKind = "consolidation_failed"
)

// PipelineError is the typed failure surfaced by a run. It always names the
// failing stage and carries the partial history collected before the failure
// so callers can see exactly which stages completed.
type PipelineError struct {
	Kind    FailureKind
	Stage   string
	Reason  string
	Cause   error
	History []models.StageResult
}

// Error implements the error interface. The message always includes the
// stage and reason; a bare "analysis failed" is never acceptable output.
func (e *PipelineError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s at stage %q: %s", e.Kind, e.Stage, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap returns the underlying cause
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func newMetadataExtractionError(cause error, history []models.StageResult) *PipelineError {
	return &PipelineError{
		Kind:    FailureMetadataExtraction,
		Stage:   StageMetadataExtraction,
		Reason:  "vision call failed or returned unusable data",
		Cause:   cause,
		History: history,
	}
}

func newTokenBudgetError(stage string, remaining, floor int, history []models.StageResult) *PipelineError {
	return &PipelineError{
		Kind:    FailureTokenBudget,
		Stage:   stage,
		Reason:  fmt.Sprintf("remaining budget %d is below the stage floor %d", remaining, floor),
		History: history,
	}
}

func newStageExecutionError(stage string, cause error, history []models.StageResult) *PipelineError {
	return &PipelineError{
		Kind:    FailureStageExecution,
		Stage:   stage,
		Reason:  fmt.Sprintf("model call failed: %v", cause),
		Cause:   cause,
		History: history,
	}
}

func newConsolidationError(reason string, history []models.StageResult) *PipelineError {
	return &PipelineError{
		Kind:    FailureConsolidation,
		Stage:   "consolidation",
		Reason:  reason,
		History: history,
	}
}
