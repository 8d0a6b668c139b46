package pipeline

import (
	"time"

	"github.com/google/uuid"

	"go-design-analyzer/pkg/models"
)

// PipelineRun is the unit of pipeline state: one invocation, one tracker,
// one append-only history. A run is constructed per analysis and discarded
// after its history is folded into the final record, so concurrent runs can
// never observe each other's budget or stages.
type PipelineRun struct {
	ID          string
	ImageID     string
	ImageRef    string
	UserContext string
	Tracker     *TokenBudgetTracker

	history     []models.StageResult
	lastPercent float64
	degraded    bool
}

// NewRun creates a fresh run with its own tracker and empty history.
func NewRun(imageID, imageRef, userContext string, table models.BudgetTable) *PipelineRun {
	return &PipelineRun{
		ID:          uuid.NewString(),
		ImageID:     imageID,
		ImageRef:    imageRef,
		UserContext: userContext,
		Tracker:     NewTokenBudgetTracker(table),
	}
}

// Append adds one result to the audit trail. Entries are immutable once
// appended; there is no way to remove or rewrite them.
func (r *PipelineRun) Append(result models.StageResult) {
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}
	r.history = append(r.history, result)
	if result.Fallback {
		r.degraded = true
	}
}

// History returns a copy of the audit trail in append order.
func (r *PipelineRun) History() []models.StageResult {
	out := make([]models.StageResult, len(r.history))
	copy(out, r.history)
	return out
}

// Degraded reports whether any fallback substitution happened in this run.
func (r *PipelineRun) Degraded() bool {
	return r.degraded
}
