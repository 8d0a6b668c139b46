package pipeline

import (
	"testing"

	"go-design-analyzer/pkg/models"
)

func testBudgetTable() models.BudgetTable {
	return models.BudgetTable{
		"test-model": {
			Stage1Ceiling: 8000,
			Stage2Ceiling: 8000,
			Stage3Ceiling: 4000,
			Buffer:        2000,
		},
	}
}

func TestTokenBudgetTracker_RecordAndRemaining(t *testing.T) {
	tracker := NewTokenBudgetTracker(testBudgetTable())

	if got := tracker.Remaining("test-model", 1); got != 8000 {
		t.Errorf("fresh tracker: expected 8000 remaining at stage 1, got %d", got)
	}

	tracker.Record("test-model", 3000)
	if got := tracker.Remaining("test-model", 1); got != 5000 {
		t.Errorf("expected 5000 remaining after spending 3000, got %d", got)
	}
	if got := tracker.TotalUsed(); got != 3000 {
		t.Errorf("expected total used 3000, got %d", got)
	}

	// The same spend counts against every stage ceiling for that model
	if got := tracker.Remaining("test-model", 2); got != 5000 {
		t.Errorf("expected 5000 remaining at stage 2, got %d", got)
	}
}

func TestTokenBudgetTracker_OverrunGoesNegative(t *testing.T) {
	tracker := NewTokenBudgetTracker(testBudgetTable())

	// A stage that overshoots its ceiling leaves the next stage with
	// negative headroom; the orchestrator refuses to run anything whose
	// floor is not met.
	tracker.Record("test-model", 9000)
	if got := tracker.Remaining("test-model", 2); got != -1000 {
		t.Errorf("expected -1000 remaining after overrun, got %d", got)
	}
}

func TestTokenBudgetTracker_IgnoresNonPositiveUsage(t *testing.T) {
	tracker := NewTokenBudgetTracker(testBudgetTable())
	tracker.Record("test-model", 0)
	tracker.Record("test-model", -50)

	if got := tracker.TotalUsed(); got != 0 {
		t.Errorf("non-positive usage must be ignored, got total %d", got)
	}
}

func TestTokenBudgetTracker_UnknownModelHasNoAllowance(t *testing.T) {
	tracker := NewTokenBudgetTracker(testBudgetTable())
	if got := tracker.Remaining("unknown-model", 1); got != 0 {
		t.Errorf("unknown model should have 0 remaining, got %d", got)
	}
}

func TestTokenBudgetTracker_PerModelAccounting(t *testing.T) {
	table := testBudgetTable()
	table["other-model"] = models.TokenBudget{
		Stage1Ceiling: 1000, Stage2Ceiling: 1000, Stage3Ceiling: 4000, Buffer: 100,
	}
	tracker := NewTokenBudgetTracker(table)

	tracker.Record("test-model", 7000)
	if got := tracker.Remaining("other-model", 1); got != 1000 {
		t.Errorf("one model's spend must not count against another, got %d", got)
	}
	if got := tracker.TotalUsed(); got != 7000 {
		t.Errorf("expected total used 7000, got %d", got)
	}
}

func TestTokenBudgetTracker_TotalRemainingNeverNegative(t *testing.T) {
	tracker := NewTokenBudgetTracker(testBudgetTable())
	tracker.Record("test-model", 50000)
	if got := tracker.TotalRemaining(); got != 0 {
		t.Errorf("total remaining must clamp at 0, got %d", got)
	}
}

func TestRunIsolation(t *testing.T) {
	table := testBudgetTable()
	first := NewRun("img-1", "https://example.com/a.png", "", table)
	second := NewRun("img-2", "https://example.com/b.png", "", table)

	first.Tracker.Record("test-model", 9999)

	if got := second.Tracker.TotalUsed(); got != 0 {
		t.Errorf("runs must not share budget state, got %d", got)
	}
	if first.ID == second.ID {
		t.Error("runs must have distinct IDs")
	}
	if len(second.History()) != 0 {
		t.Error("fresh run must have empty history")
	}
}

func TestRun_AppendSetsTimestampAndDegraded(t *testing.T) {
	run := NewRun("img", "ref", "", testBudgetTable())

	run.Append(models.StageResult{StageName: StageVisualAnalysis, Success: true})
	if run.History()[0].Timestamp.IsZero() {
		t.Error("append must stamp entries that carry no timestamp")
	}
	if run.Degraded() {
		t.Error("run must not be degraded before any fallback")
	}

	run.Append(models.StageResult{StageName: StageSynthesis, Success: true, Fallback: true})
	if !run.Degraded() {
		t.Error("a fallback entry must mark the run degraded")
	}
}

func TestRun_HistoryIsACopy(t *testing.T) {
	run := NewRun("img", "ref", "", testBudgetTable())
	run.Append(models.StageResult{StageName: StageVisualAnalysis, Success: true})

	history := run.History()
	history[0].StageName = "tampered"

	if run.History()[0].StageName != StageVisualAnalysis {
		t.Error("mutating a returned history must not affect the run")
	}
}
