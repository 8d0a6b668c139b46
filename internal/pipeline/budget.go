package pipeline

import "go-design-analyzer/pkg/models"

// TokenBudgetTracker tracks token consumption for exactly one run. It is
// constructed fresh by NewRun and owned by that run end to end; nothing here
// is safe for sharing across runs, and nothing needs to be.
type TokenBudgetTracker struct {
	table        models.BudgetTable
	spentByModel map[string]int
	totalSpent   int
}

// NewTokenBudgetTracker creates a tracker over the given budget table.
func NewTokenBudgetTracker(table models.BudgetTable) *TokenBudgetTracker {
	return &TokenBudgetTracker{
		table:        table,
		spentByModel: make(map[string]int),
	}
}

// Record adds metered usage for a model. Negative usage is ignored.
func (t *TokenBudgetTracker) Record(modelID string, tokens int) {
	if tokens <= 0 {
		return
	}
	t.spentByModel[modelID] += tokens
	t.totalSpent += tokens
}

// Remaining returns the tokens left under the ceiling the given stage index
// consults for this model. Models absent from the table have no allowance.
func (t *TokenBudgetTracker) Remaining(modelID string, stage int) int {
	budget, ok := t.table.Lookup(modelID)
	if !ok {
		return 0
	}
	return budget.CeilingForStage(stage) - t.spentByModel[modelID]
}

// TotalUsed returns the tokens consumed so far across all models in this run.
func (t *TokenBudgetTracker) TotalUsed() int {
	return t.totalSpent
}

// TotalAllowance returns the full allowance the budget table grants this run.
func (t *TokenBudgetTracker) TotalAllowance() int {
	total := 0
	for _, budget := range t.table {
		total += budget.Total()
	}
	return total
}

// TotalRemaining returns the run-wide headroom, never negative.
func (t *TokenBudgetTracker) TotalRemaining() int {
	remaining := t.TotalAllowance() - t.totalSpent
	if remaining < 0 {
		return 0
	}
	return remaining
}
