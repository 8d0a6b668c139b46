package models

import "fmt"

// MinViableRunCost is the documented minimum token cost of a full pipeline
// run: the floor of the vision-informed stage plus the floor of the synthesis
// stage. A budget whose total does not clear this cannot complete any run.
const MinViableRunCost = 4500

// TokenBudget holds the per-stage token ceilings for one model identifier.
// All values are positive; Buffer is headroom tolerated on top of a stage
// ceiling before the run is considered unrecoverable.
type TokenBudget struct {
	Stage1Ceiling int `json:"stage1_ceiling"`
	Stage2Ceiling int `json:"stage2_ceiling"`
	Stage3Ceiling int `json:"stage3_ceiling"`
	Buffer        int `json:"buffer"`
}

// Total returns the full allowance this budget grants a run.
func (b TokenBudget) Total() int {
	return b.Stage1Ceiling + b.Stage2Ceiling + b.Stage3Ceiling + b.Buffer
}

// CeilingForStage returns the ceiling consulted before the given stage index
// (1-based, in pipeline order).
func (b TokenBudget) CeilingForStage(stage int) int {
	switch stage {
	case 1:
		return b.Stage1Ceiling
	case 2:
		return b.Stage2Ceiling
	default:
		return b.Stage3Ceiling
	}
}

// Validate checks the budget invariants from the data model.
func (b TokenBudget) Validate() error {
	if b.Stage1Ceiling <= 0 || b.Stage2Ceiling <= 0 || b.Stage3Ceiling <= 0 || b.Buffer <= 0 {
		return fmt.Errorf("all budget fields must be positive (got %+v)", b)
	}
	if b.Total() <= MinViableRunCost {
		return fmt.Errorf("budget total %d does not exceed minimum viable run cost %d", b.Total(), MinViableRunCost)
	}
	return nil
}

// BudgetTable maps a model identifier to its token budget.
type BudgetTable map[string]TokenBudget

// Validate checks every entry in the table.
func (t BudgetTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("budget table is empty")
	}
	for modelID, budget := range t {
		if err := budget.Validate(); err != nil {
			return fmt.Errorf("budget for model %q: %w", modelID, err)
		}
	}
	return nil
}

// Lookup returns the budget for a model, or false when the model has none.
func (t BudgetTable) Lookup(modelID string) (TokenBudget, bool) {
	budget, ok := t[modelID]
	return budget, ok
}
