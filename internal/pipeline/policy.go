package pipeline

import (
	"encoding/json"
	"fmt"

	"go-design-analyzer/pkg/models"
)

// FallbackPolicy decides what happens when the vision call fails or the
// token budget runs out. One policy is chosen at configuration time and
// applies uniformly to the whole pipeline; behavior never varies per call.
type FallbackPolicy interface {
	Name() string

	// ContinueWithoutVision reports whether a failed vision call degrades to
	// the documented default metadata instead of aborting the run.
	ContinueWithoutVision() bool

	// DegradeOnBudget reports whether budget exhaustion synthesizes a
	// reduced-fidelity result from local data instead of aborting the run.
	DegradeOnBudget() bool
}

type hardFailPolicy struct{}

func (hardFailPolicy) Name() string                { return "hard_fail" }
func (hardFailPolicy) ContinueWithoutVision() bool { return false }
func (hardFailPolicy) DegradeOnBudget() bool       { return false }

type degradePolicy struct{}

func (degradePolicy) Name() string                { return "degrade" }
func (degradePolicy) ContinueWithoutVision() bool { return true }
func (degradePolicy) DegradeOnBudget() bool       { return true }

// NewHardFailPolicy aborts the run on vision failure or budget exhaustion.
func NewHardFailPolicy() FallbackPolicy { return hardFailPolicy{} }

// NewDegradePolicy continues with documented defaults on vision failure and
// synthesizes a local reduced-fidelity result on budget exhaustion.
func NewDegradePolicy() FallbackPolicy { return degradePolicy{} }

// PolicyFromName resolves a configured policy name.
func PolicyFromName(name string) (FallbackPolicy, error) {
	switch name {
	case "hard_fail":
		return NewHardFailPolicy(), nil
	case "degrade":
		return NewDegradePolicy(), nil
	default:
		return nil, fmt.Errorf("unknown fallback policy %q", name)
	}
}

// DegradedSynthesis builds a reduced-fidelity synthesis output purely from
// data already collected in this run: the compressed metadata and, when
// present, the visual-analysis findings. It makes no external calls. Scores
// are derived deterministically from the collected findings, so they are the
// degraded stage's own output rather than fabrications.
func DegradedSynthesis(metadata models.CompressedMetadata, history []models.StageResult) *models.SynthesisOutput {
	out := &models.SynthesisOutput{
		VisualAnnotations: []models.VisualAnnotation{},
		Suggestions:       []models.Suggestion{},
	}

	score := 50.0 // neutral baseline when only metadata was collected
	summary := models.Summary{
		KeyIssues: []string{},
		Strengths: []string{},
	}

	if findings := LastFindings(history); findings != nil {
		if findings.VisualAnnotations != nil {
			out.VisualAnnotations = findings.VisualAnnotations
		}
		summary.KeyIssues = append(summary.KeyIssues, findings.Issues...)
		summary.Strengths = append(summary.Strengths, findings.Strengths...)

		score = clampScore(70 + 5*float64(len(findings.Strengths)) - 8*float64(len(findings.Issues)))

		for _, issue := range findings.Issues {
			out.Suggestions = append(out.Suggestions, models.Suggestion{
				Title:       issue,
				Description: "Identified during visual analysis; synthesis was skipped to stay within the token budget.",
				Category:    "general",
				Priority:    "medium",
			})
		}
	}

	summary.OverallScore = score
	summary.CategoryScores = models.CategoryScores{
		Usability:       score,
		Accessibility:   score,
		VisualHierarchy: score,
		Consistency:     score,
	}
	out.Summary = &summary

	// Keep Raw consistent with the typed fields so consolidation treats the
	// degraded output exactly like a model-produced one.
	if b, err := json.Marshal(out); err == nil {
		var raw map[string]interface{}
		if err := json.Unmarshal(b, &raw); err == nil {
			out.Raw = raw
		}
	}
	return out
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
