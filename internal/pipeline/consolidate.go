package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arbovm/levenshtein"

	"go-design-analyzer/pkg/models"
)

// Consolidator folds one run's complete stage history into the canonical
// AnalysisRecord. Optional-field defects never fail consolidation: they are
// substituted with documented defaults and recorded as warnings. The one
// hard invariant is that scores are never fabricated - if the final stage
// produced no usable structured output, consolidation fails.
type Consolidator struct {
	// Suggestions whose titles are within this levenshtein distance are
	// treated as duplicates of each other.
	dedupeDistance int
}

// NewConsolidator creates a consolidator with default settings.
func NewConsolidator() *Consolidator {
	return &Consolidator{dedupeDistance: 3}
}

// Consolidate builds the final record from a finished run. The returned
// error, when non-nil, is always a *PipelineError of kind
// FailureConsolidation carrying the full history.
func (c *Consolidator) Consolidate(run *PipelineRun) (*models.ConsolidationOutcome, error) {
	history := run.History()

	synthesis, err := primarySynthesis(history)
	if err != nil {
		return nil, &PipelineError{
			Kind:    FailureConsolidation,
			Stage:   "consolidation",
			Reason:  err.Error(),
			History: history,
		}
	}

	warnings := []string{}
	raw := synthesis.Raw

	annotations := extractAnnotations(raw, "visual_annotations", &warnings)
	suggestions := extractSuggestions(raw, "suggestions", &warnings)
	suggestions = c.dedupeSuggestions(suggestions, &warnings)

	summary, err := extractSummary(raw, &warnings)
	if err != nil {
		return nil, newConsolidationError(err.Error(), history)
	}

	record := &models.AnalysisRecord{
		ImageID:           run.ImageID,
		VisualAnnotations: annotations,
		Suggestions:       suggestions,
		Summary:           summary,
		Metadata:          buildRunMetadata(run, history),
		CreatedAt:         time.Now().UTC(),
	}

	return &models.ConsolidationOutcome{
		Record:           record,
		Warnings:         warnings,
		FallbacksApplied: collectFallbacks(history),
	}, nil
}

// primarySynthesis locates the last successful stage in pipeline order and
// verifies it is a usable synthesis output. The switch is exhaustive over
// the StageOutput union.
func primarySynthesis(history []models.StageResult) (*models.SynthesisOutput, error) {
	var last models.StageOutput
	for _, result := range history {
		if result.Success && result.Output != nil {
			last = result.Output
		}
	}

	switch output := last.(type) {
	case nil:
		return nil, fmt.Errorf("no stage produced any output")
	case *models.CompressedMetadata:
		return nil, fmt.Errorf("no analysis stage succeeded; only vision metadata was collected")
	case *models.VisionFindings:
		return nil, fmt.Errorf("final synthesis stage is missing from the history")
	case *models.SynthesisOutput:
		if len(output.Raw) == 0 {
			return nil, fmt.Errorf("final stage produced no usable structured output")
		}
		return output, nil
	default:
		return nil, fmt.Errorf("final stage produced an unrecognized output type %T", output)
	}
}

func extractAnnotations(raw map[string]interface{}, field string, warnings *[]string) []models.VisualAnnotation {
	out := []models.VisualAnnotation{}
	if !extractTyped(raw, field, &out, warnings) {
		return []models.VisualAnnotation{}
	}
	return out
}

func extractSuggestions(raw map[string]interface{}, field string, warnings *[]string) []models.Suggestion {
	out := []models.Suggestion{}
	if !extractTyped(raw, field, &out, warnings) {
		return []models.Suggestion{}
	}
	return out
}

// extractTyped pulls one expected array field out of the raw payload.
// Missing or wrong-shaped fields default and warn instead of failing.
func extractTyped(raw map[string]interface{}, field string, target interface{}, warnings *[]string) bool {
	value, ok := raw[field]
	if !ok || value == nil {
		*warnings = append(*warnings, fmt.Sprintf("%s: missing, defaulted to []", field))
		return false
	}
	if _, isArray := value.([]interface{}); !isArray {
		*warnings = append(*warnings, fmt.Sprintf("%s: invalid shape, defaulted to []", field))
		return false
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("%s: invalid shape, defaulted to []", field))
		return false
	}
	if err := json.Unmarshal(encoded, target); err != nil {
		*warnings = append(*warnings, fmt.Sprintf("%s: invalid shape, defaulted to []", field))
		return false
	}
	return true
}

// extractSummary builds the scored summary. A summary without a numeric
// overall score is the one defect that cannot be defaulted: scores must be
// genuinely derived from stage output, never synthesized here.
func extractSummary(raw map[string]interface{}, warnings *[]string) (models.Summary, error) {
	value, ok := raw["summary"]
	if !ok || value == nil {
		return models.Summary{}, fmt.Errorf("final stage output has no summary; refusing to fabricate scores")
	}
	summaryMap, ok := value.(map[string]interface{})
	if !ok {
		return models.Summary{}, fmt.Errorf("summary has invalid shape; refusing to fabricate scores")
	}

	score, ok := asFloat(summaryMap["overall_score"])
	if !ok {
		return models.Summary{}, fmt.Errorf("summary has no numeric overall score; refusing to fabricate one")
	}
	if score < 0 || score > 100 {
		*warnings = append(*warnings, fmt.Sprintf("overall_score: %v out of range, clamped to [0,100]", score))
		score = clampScore(score)
	}

	summary := models.Summary{
		OverallScore: score,
		KeyIssues:    extractStrings(summaryMap, "key_issues", warnings),
		Strengths:    extractStrings(summaryMap, "strengths", warnings),
	}

	scores := models.CategoryScores{}
	if !extractObject(summaryMap, "category_scores", &scores) {
		*warnings = append(*warnings, "category_scores: invalid shape, defaulted to zeroed scores")
	}
	summary.CategoryScores = scores

	return summary, nil
}

func extractStrings(raw map[string]interface{}, field string, warnings *[]string) []string {
	out := []string{}
	if !extractTyped(raw, field, &out, warnings) {
		return []string{}
	}
	return out
}

func extractObject(raw map[string]interface{}, field string, target interface{}) bool {
	value, ok := raw[field]
	if !ok || value == nil {
		return false
	}
	if _, isObject := value.(map[string]interface{}); !isObject {
		return false
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return false
	}
	return json.Unmarshal(encoded, target) == nil
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// dedupeSuggestions drops suggestions whose titles are near-duplicates of an
// earlier entry, keeping first occurrences.
func (c *Consolidator) dedupeSuggestions(suggestions []models.Suggestion, warnings *[]string) []models.Suggestion {
	if len(suggestions) < 2 {
		return suggestions
	}

	kept := make([]models.Suggestion, 0, len(suggestions))
	dropped := 0
	for _, candidate := range suggestions {
		duplicate := false
		for _, existing := range kept {
			if c.nearDuplicate(existing.Title, candidate.Title) {
				duplicate = true
				break
			}
		}
		if duplicate {
			dropped++
			continue
		}
		kept = append(kept, candidate)
	}

	if dropped > 0 {
		*warnings = append(*warnings, fmt.Sprintf("suggestions: removed %d near-duplicate entries", dropped))
	}
	return kept
}

func (c *Consolidator) nearDuplicate(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return levenshtein.Distance(a, b) <= c.dedupeDistance
}

// buildRunMetadata copies every stage output into the audit section of the
// record. The copy is faithful: nothing is filtered or rewritten.
func buildRunMetadata(run *PipelineRun, history []models.StageResult) models.RunMetadata {
	stages := make([]models.StageAudit, 0, len(history))
	for _, result := range history {
		stages = append(stages, models.StageAudit{
			StageName:  result.StageName,
			ModelID:    result.ModelID,
			Success:    result.Success,
			Timestamp:  result.Timestamp,
			TokenUsage: result.TokenUsage,
			Output:     result.Output,
			Error:      result.Error,
			Fallback:   result.Fallback,
		})
	}

	return models.RunMetadata{
		RunID:            run.ID,
		Stages:           stages,
		TotalTokensUsed:  run.Tracker.TotalUsed(),
		DegradedAnalysis: run.Degraded(),
	}
}

// collectFallbacks lists every substitution recorded in the audit trail.
func collectFallbacks(history []models.StageResult) []string {
	fallbacks := []string{}
	for _, result := range history {
		if !result.Fallback {
			continue
		}
		switch result.StageName {
		case StageMetadataExtraction:
			fallbacks = append(fallbacks, "metadata_extraction: default metadata substituted after vision failure")
		case StageSynthesis:
			fallbacks = append(fallbacks, "synthesis: degraded local synthesis substituted after budget exhaustion")
		default:
			fallbacks = append(fallbacks, fmt.Sprintf("%s: fallback substitution applied", result.StageName))
		}
	}
	return fallbacks
}
