package models

import "time"

// AnalysisRecord is the canonical artifact produced by one pipeline run.
// It is persisted once, keyed by the analyzed image ID, and treated as
// immutable thereafter.
type AnalysisRecord struct {
	ImageID           string             `json:"image_id"`
	VisualAnnotations []VisualAnnotation `json:"visual_annotations"`
	Suggestions       []Suggestion       `json:"suggestions"`
	Summary           Summary            `json:"summary"`
	Metadata          RunMetadata        `json:"metadata"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Summary is the top-level assessment derived from the final synthesis stage.
// OverallScore is only ever populated from genuine stage output, never
// fabricated during consolidation.
type Summary struct {
	OverallScore   float64        `json:"overall_score"`
	CategoryScores CategoryScores `json:"category_scores"`
	KeyIssues      []string       `json:"key_issues"`
	Strengths      []string       `json:"strengths"`
}

// CategoryScores breaks the overall assessment into the four scored
// critique categories. All scores are on a 0-100 scale.
type CategoryScores struct {
	Usability       float64 `json:"usability"`
	Accessibility   float64 `json:"accessibility"`
	VisualHierarchy float64 `json:"visual_hierarchy"`
	Consistency     float64 `json:"consistency"`
}

// VisualAnnotation marks a region of the analyzed design with a finding.
type VisualAnnotation struct {
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
	Region      *Region `json:"region,omitempty"`
}

// Region is a normalized bounding box (0-1 coordinate space).
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Suggestion is one actionable improvement recommendation.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
}

// RunMetadata is the audit copy of everything the pipeline did for one run.
// It exists purely for traceability; no correctness constraint beyond being
// a faithful copy of the stage history.
type RunMetadata struct {
	RunID            string       `json:"run_id"`
	Stages           []StageAudit `json:"stages"`
	TotalTokensUsed  int          `json:"total_tokens_used"`
	DegradedAnalysis bool         `json:"degraded_analysis"`
}

// StageAudit is the persisted form of a single StageResult.
type StageAudit struct {
	StageName  string      `json:"stage_name"`
	ModelID    string      `json:"model_id"`
	Success    bool        `json:"success"`
	Timestamp  time.Time   `json:"timestamp"`
	TokenUsage int         `json:"token_usage,omitempty"`
	Output     interface{} `json:"output,omitempty"`
	Error      string      `json:"error,omitempty"`
	Fallback   bool        `json:"fallback,omitempty"`
}

// ConsolidationOutcome pairs a usable record with the non-fatal anomalies
// observed while building it. Callers are expected to surface both lists.
type ConsolidationOutcome struct {
	Record           *AnalysisRecord `json:"record"`
	Warnings         []string        `json:"warnings"`
	FallbacksApplied []string        `json:"fallbacks_applied"`
}
