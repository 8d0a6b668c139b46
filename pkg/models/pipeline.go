package models

import "time"

// CompressedMetadata is the deterministic compression of one raw vision
// response. Every string field is default-backed and never empty; counts are
// never negative. Identical raw input always compresses to identical output.
type CompressedMetadata struct {
	Elements      string `json:"elements"`
	TextSummary   string `json:"text_summary"`
	ColorPalette  string `json:"color_palette"`
	LabelsSummary string `json:"labels_summary"`
	ObjectCount   int    `json:"object_count"`
	TextCount     int    `json:"text_count"`
	FaceCount     int    `json:"face_count"`
}

// StageOutput is the tagged union of everything a pipeline stage can produce.
// Consolidation switches over the concrete types exhaustively.
type StageOutput interface {
	stageOutput()
}

func (*CompressedMetadata) stageOutput() {}
func (*VisionFindings) stageOutput()     {}
func (*SynthesisOutput) stageOutput()    {}

// VisionFindings is the structured payload of the vision-informed analysis
// stage: concrete observations about the design grounded in the screenshot.
type VisionFindings struct {
	VisualAnnotations []VisualAnnotation `json:"visual_annotations"`
	Observations      []string           `json:"observations"`
	Strengths         []string           `json:"strengths"`
	Issues            []string           `json:"issues"`
}

// SynthesisOutput is the structured payload of the final synthesis stage.
// Raw keeps the decoded JSON object exactly as the model returned it so that
// consolidation can apply defensive per-field extraction; the typed fields
// are populated only when the corresponding raw field had the expected shape.
type SynthesisOutput struct {
	VisualAnnotations []VisualAnnotation     `json:"visual_annotations"`
	Suggestions       []Suggestion           `json:"suggestions"`
	Summary           *Summary               `json:"summary,omitempty"`
	Raw               map[string]interface{} `json:"-"`
}

// StageResult is one immutable entry in a run's append-only audit trail.
// Exactly one StageResult is appended per stage attempt, success or failure.
type StageResult struct {
	StageName  string      `json:"stage_name"`
	ModelID    string      `json:"model_id"`
	Success    bool        `json:"success"`
	Timestamp  time.Time   `json:"timestamp"`
	TokenUsage int         `json:"token_usage,omitempty"`
	Output     StageOutput `json:"output,omitempty"`
	Error      string      `json:"error,omitempty"`
	Fallback   bool        `json:"fallback,omitempty"`
	Compressed bool        `json:"compressed,omitempty"`
}

// PipelineProgress is one best-effort progress event. Percent is
// monotonically non-decreasing within a run and reaches exactly 100 only
// when the run succeeds.
type PipelineProgress struct {
	RunID           string  `json:"run_id"`
	Stage           string  `json:"stage"`
	Percent         float64 `json:"percent"`
	Message         string  `json:"message"`
	BudgetUsed      int     `json:"budget_used"`
	BudgetRemaining int     `json:"budget_remaining"`
}
