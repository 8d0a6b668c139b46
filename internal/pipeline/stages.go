package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go-design-analyzer/internal/llm"
	"go-design-analyzer/internal/storage"
	"go-design-analyzer/pkg/models"
)

// Stage names, in pipeline order.
const (
	StageMetadataExtraction = "metadata_extraction"
	StageVisualAnalysis     = "visual_analysis"
	StageSynthesis          = "synthesis"
)

// Stage floors: the minimum remaining budget required before a stage may be
// invoked at all.
const (
	visualAnalysisFloor = 1500
	synthesisFloor      = 3000
)

// StageInput is everything a stage may consult: the image, the compressed
// vision metadata, all prior stage results, and the caller's context string.
type StageInput struct {
	Image       *storage.ImageData
	Metadata    models.CompressedMetadata
	Prior       []models.StageResult
	UserContext string
}

// Stage is one ordered unit of pipeline work, typically one external model
// invocation. Index selects which budget ceiling the orchestrator consults
// before running it.
type Stage struct {
	Name      string
	ModelID   string
	Index     int
	MinFloor  int
	Percent   float64
	MaxTokens int
	Run       func(ctx context.Context, in StageInput, maxTokens int) (models.StageOutput, int, error)
}

// NewVisualAnalysisStage builds the vision-informed analysis stage: one model
// call that sees the screenshot plus the compressed metadata and returns
// structured findings.
func NewVisualAnalysisStage(client llm.StageModelClient, model string) Stage {
	return Stage{
		Name:      StageVisualAnalysis,
		ModelID:   model,
		Index:     1,
		MinFloor:  visualAnalysisFloor,
		Percent:   55,
		MaxTokens: 4096,
		Run: func(ctx context.Context, in StageInput, maxTokens int) (models.StageOutput, int, error) {
			resp, err := client.Generate(ctx, llm.GenerateRequest{
				Model:       model,
				Prompt:      buildVisualAnalysisPrompt(in),
				Image:       in.Image,
				MaxTokens:   maxTokens,
				Temperature: 0.2,
			})
			if err != nil {
				return nil, 0, err
			}

			var findings models.VisionFindings
			if err := json.Unmarshal([]byte(resp.Text), &findings); err != nil {
				return nil, resp.TokensUsed, fmt.Errorf("stage output is not valid JSON: %w", err)
			}
			return &findings, resp.TokensUsed, nil
		},
	}
}

// NewSynthesisStage builds the final synthesis stage: one model call that
// folds the prior findings into suggestions and a scored summary. The raw
// decoded object is kept alongside the typed fields so consolidation can
// apply defensive per-field extraction.
func NewSynthesisStage(client llm.StageModelClient, model string) Stage {
	return Stage{
		Name:      StageSynthesis,
		ModelID:   model,
		Index:     2,
		MinFloor:  synthesisFloor,
		Percent:   85,
		MaxTokens: 8192,
		Run: func(ctx context.Context, in StageInput, maxTokens int) (models.StageOutput, int, error) {
			resp, err := client.Generate(ctx, llm.GenerateRequest{
				Model:       model,
				Prompt:      buildSynthesisPrompt(in),
				MaxTokens:   maxTokens,
				Temperature: 0.4,
			})
			if err != nil {
				return nil, 0, err
			}

			var raw map[string]interface{}
			if err := json.Unmarshal([]byte(resp.Text), &raw); err != nil {
				return nil, resp.TokensUsed, fmt.Errorf("stage output is not a JSON object: %w", err)
			}

			out := &models.SynthesisOutput{Raw: raw}
			// Best-effort typed decode; consolidation re-validates every field shape
			_ = json.Unmarshal([]byte(resp.Text), out)
			return out, resp.TokensUsed, nil
		},
	}
}

func buildVisualAnalysisPrompt(in StageInput) string {
	return fmt.Sprintf(`Analyze this UI design screenshot.
Detected elements: %s. Visible text: %s. Color palette: %s. Labels: %s.
User context: %s
Return JSON with keys "visual_annotations" (array of {type, title, description, severity, region{x,y,width,height}}),
"observations", "strengths" and "issues" (arrays of strings). Return JSON only.`,
		in.Metadata.Elements, in.Metadata.TextSummary, in.Metadata.ColorPalette,
		in.Metadata.LabelsSummary, orNone(in.UserContext))
}

func buildSynthesisPrompt(in StageInput) string {
	findings := "{}"
	if f := LastFindings(in.Prior); f != nil {
		if b, err := json.Marshal(f); err == nil {
			findings = string(b)
		}
	}
	return fmt.Sprintf(`You are consolidating a UI design review.
Image metadata: elements=%s; text=%s; colors=%s.
Prior stage findings: %s
User context: %s
Return JSON with keys "visual_annotations", "suggestions" (array of {title, description, category, priority})
and "summary" {overall_score (0-100), category_scores {usability, accessibility, visual_hierarchy, consistency},
key_issues, strengths}. Return JSON only.`,
		in.Metadata.Elements, in.Metadata.TextSummary, in.Metadata.ColorPalette,
		findings, orNone(in.UserContext))
}

// LastFindings returns the most recent successful visual-analysis output in
// the history, or nil when none exists.
func LastFindings(history []models.StageResult) *models.VisionFindings {
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].Success {
			continue
		}
		if findings, ok := history[i].Output.(*models.VisionFindings); ok {
			return findings
		}
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none provided)"
	}
	return s
}
