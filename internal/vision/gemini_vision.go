package vision

import (
	"context"
	"encoding/json"
	"fmt"

	"go-design-analyzer/internal/llm"
	"go-design-analyzer/internal/storage"
)

const describePrompt = `Describe this UI screenshot as JSON with exactly these keys:
{"objects": [detected interface element names], "text": [visible text fragments],
"colors": [dominant color names], "labels": [descriptive category labels], "faces": <count>}
Return JSON only.`

// GeminiVisionClient implements VisionClient on the stage model transport,
// using a vision-capable Gemini model.
type GeminiVisionClient struct {
	model     string
	client    llm.StageModelClient
	maxTokens int
}

// NewGeminiVisionClient creates a vision client backed by the given model.
func NewGeminiVisionClient(client llm.StageModelClient, model string) *GeminiVisionClient {
	return &GeminiVisionClient{
		model:     model,
		client:    client,
		maxTokens: 1024,
	}
}

// Describe performs exactly one vision call and decodes its JSON payload.
func (c *GeminiVisionClient) Describe(ctx context.Context, img *storage.ImageData) (*RawVisionResult, int, error) {
	resp, err := c.client.Generate(ctx, llm.GenerateRequest{
		Model:       c.model,
		Prompt:      describePrompt,
		Image:       img,
		MaxTokens:   c.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return nil, 0, err
	}

	var raw RawVisionResult
	if err := json.Unmarshal([]byte(resp.Text), &raw); err != nil {
		return nil, resp.TokensUsed, fmt.Errorf("vision response is not valid JSON: %w", err)
	}

	return &raw, resp.TokensUsed, nil
}
