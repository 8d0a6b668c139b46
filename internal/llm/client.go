package llm

import (
	"context"

	"go-design-analyzer/internal/storage"
)

// GenerateRequest is one stage model call. Prompt wording is composed by the
// caller; this layer only owns transport, token limits, and response shape.
type GenerateRequest struct {
	Model       string
	Prompt      string
	Image       *storage.ImageData
	MaxTokens   int
	Temperature float32
}

// GenerateResponse carries the raw model text plus metered token usage.
type GenerateResponse struct {
	Text       string
	TokensUsed int
}

// StageModelClient abstracts the external model service used by pipeline
// stages and the vision metadata call.
type StageModelClient interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}
