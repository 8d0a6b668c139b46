package vision

import (
	"context"

	"go-design-analyzer/internal/storage"
)

// RawVisionResult is the uncompressed response of one vision call. The wire
// contract is owned by the vision service; only the compression rules applied
// to it belong to this package.
type RawVisionResult struct {
	Objects []string `json:"objects"`
	Text    []string `json:"text"`
	Colors  []string `json:"colors"`
	Labels  []string `json:"labels"`
	Faces   int      `json:"faces"`
}

// VisionClient performs one vision call against an image. The returned token
// count is zero for backends that do not meter usage.
type VisionClient interface {
	Describe(ctx context.Context, img *storage.ImageData) (*RawVisionResult, int, error)
}
