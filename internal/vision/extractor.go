package vision

import (
	"context"

	apperrors "go-design-analyzer/internal/errors"
	"go-design-analyzer/internal/storage"
	"go-design-analyzer/pkg/models"
)

// MetadataExtractor performs the single vision call of a pipeline run and
// compresses the result. It never makes more than one call per Extract.
type MetadataExtractor struct {
	client VisionClient
}

// NewMetadataExtractor creates a metadata extractor backed by the given client
func NewMetadataExtractor(client VisionClient) *MetadataExtractor {
	return &MetadataExtractor{client: client}
}

// Extract runs one vision call and returns the compressed metadata along
// with the tokens the call consumed. Failure handling is the caller's
// concern: the configured fallback policy decides whether a failed call
// aborts the run or degrades to default metadata.
func (e *MetadataExtractor) Extract(ctx context.Context, img *storage.ImageData) (models.CompressedMetadata, int, error) {
	raw, tokens, err := e.client.Describe(ctx, img)
	if err != nil {
		return models.CompressedMetadata{}, tokens, apperrors.NewStageError(
			"metadata_extraction", "vision call failed", err)
	}
	return Compress(raw), tokens, nil
}
