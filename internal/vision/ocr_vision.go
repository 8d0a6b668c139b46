package vision

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"go-design-analyzer/internal/storage"
)

// OCRVisionClient implements VisionClient with a local tesseract engine.
// It only recovers text fragments; objects, colors and labels stay empty and
// fall through to the documented compression defaults. Used in offline and
// development setups where no remote vision service is configured.
type OCRVisionClient struct {
	language string
}

// NewOCRVisionClient creates a tesseract-backed vision client.
func NewOCRVisionClient(language string) *OCRVisionClient {
	if language == "" {
		language = "eng"
	}
	return &OCRVisionClient{language: language}
}

// Describe runs OCR over the image. Token usage is always zero: nothing is
// metered locally.
func (c *OCRVisionClient) Describe(ctx context.Context, img *storage.ImageData) (*RawVisionResult, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if img == nil || len(img.Bytes) == 0 {
		return nil, 0, fmt.Errorf("no image data to OCR")
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(c.language); err != nil {
		return nil, 0, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(img.Bytes); err != nil {
		return nil, 0, fmt.Errorf("failed to load image for OCR: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, 0, fmt.Errorf("OCR failed: %w", err)
	}

	return &RawVisionResult{
		Text: splitFragments(text),
	}, 0, nil
}

// splitFragments turns raw OCR output into one fragment per non-empty line.
func splitFragments(text string) []string {
	var fragments []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			fragments = append(fragments, line)
		}
	}
	return fragments
}
