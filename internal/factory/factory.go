package factory

import (
	"fmt"
	"net/url"
	"strings"

	"go-design-analyzer/internal/config"
	"go-design-analyzer/internal/llm"
	"go-design-analyzer/internal/storage"
	"go-design-analyzer/internal/vision"
)

// VisionBackend represents the available vision client implementations
type VisionBackend string

const (
	// GeminiVision uses the remote Gemini vision service
	GeminiVision VisionBackend = "gemini"
	// OCRVision uses the local tesseract engine (text fragments only)
	OCRVision VisionBackend = "ocr"
)

// CreateVisionClient creates the configured vision client. The Gemini
// backend rides on the shared stage model client; the OCR backend is fully
// local.
func CreateVisionClient(backend VisionBackend, modelClient llm.StageModelClient, visionModel string) (vision.VisionClient, error) {
	switch backend {
	case GeminiVision:
		if modelClient == nil {
			return nil, fmt.Errorf("gemini vision backend requires a model client")
		}
		return vision.NewGeminiVisionClient(modelClient, visionModel), nil
	case OCRVision:
		return vision.NewOCRVisionClient("eng"), nil
	default:
		return nil, fmt.Errorf("unsupported vision backend: %s", backend)
	}
}

// SourceSelector routes an image reference to the source that can resolve
// it, based on the ref scheme.
type SourceSelector struct {
	httpSource  storage.ImageSource
	azureSource storage.ImageSource
}

// NewSourceSelector creates a selector. The Azure source is optional and
// only constructed when credentials are configured.
func NewSourceSelector(cfg *config.Config) (*SourceSelector, error) {
	selector := &SourceSelector{
		httpSource: storage.NewHTTPImageSource(),
	}

	if cfg.AzureAccountName != "" && cfg.AzureAccountKey != "" {
		azureSource, err := storage.NewAzureImageSource(cfg.AzureAccountName, cfg.AzureAccountKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure image source: %w", err)
		}
		selector.azureSource = azureSource
	}

	return selector, nil
}

// ForRef returns the image source responsible for the given reference.
func (s *SourceSelector) ForRef(imageRef string) (storage.ImageSource, error) {
	parsed, err := url.Parse(imageRef)
	if err != nil {
		return nil, fmt.Errorf("invalid image ref: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return s.httpSource, nil
	case "azblob":
		if s.azureSource == nil {
			return nil, fmt.Errorf("azblob ref %q but no azure credentials configured", imageRef)
		}
		return s.azureSource, nil
	default:
		return nil, fmt.Errorf("unsupported image ref scheme: %q", parsed.Scheme)
	}
}
