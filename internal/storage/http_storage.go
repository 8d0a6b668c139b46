package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ImageData is a fetched image ready to be sent inline to a model service.
type ImageData struct {
	Bytes    []byte
	MIMEType string
}

// ImageSource resolves an image reference to raw image data.
type ImageSource interface {
	FetchImage(ctx context.Context, imageRef string) (*ImageData, error)
}

// maxImageBytes caps downloads; model services reject larger inline payloads anyway.
const maxImageBytes = 20 * 1024 * 1024

// HTTPImageSource implements ImageSource for http(s) image references.
type HTTPImageSource struct {
	client *http.Client
}

// NewHTTPImageSource creates an HTTP image source with pooled transport
func NewHTTPImageSource() ImageSource {
	transport := &http.Transport{
		// Connection pooling sized for single-image downloads
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,
	}

	return &HTTPImageSource{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,

			// Prevent redirect chains to avoid unexpected behavior
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

func (h *HTTPImageSource) FetchImage(ctx context.Context, imageRef string) (*ImageData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageRef, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid image ref: %w", err)
	}

	req.Header.Set("Accept", "image/jpeg, image/png, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "Go-Design-Analyzer/1.0")

	// Retry logic (3 attempts) - only retry on transient errors
	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		resp, err = h.client.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			break
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("unexpected status code %d", resp.StatusCode)
			retryable := resp.StatusCode >= 500
			resp.Body.Close()
			resp = nil
			// 4xx client errors are non-retryable
			if !retryable {
				break
			}
		}

		if attempt < 2 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}

	if resp == nil {
		return nil, fmt.Errorf("failed to fetch image after 3 attempts: %w", lastErr)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image body is empty")
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d byte limit", maxImageBytes)
	}

	return &ImageData{
		Bytes:    data,
		MIMEType: sniffImageMIME(resp.Header.Get("Content-Type"), data),
	}, nil
}

// sniffImageMIME prefers the server-declared content type and falls back to
// content sniffing when the header is missing or generic.
func sniffImageMIME(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}
