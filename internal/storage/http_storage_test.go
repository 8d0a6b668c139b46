package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPImageSource_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int // Status codes to return in sequence
		expectCalls   int32 // Expected number of requests
		expectError   bool
		errorContains string
	}{
		{
			name:        "Success on first attempt",
			responses:   []int{200},
			expectCalls: 1,
			expectError: false,
		},
		{
			name:        "Success on second attempt after 5xx",
			responses:   []int{500, 200},
			expectCalls: 2,
			expectError: false,
		},
		{
			name:          "All attempts fail with 5xx",
			responses:     []int{500, 502, 503},
			expectCalls:   3,
			expectError:   true,
			errorContains: "failed to fetch image after 3 attempts",
		},
		{
			name:          "4xx is not retried",
			responses:     []int{404},
			expectCalls:   1,
			expectError:   true,
			errorContains: "failed to fetch image after 3 attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				status := tt.responses[len(tt.responses)-1]
				if int(n) <= len(tt.responses) {
					status = tt.responses[n-1]
				}
				if status == 200 {
					w.Header().Set("Content-Type", "image/png")
					w.WriteHeader(200)
					w.Write([]byte("fake png bytes"))
					return
				}
				w.WriteHeader(status)
			}))
			defer server.Close()

			source := NewHTTPImageSource()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			img, err := source.FetchImage(ctx, server.URL)

			if got := atomic.LoadInt32(&calls); got != tt.expectCalls {
				t.Errorf("expected %d requests, got %d", tt.expectCalls, got)
			}
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("expected error containing %q, got %q", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if img.MIMEType != "image/png" {
				t.Errorf("expected MIME type image/png, got %q", img.MIMEType)
			}
			if len(img.Bytes) == 0 {
				t.Error("expected non-empty image bytes")
			}
		})
	}
}

func TestHTTPImageSource_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer server.Close()

	source := NewHTTPImageSource()
	_, err := source.FetchImage(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty body error, got %v", err)
	}
}

func TestHTTPImageSource_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	source := NewHTTPImageSource()
	_, err := source.FetchImage(ctx, server.URL)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSniffImageMIME(t *testing.T) {
	pngHeader := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

	if got := sniffImageMIME("image/webp", pngHeader); got != "image/webp" {
		t.Errorf("declared type should win, got %q", got)
	}
	if got := sniffImageMIME("", pngHeader); got != "image/png" {
		t.Errorf("expected sniffed image/png, got %q", got)
	}
	if got := sniffImageMIME("application/octet-stream", pngHeader); got != "image/png" {
		t.Errorf("generic declared type should be re-sniffed, got %q", got)
	}
}
