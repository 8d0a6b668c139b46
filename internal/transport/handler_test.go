package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"go-design-analyzer/internal/config"
	apperrors "go-design-analyzer/internal/errors"
	"go-design-analyzer/internal/observer"
	"go-design-analyzer/internal/pipeline"
	"go-design-analyzer/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubService returns scripted results per method.
type stubService struct {
	analyzeResp *models.AnalyzeResponse
	analyzeErr  error
	record      *models.AnalysisRecord
	recordErr   error
}

func (s *stubService) Analyze(ctx context.Context, req models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	return s.analyzeResp, s.analyzeErr
}

func (s *stubService) AnalyzeBatch(ctx context.Context, reqs []models.AnalyzeRequest) *models.AnalyzeBatchResponse {
	results := make([]models.BatchResult, len(reqs))
	for i, req := range reqs {
		results[i] = models.BatchResult{ImageRef: req.ImageRef, Response: s.analyzeResp}
	}
	return &models.AnalyzeBatchResponse{Results: results}
}

func (s *stubService) GetRecord(ctx context.Context, imageID string) (*models.AnalysisRecord, error) {
	return s.record, s.recordErr
}

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:     10 * time.Second,
		AnalysisTimeout:    10 * time.Second,
		MaxRequestBodySize: 1024 * 1024,
	}
}

func successResponse() *models.AnalyzeResponse {
	return &models.AnalyzeResponse{
		Record: &models.AnalysisRecord{
			ImageID: "img-1",
			Summary: models.Summary{OverallScore: 72},
		},
		Warnings:         []string{},
		FallbacksApplied: []string{},
	}
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestAnalyzeEndpoint_Success(t *testing.T) {
	handler := NewHandler(&stubService{analyzeResp: successResponse()}, observer.NewMetricsObserver(), testConfig())

	rec := doRequest(t, handler, http.MethodPost, "/analyze", `{"image_ref": "https://example.com/a.png"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Record.Summary.OverallScore != 72 {
		t.Errorf("expected score 72, got %v", resp.Record.Summary.OverallScore)
	}
}

func TestAnalyzeEndpoint_MissingImageRef(t *testing.T) {
	handler := NewHandler(&stubService{analyzeResp: successResponse()}, observer.NewMetricsObserver(), testConfig())

	rec := doRequest(t, handler, http.MethodPost, "/analyze", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing image_ref, got %d", rec.Code)
	}
}

func TestAnalyzeEndpoint_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantStage  string
	}{
		{
			name: "budget exhaustion maps to 429",
			err: &pipeline.PipelineError{
				Kind:   pipeline.FailureTokenBudget,
				Stage:  "synthesis",
				Reason: "remaining budget 1000 is below the stage floor 3000",
			},
			wantStatus: http.StatusTooManyRequests,
			wantStage:  "synthesis",
		},
		{
			name: "stage failure maps to 422",
			err: &pipeline.PipelineError{
				Kind:   pipeline.FailureStageExecution,
				Stage:  "visual_analysis",
				Reason: "model call failed",
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantStage:  "visual_analysis",
		},
		{
			name: "consolidation failure maps to 422",
			err: &pipeline.PipelineError{
				Kind:   pipeline.FailureConsolidation,
				Stage:  "consolidation",
				Reason: "no numeric overall score",
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantStage:  "consolidation",
		},
		{
			name: "vision failure maps to 502",
			err: &pipeline.PipelineError{
				Kind:   pipeline.FailureMetadataExtraction,
				Stage:  "metadata_extraction",
				Reason: "vision call failed",
			},
			wantStatus: http.StatusBadGateway,
			wantStage:  "metadata_extraction",
		},
		{
			name:       "validation error keeps its status",
			err:        apperrors.NewValidationError("image ref scheme not allowed", nil),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "network error keeps its status",
			err:        apperrors.NewNetworkError("failed to fetch image", nil),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(&stubService{analyzeErr: tt.err}, observer.NewMetricsObserver(), testConfig())

			rec := doRequest(t, handler, http.MethodPost, "/analyze", `{"image_ref": "https://example.com/a.png"}`)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			var errResp models.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if errResp.Message == "" {
				t.Error("error response must carry a message")
			}
			if tt.wantStage != "" && errResp.Stage != tt.wantStage {
				t.Errorf("expected stage %q in error body, got %q", tt.wantStage, errResp.Stage)
			}
		})
	}
}

func TestBatchEndpoint(t *testing.T) {
	handler := NewHandler(&stubService{analyzeResp: successResponse()}, observer.NewMetricsObserver(), testConfig())

	rec := doRequest(t, handler, http.MethodPost, "/analyze/batch",
		`{"images": [{"image_ref": "https://example.com/a.png"}, {"image_ref": "https://example.com/b.png"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.AnalyzeBatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(resp.Results))
	}
}

func TestBatchEndpoint_EmptyBatch(t *testing.T) {
	handler := NewHandler(&stubService{}, observer.NewMetricsObserver(), testConfig())

	rec := doRequest(t, handler, http.MethodPost, "/analyze/batch", `{"images": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rec.Code)
	}
}

func TestGetRecordEndpoint_NotFound(t *testing.T) {
	handler := NewHandler(&stubService{
		recordErr: apperrors.NewNotFoundError("no analysis record for image", nil),
	}, observer.NewMetricsObserver(), testConfig())

	rec := doRequest(t, handler, http.MethodGet, "/analyses/unknown", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHandler(&stubService{}, observer.NewMetricsObserver(), testConfig())

	rec := doRequest(t, handler, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := observer.NewMetricsObserver()
	metrics.OnProgress(context.Background(), models.PipelineProgress{RunID: "run-1", Percent: 100, BudgetUsed: 5400})

	handler := NewHandler(&stubService{}, metrics, testConfig())

	rec := doRequest(t, handler, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid metrics body: %v", err)
	}
	if body["completed_runs"] != float64(1) {
		t.Errorf("expected 1 completed run, got %v", body["completed_runs"])
	}
}

func TestRequestSizeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRequestBodySize = 64

	handler := NewHandler(&stubService{analyzeResp: successResponse()}, observer.NewMetricsObserver(), cfg)

	oversized := `{"image_ref": "https://example.com/` + strings.Repeat("x", 200) + `.png"}`
	rec := doRequest(t, handler, http.MethodPost, "/analyze", oversized)
	if rec.Code == http.StatusOK {
		t.Fatal("oversized request must be rejected")
	}
}
