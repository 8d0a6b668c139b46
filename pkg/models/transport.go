package models

// AnalyzeRequest asks the service to run the full analysis pipeline against
// one image reference.
type AnalyzeRequest struct {
	ImageRef    string `json:"image_ref" binding:"required"`
	ImageID     string `json:"image_id,omitempty"`
	UserContext string `json:"user_context,omitempty"`
}

// AnalyzeBatchRequest asks the service to analyze several images. Each image
// gets its own isolated pipeline run.
type AnalyzeBatchRequest struct {
	Images []AnalyzeRequest `json:"images" binding:"required"`
}

// AnalyzeResponse is the success envelope for a single analysis.
type AnalyzeResponse struct {
	Record           *AnalysisRecord `json:"record"`
	Warnings         []string        `json:"warnings,omitempty"`
	FallbacksApplied []string        `json:"fallbacks_applied,omitempty"`
}

// AnalyzeBatchResponse carries one result per requested image, in request
// order. Individual failures do not fail the batch.
type AnalyzeBatchResponse struct {
	Results []BatchResult `json:"results"`
}

// BatchResult is the outcome of one image inside a batch.
type BatchResult struct {
	ImageRef string           `json:"image_ref"`
	Response *AnalyzeResponse `json:"response,omitempty"`
	Error    string           `json:"error,omitempty"`
	Stage    string           `json:"stage,omitempty"`
}

// ErrorResponse is the error envelope. Stage is always populated when the
// failure happened inside the pipeline so callers can see exactly where.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Stage   string `json:"stage,omitempty"`
}
