package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-design-analyzer/internal/config"
	apperrors "go-design-analyzer/internal/errors"
	"go-design-analyzer/internal/logger"
	"go-design-analyzer/internal/observer"
	"go-design-analyzer/internal/pipeline"
	"go-design-analyzer/internal/service"
	"go-design-analyzer/pkg/models"
)

// NewHandler wires the HTTP API around the analysis service.
func NewHandler(svc service.AnalysisService, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(requestSizeLimiter(cfg.MaxRequestBodySize))

	// Configure routes
	r.GET("/health", healthCheck)
	r.GET("/metrics", reportMetrics(metrics))
	r.POST("/analyze", analyzeImage(svc, cfg))
	r.POST("/analyze/batch", analyzeBatch(svc, cfg))
	r.GET("/analyses/:imageID", getRecord(svc))

	return r
}

func analyzeImage(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.AnalysisTimeout)
		defer cancel()

		var req models.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.WithError(err).WithField("ip", c.ClientIP()).Error("Invalid request format")
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"image_ref": req.ImageRef,
			"ip":        c.ClientIP(),
		}).Info("Processing analysis request")

		resp, err := svc.Analyze(ctx, req)
		if err != nil {
			respondPipelineError(c, err)
			return
		}

		logger.WithFields(logrus.Fields{
			"image_ref":          req.ImageRef,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
			"warnings":           len(resp.Warnings),
			"fallbacks":          len(resp.FallbacksApplied),
		}).Info("Analysis request completed")

		c.JSON(http.StatusOK, resp)
	}
}

func analyzeBatch(svc service.AnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req models.AnalyzeBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		if len(req.Images) == 0 {
			respondError(c, http.StatusBadRequest, "batch must name at least one image", nil)
			return
		}

		c.JSON(http.StatusOK, svc.AnalyzeBatch(ctx, req.Images))
	}
}

func getRecord(svc service.AnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := svc.GetRecord(c.Request.Context(), c.Param("imageID"))
		if err != nil {
			respondPipelineError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func reportMetrics(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.GetMetrics())
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// respondPipelineError maps pipeline and application errors to HTTP status
// codes. Pipeline failures always name the failing stage in the response.
func respondPipelineError(c *gin.Context, err error) {
	var pipeErr *pipeline.PipelineError
	if errors.As(err, &pipeErr) {
		status := statusForFailure(pipeErr.Kind)
		logError(c, status, pipeErr)

		c.AbortWithStatusJSON(status, models.ErrorResponse{
			Error:   string(pipeErr.Kind),
			Message: pipeErr.Error(),
			Stage:   pipeErr.Stage,
		})
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		logError(c, appErr.StatusCode, appErr)
		c.AbortWithStatusJSON(appErr.StatusCode, models.ErrorResponse{
			Error:   string(appErr.Type),
			Message: appErr.Message,
			Stage:   appErr.Stage,
		})
		return
	}

	status := determineStatusCode(err)
	logError(c, status, err)
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
	})
}

func statusForFailure(kind pipeline.FailureKind) int {
	switch kind {
	case pipeline.FailureTokenBudget:
		return http.StatusTooManyRequests
	case pipeline.FailureMetadataExtraction:
		return http.StatusBadGateway
	case pipeline.FailureStageExecution, pipeline.FailureConsolidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func determineStatusCode(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func logError(c *gin.Context, code int, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")
}

func respondError(c *gin.Context, code int, message string, err error) {
	logError(c, code, fmt.Errorf("%s: %v", message, err))
	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
