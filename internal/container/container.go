package container

import (
	"context"
	"fmt"
	"net/http"

	"go-design-analyzer/internal/config"
	"go-design-analyzer/internal/factory"
	"go-design-analyzer/internal/llm"
	"go-design-analyzer/internal/logger"
	"go-design-analyzer/internal/observer"
	"go-design-analyzer/internal/pipeline"
	"go-design-analyzer/internal/repository"
	"go-design-analyzer/internal/service"
	"go-design-analyzer/internal/transport"
	"go-design-analyzer/internal/vision"
	"go-design-analyzer/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config  *config.Config
	store   repository.AnalysisStore
	metrics *observer.MetricsObserver
	service service.AnalysisService
	handler http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context) (*Container, error) {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Model client. The OCR backend runs without one, but the analysis and
	// synthesis stages always need it.
	var modelClient llm.StageModelClient
	if cfg.GeminiAPIKey != "" {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create model client: %w", err)
		}
		modelClient = client
	} else {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	visionClient, err := factory.CreateVisionClient(factory.VisionBackend(cfg.VisionBackend), modelClient, cfg.VisionModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	extractor := vision.NewMetadataExtractor(visionClient)

	stages := []pipeline.Stage{
		pipeline.NewVisualAnalysisStage(modelClient, cfg.Stage1Model),
		pipeline.NewSynthesisStage(modelClient, cfg.Stage2Model),
	}

	policy, err := pipeline.PolicyFromName(string(cfg.FallbackPolicy))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fallback policy: %w", err)
	}

	// Progress fan-out
	publisher := observer.NewPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(metrics)

	orchestrator := pipeline.NewOrchestrator(extractor, cfg.VisionModel, stages, policy, publisher)
	consolidator := pipeline.NewConsolidator()

	store, err := repository.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open analysis store: %w", err)
	}

	sources, err := factory.NewSourceSelector(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create image sources: %w", err)
	}

	svc := service.NewAnalysisService(
		sources,
		orchestrator,
		consolidator,
		store,
		validation.NewRefValidator(),
		cfg.Budgets,
	)

	handler := transport.NewHandler(svc, metrics, cfg)

	return &Container{
		config:  cfg,
		store:   store,
		metrics: metrics,
		service: svc,
		handler: handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the application configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the analysis service
func (c *Container) Service() service.AnalysisService {
	return c.service
}

// Close releases held resources
func (c *Container) Close() error {
	return c.store.Close()
}
