package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go-design-analyzer/pkg/models"
)

// FallbackPolicyName selects how the pipeline behaves when the token budget
// runs out or the vision call fails. Exactly one policy applies to the whole
// pipeline; it never varies per call.
type FallbackPolicyName string

const (
	PolicyHardFail FallbackPolicyName = "hard_fail"
	PolicyDegrade  FallbackPolicyName = "degrade"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	// Model services
	GeminiAPIKey string
	VisionModel  string
	Stage1Model  string
	Stage2Model  string

	// Vision backend: "gemini" for the remote vision service, "ocr" for the
	// local tesseract-backed client used in offline/dev setups
	VisionBackend string

	// Fallback policy for the whole pipeline
	FallbackPolicy FallbackPolicyName

	// Token budgets, keyed by model identifier
	Budgets models.BudgetTable

	// Persistence
	DatabasePath string

	// Optional Azure blob source for azblob:// image refs
	AzureAccountName string
	AzureAccountKey  string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 120*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 90*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		VisionModel:  getEnvOrDefault("VISION_MODEL", "gemini-2.5-flash"),
		Stage1Model:  getEnvOrDefault("STAGE1_MODEL", "gemini-2.5-flash"),
		Stage2Model:  getEnvOrDefault("STAGE2_MODEL", "gemini-2.5-pro"),

		VisionBackend:  getEnvOrDefault("VISION_BACKEND", "gemini"),
		FallbackPolicy: FallbackPolicyName(getEnvOrDefault("FALLBACK_POLICY", string(PolicyDegrade))),

		DatabasePath: getEnvOrDefault("DATABASE_PATH", "analysis.db"),

		AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
	}

	cfg.Budgets = loadBudgetTable(cfg)

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.RequestTimeout <= 0 || cfg.AnalysisTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, analysis=%s)",
			cfg.RequestTimeout, cfg.AnalysisTimeout)
	}
	switch cfg.FallbackPolicy {
	case PolicyHardFail, PolicyDegrade:
	default:
		return nil, fmt.Errorf("invalid FALLBACK_POLICY: %q (want %q or %q)",
			cfg.FallbackPolicy, PolicyHardFail, PolicyDegrade)
	}
	switch cfg.VisionBackend {
	case "gemini", "ocr":
	default:
		return nil, fmt.Errorf("invalid VISION_BACKEND: %q (want \"gemini\" or \"ocr\")", cfg.VisionBackend)
	}
	if err := cfg.Budgets.Validate(); err != nil {
		return nil, fmt.Errorf("invalid token budgets: %w", err)
	}
	return cfg, nil
}

// loadBudgetTable builds the per-model budget table. Every configured model
// gets an entry; ceilings are shared across models unless overridden, which
// matches how budgets are actually provisioned (one pool per deployment).
func loadBudgetTable(cfg *Config) models.BudgetTable {
	budget := models.TokenBudget{
		Stage1Ceiling: int(parseIntOrDefault("TOKEN_BUDGET_STAGE1_CEILING", 8000)),
		Stage2Ceiling: int(parseIntOrDefault("TOKEN_BUDGET_STAGE2_CEILING", 8000)),
		Stage3Ceiling: int(parseIntOrDefault("TOKEN_BUDGET_STAGE3_CEILING", 4000)),
		Buffer:        int(parseIntOrDefault("TOKEN_BUDGET_BUFFER", 2000)),
	}

	table := models.BudgetTable{}
	for _, modelID := range []string{cfg.VisionModel, cfg.Stage1Model, cfg.Stage2Model} {
		table[modelID] = budget
	}
	return table
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
