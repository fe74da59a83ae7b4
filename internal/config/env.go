package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AwsRegion    string
	AwsAccessKey string
	AwsSecretKey string
	S3Endpoint   string

	IntakeBucket    string
	ProcessedBucket string
	FailedBucket    string
	FlattenKeys     bool

	StorageMaxRetries  int
	StorageBackoffUnit time.Duration

	OCRBackend      string
	OCRPollInterval time.Duration
	OCRMaxPolls     int

	EmbedProvider string
	EmbedModel    string
	EmbedDim      int
	EmbedMaxChars int
	EmbedStrategy string

	SearchBackend      string
	OpenSearchEndpoint string
	OpenSearchIndex    string
	OpenSearchSign     bool
	DatabaseURL        string

	BedrockModelID     string
	DefaultModelFamily string
	MaxTokens          int
	Temperature        float64
	TopP               float64
	MaxContextLength   int

	GeminiAPIKey string
	GenModel     string

	Port              string
	IngestConcurrency int
	EventTimeout      time.Duration
	LogLevel          string
	LogFormat         string
}

// Embedding model and vector length used when EMBED_MODEL or EMBED_DIM is unset.
var embedDefaults = map[string]struct {
	model string
	dim   int
}{
	"bedrock": {"amazon.titan-embed-text-v1", 1536},
	"gemini":  {"text-embedding-004", 768},
}

// LoadConfig loads the environment variables and return config
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	provider := strings.ToLower(getEnv("EMBED_PROVIDER", "bedrock"))
	embed := embedDefaults[provider]

	cfg := &Config{
		AwsRegion:    getEnv("AWS_REGION", "us-east-1"),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),

		IntakeBucket:    getEnv("INTAKE_BUCKET", ""),
		ProcessedBucket: getEnv("PROCESSED_BUCKET", ""),
		FailedBucket:    getEnv("FAILED_BUCKET", ""),
		FlattenKeys:     getEnvBool("FLATTEN_KEYS", false),

		StorageMaxRetries:  getEnvInt("STORAGE_MAX_RETRIES", 3),
		StorageBackoffUnit: getEnvDuration("STORAGE_BACKOFF_UNIT", time.Second),

		OCRBackend:      strings.ToLower(getEnv("OCR_BACKEND", "textract")),
		OCRPollInterval: getEnvDuration("OCR_POLL_INTERVAL", 5*time.Second),
		OCRMaxPolls:     getEnvInt("OCR_MAX_POLLS", 120),

		EmbedProvider: provider,
		EmbedModel:    getEnv("EMBED_MODEL", embed.model),
		EmbedDim:      getEnvInt("EMBED_DIM", embed.dim),
		EmbedMaxChars: getEnvInt("EMBED_MAX_CHARS", 8000),
		EmbedStrategy: strings.ToLower(getEnv("EMBED_STRATEGY", "truncate")),

		SearchBackend:      strings.ToLower(getEnv("SEARCH_BACKEND", "opensearch")),
		OpenSearchEndpoint: getEnv("OPENSEARCH_ENDPOINT", ""),
		OpenSearchIndex:    getEnv("OPENSEARCH_INDEX", "documents"),
		OpenSearchSign:     getEnvBool("OPENSEARCH_SIGN", true),
		DatabaseURL:        getEnv("DATABASE_URL", ""),

		BedrockModelID:     getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-sonnet-20240229-v1:0"),
		DefaultModelFamily: strings.ToLower(getEnv("DEFAULT_MODEL_FAMILY", "claude")),
		MaxTokens:          getEnvInt("MAX_TOKENS", 4096),
		Temperature:        getEnvFloat("TEMPERATURE", 0.7),
		TopP:               getEnvFloat("TOP_P", 0.9),
		MaxContextLength:   getEnvInt("MAX_CONTEXT_LENGTH", 10000),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GenModel:     getEnv("GEN_MODEL", "gemini-1.5-flash"),

		Port:              getEnv("PORT", "8080"),
		IngestConcurrency: getEnvInt("INGEST_CONCURRENCY", 4),
		EventTimeout:      getEnvDuration("EVENT_TIMEOUT", 5*time.Minute),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if err := cfg.validateCommon(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validateCommon() error {
	var errs []error
	switch c.EmbedProvider {
	case "bedrock":
	case "gemini":
		if strings.HasPrefix(c.EmbedModel, "amazon.") || strings.HasPrefix(c.EmbedModel, "cohere.") {
			errs = append(errs, fmt.Errorf("EMBED_MODEL %q is a Bedrock model, not usable with EMBED_PROVIDER=gemini", c.EmbedModel))
		}
	default:
		errs = append(errs, fmt.Errorf("EMBED_PROVIDER %q not supported", c.EmbedProvider))
	}
	if c.EmbedDim <= 0 {
		errs = append(errs, fmt.Errorf("EMBED_DIM must be positive, got %d", c.EmbedDim))
	}
	if c.StorageMaxRetries < 1 {
		errs = append(errs, fmt.Errorf("STORAGE_MAX_RETRIES must be at least 1, got %d", c.StorageMaxRetries))
	}
	switch c.EmbedStrategy {
	case "truncate", "average":
	default:
		errs = append(errs, fmt.Errorf("EMBED_STRATEGY %q not supported", c.EmbedStrategy))
	}
	switch c.SearchBackend {
	case "opensearch", "pgvector":
	default:
		errs = append(errs, fmt.Errorf("SEARCH_BACKEND %q not supported", c.SearchBackend))
	}
	return errors.Join(errs...)
}

// ValidateIngest checks the settings the ingestion entry point depends on.
func (c *Config) ValidateIngest() error {
	var errs []error
	if c.IntakeBucket == "" {
		errs = append(errs, errors.New("INTAKE_BUCKET not set"))
	}
	if c.ProcessedBucket == "" {
		errs = append(errs, errors.New("PROCESSED_BUCKET not set"))
	}
	if c.FailedBucket == "" {
		errs = append(errs, errors.New("FAILED_BUCKET not set"))
	}
	switch c.OCRBackend {
	case "textract", "docconv":
	default:
		errs = append(errs, fmt.Errorf("OCR_BACKEND %q not supported", c.OCRBackend))
	}
	errs = append(errs, c.validateIndex())
	return errors.Join(errs...)
}

// ValidateQuery checks the settings the query entry point depends on.
func (c *Config) ValidateQuery() error {
	var errs []error
	if c.MaxContextLength <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONTEXT_LENGTH must be positive, got %d", c.MaxContextLength))
	}
	if c.BedrockModelID == "" {
		errs = append(errs, errors.New("BEDROCK_MODEL_ID not set"))
	}
	errs = append(errs, c.validateIndex())
	return errors.Join(errs...)
}

func (c *Config) validateIndex() error {
	switch c.SearchBackend {
	case "pgvector":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL not set")
		}
	default:
		if c.OpenSearchEndpoint == "" {
			return errors.New("OPENSEARCH_ENDPOINT not set")
		}
	}
	if c.EmbedProvider == "gemini" && c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY not set")
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config: not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config: not a float, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config: not a bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

// getEnvDuration accepts Go durations ("750ms") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	slog.Warn("config: not a duration, using default", "key", key, "value", v, "default", def)
	return def
}
