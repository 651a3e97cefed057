package helper

import (
	"fmt"
	"strings"
	"time"
)

// Embedding providers
const (
	EmbeddingProviderLMStudio = "lmstudio"
	EmbeddingProviderOllama   = "ollama"
	EmbeddingProviderHugot    = "hugot"
	EmbeddingProviderNone     = "none"
)

// Similarity policies
const (
	SimilarityPolicyNormalized = "normalized"
	SimilarityPolicyAbsolute   = "absolute"
)

// ServerConfiguration holds the HTTP server settings
type ServerConfiguration struct {
	Host     string
	Port     int
	LogLevel string
}

// NewServerConfiguration reads the server configuration from the environment
func NewServerConfiguration() (*ServerConfiguration, error) {
	config := &ServerConfiguration{
		Host:     GetEnvString("HALLUGUARD_HOST", "0.0.0.0"),
		Port:     GetEnvInt("HALLUGUARD_PORT", 1304),
		LogLevel: GetEnvString("HALLUGUARD_LOG_LEVEL", "info"),
	}
	if config.Port <= 0 || config.Port > 65535 {
		return nil, NewError("server configuration", fmt.Errorf("invalid port %d", config.Port))
	}
	return config, nil
}

// Address returns host:port
func (c *ServerConfiguration) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EmbeddingConfiguration selects and configures the embedding generator
type EmbeddingConfiguration struct {
	Provider       string
	BaseURL        string
	Model          string
	APIKey         string
	BatchSize      int
	Timeout        time.Duration
	MaxConcurrency int
}

// NewEmbeddingConfiguration reads the embedding configuration from the environment.
// Base URL and model default per provider.
func NewEmbeddingConfiguration() (*EmbeddingConfiguration, error) {
	provider := strings.ToLower(GetEnvString("EMBEDDING_PROVIDER", EmbeddingProviderLMStudio))

	var defaultURL, defaultModel string
	switch provider {
	case EmbeddingProviderLMStudio:
		defaultURL = "http://localhost:1234/v1"
		defaultModel = "text-embedding-qwen3-embedding-8b"
	case EmbeddingProviderOllama:
		defaultURL = "http://localhost:11434"
		defaultModel = "qwen3-embedding:8b"
	case EmbeddingProviderHugot:
		defaultModel = "sentence-transformers/all-MiniLM-L6-v2"
	case EmbeddingProviderNone:
	default:
		return nil, NewError("embedding configuration", fmt.Errorf("unknown embedding provider %q", provider))
	}

	config := &EmbeddingConfiguration{
		Provider:       provider,
		BaseURL:        GetEnvString("EMBEDDING_BASE_URL", defaultURL),
		Model:          GetEnvString("EMBEDDING_MODEL", defaultModel),
		APIKey:         GetEnvString("EMBEDDING_API_KEY", ""),
		BatchSize:      GetEnvInt("EMBEDDING_BATCH_SIZE", 20),
		Timeout:        time.Duration(GetEnvInt("EMBEDDING_TIMEOUT_SECONDS", 60)) * time.Second,
		MaxConcurrency: GetEnvInt("EMBEDDING_MAX_CONCURRENCY", 4),
	}
	if config.BatchSize <= 0 {
		return nil, NewError("embedding configuration", fmt.Errorf("batch size must be > 0, got %d", config.BatchSize))
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	return config, nil
}

// ExtractionConfiguration selects the extraction backends and the similarity policy
type ExtractionConfiguration struct {
	NEREnabled            bool
	NERModel              string
	GazetteerPath         string
	StrictExtraction      bool
	SimilarityPolicy      string
	SimilarityMaxDistance int
	// Overrides the default entity type catalog, nil keeps it
	EntityTypes           []string
}

// NewExtractionConfiguration reads the extraction configuration from the environment
func NewExtractionConfiguration() (*ExtractionConfiguration, error) {
	config := &ExtractionConfiguration{
		NEREnabled:            GetEnvBool("NER_ENABLED", true),
		NERModel:              GetEnvString("NER_MODEL", "KnightsAnalytics/distilbert-NER"),
		GazetteerPath:         GetEnvString("GAZETTEER_PATH", ""),
		StrictExtraction:      GetEnvBool("STRICT_EXTRACTION", false),
		SimilarityPolicy:      strings.ToLower(GetEnvString("SIMILARITY_POLICY", SimilarityPolicyNormalized)),
		SimilarityMaxDistance: GetEnvInt("SIMILARITY_MAX_DISTANCE", 2),
		EntityTypes:           GetEnvList("DEFAULT_ENTITY_TYPES", nil),
	}
	switch config.SimilarityPolicy {
	case SimilarityPolicyNormalized, SimilarityPolicyAbsolute:
	default:
		return nil, NewError("extraction configuration", fmt.Errorf("unknown similarity policy %q", config.SimilarityPolicy))
	}
	if config.SimilarityMaxDistance < 0 {
		return nil, NewError("extraction configuration", fmt.Errorf("similarity max distance must be >= 0, got %d", config.SimilarityMaxDistance))
	}
	return config, nil
}
