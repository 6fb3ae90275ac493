package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	VectorBackendPgvector = "pgvector"
	VectorBackendWeaviate = "weaviate"

	// PgvectorDimensions is the width of document_chunks.embedding in migrations/
	PgvectorDimensions = 1536
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// APIKey guards the HTTP API when set
	APIKey string `envconfig:"API_KEY"`

	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`

	// DatabaseURL is required for the pgvector backend
	DatabaseURL string `envconfig:"DATABASE_URL"`

	Collection    string `envconfig:"COLLECTION" default:"askdoc-production-v1"`
	VectorBackend string `envconfig:"VECTOR_BACKEND" default:"pgvector"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	WeaviateAPIKey string `envconfig:"WEAVIATE_API_KEY"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIEndpoint      string `envconfig:"OPENAI_ENDPOINT"`
	OpenAIAPIVersion    string `envconfig:"OPENAI_API_VERSION" default:"2024-02-15-preview"`
	ChatDeployment      string `envconfig:"CHAT_DEPLOYMENT" default:"gpt-4o"`
	EmbeddingDeployment string `envconfig:"EMBEDDING_DEPLOYMENT" default:"text-embedding-ada-002"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`

	DocIntelEndpoint string        `envconfig:"DOC_INTEL_ENDPOINT"`
	DocIntelKey      string        `envconfig:"DOC_INTEL_KEY"`
	OCRRatePerSec    float64       `envconfig:"OCR_RATE_PER_SEC" default:"1"`
	OCRPollInterval  time.Duration `envconfig:"OCR_POLL_INTERVAL" default:"1s"`
	OCRMaxWait       time.Duration `envconfig:"OCR_MAX_WAIT" default:"2m"`

	PdftoppmPath string `envconfig:"PDFTOPPM_PATH" default:"pdftoppm"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"2000"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"200"`
	TopK         int `envconfig:"TOP_K" default:"5"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"askdoc-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("ASKDOC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.VectorBackend {
	case VectorBackendPgvector:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when VECTOR_BACKEND=pgvector")
		}
		if c.EmbeddingDimensions != 0 && c.EmbeddingDimensions != PgvectorDimensions {
			return fmt.Errorf("EMBEDDING_DIMENSIONS must be %d when VECTOR_BACKEND=pgvector, got %d", PgvectorDimensions, c.EmbeddingDimensions)
		}
	case VectorBackendWeaviate:
		if c.WeaviateHost == "" {
			return fmt.Errorf("WEAVIATE_HOST is required when VECTOR_BACKEND=weaviate")
		}
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// IsAzureOpenAI reports whether generation and embeddings go through an
// Azure OpenAI resource rather than api.openai.com.
func (c *Config) IsAzureOpenAI() bool {
	return c.OpenAIEndpoint != ""
}

func (c *Config) HasDocIntel() bool {
	return c.DocIntelEndpoint != "" && c.DocIntelKey != ""
}
