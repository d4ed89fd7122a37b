package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	pkgRetry "github.com/newschat/rag-backend/internal/pkg/retry"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr string `env:"SERVER_ADDR" envDefault:":4000"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Data directory holding articles.json, sessions.json and the optional
	// memory-store snapshot
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// External service configurations
	EmbeddingCfg  EmbeddingConnectorConfig  `envPrefix:"EMBEDDING_"`
	GenerationCfg GenerationConnectorConfig `envPrefix:"GENERATION_"`
	QdrantCfg     QdrantConnectorConfig     `envPrefix:"QDRANT_"`

	// Vector store strategy: "memory" or "qdrant"
	VectorStoreDriver string `env:"VECTOR_STORE_DRIVER" envDefault:"qdrant"`
	// When set and the memory driver is active, points are snapshotted to
	// this file after ingestion and reloaded at startup
	MemorySnapshotPath string `env:"MEMORY_SNAPSHOT_PATH"`

	// Retrieval configuration
	ChunkMaxChars     int           `env:"CHUNK_MAX_CHARS" envDefault:"1000"`
	IngestWorkers     int           `env:"INGEST_WORKERS" envDefault:"4"`
	DefaultTopK       int           `env:"DEFAULT_TOP_K" envDefault:"4"`
	HistoryWindow     int           `env:"HISTORY_WINDOW" envDefault:"10"`
	EmbeddingCacheTTL time.Duration `env:"EMBEDDING_CACHE_TTL" envDefault:"10m"`

	// Feed configuration; when FEED_URLS is empty the fetch step is skipped
	// and whatever articles.json already exists is ingested
	FeedURLs        []string `env:"FEED_URLS" envSeparator:","`
	MaxFeedArticles int      `env:"FEED_MAX_ARTICLES" envDefault:"50"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Environment (set from flag, not from env var)
	Environment string
}

type EmbeddingConnectorConfig struct {
	HTTPClientConfig
	EmbedEndpoint string               `env:"EMBED_ENDPOINT" envDefault:"/embeddings"`
	Model         string               `env:"MODEL"`
	Retry         pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type GenerationConnectorConfig struct {
	HTTPClientConfig
	CompleteEndpoint string               `env:"COMPLETE_ENDPOINT" envDefault:"/chat/completions"`
	Model            string               `env:"MODEL" envDefault:"llama-3.3-70b-versatile"`
	MaxTokens        int                  `env:"MAX_TOKENS" envDefault:"1000"`
	Temperature      float64              `env:"TEMPERATURE" envDefault:"0.2"`
	Retry            pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type QdrantConnectorConfig struct {
	HTTPClientConfig
	Collection string               `env:"COLLECTION" envDefault:"news_articles"`
	Retry      pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"30s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"10s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"90s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"15s"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL"`
}

func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	envFile := getEnvFile(*envFlag)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = *envFlag

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.VectorStoreDriver != "memory" && cfg.VectorStoreDriver != "qdrant" {
		return fmt.Errorf("VECTOR_STORE_DRIVER must be 'memory' or 'qdrant', got %q", cfg.VectorStoreDriver)
	}

	if cfg.VectorStoreDriver == "qdrant" && cfg.QdrantCfg.Url == "" {
		return fmt.Errorf("QDRANT_SERVICE_URL is required for the qdrant driver")
	}

	if cfg.ChunkMaxChars < 50 || cfg.ChunkMaxChars > 20000 {
		return fmt.Errorf("CHUNK_MAX_CHARS must be between 50 and 20000, got %d", cfg.ChunkMaxChars)
	}

	if cfg.IngestWorkers < 1 || cfg.IngestWorkers > 32 {
		return fmt.Errorf("INGEST_WORKERS must be between 1 and 32, got %d", cfg.IngestWorkers)
	}

	if cfg.DefaultTopK < 1 || cfg.DefaultTopK > 50 {
		return fmt.Errorf("DEFAULT_TOP_K must be between 1 and 50, got %d", cfg.DefaultTopK)
	}

	if cfg.HistoryWindow < 1 || cfg.HistoryWindow > 100 {
		return fmt.Errorf("HISTORY_WINDOW must be between 1 and 100, got %d", cfg.HistoryWindow)
	}

	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
