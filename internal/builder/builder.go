package builder

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/newschat/rag-backend/internal/api"
	chatapi "github.com/newschat/rag-backend/internal/api/chat"
	"github.com/newschat/rag-backend/internal/config"
	"github.com/newschat/rag-backend/internal/feed"
	"github.com/newschat/rag-backend/internal/ingest"
	"github.com/newschat/rag-backend/internal/integration/embedding"
	"github.com/newschat/rag-backend/internal/integration/generation"
	"github.com/newschat/rag-backend/internal/repository"
	"github.com/newschat/rag-backend/internal/session"
	"github.com/newschat/rag-backend/internal/usecase/chat"
	"github.com/newschat/rag-backend/internal/vectorstore"
	"github.com/newschat/rag-backend/internal/vectorstore/memory"
	"github.com/newschat/rag-backend/internal/vectorstore/qdrant"
	"go.uber.org/zap"
)

func Build() (*App, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
		zap.String("vector_store_driver", cfg.VectorStoreDriver),
	)

	// Initialize external service connectors (with mock support)
	var embedder embedding.Embedder
	var generator chat.Generator

	if cfg.EnableMocks {
		logger.Info("Using mock connectors for external services")
		embedder = embedding.NewMockConnector(logger)
		generator = generation.NewMockConnector(logger)
	} else {
		logger.Info("Using real connectors for external services")
		embedder = embedding.NewConnector(cfg.EmbeddingCfg, logger)
		generator = generation.NewConnector(cfg.GenerationCfg, logger)
	}
	embedder = embedding.NewCache(embedder, cfg.EmbeddingCacheTTL)

	// Initialize vector store
	var store vectorstore.Store
	var memStore *memory.Store
	if cfg.VectorStoreDriver == "memory" {
		memStore = memory.NewStore(cfg.MemorySnapshotPath, logger)
		store = memStore
	} else {
		store = qdrant.NewStore(cfg.QdrantCfg, logger)
	}

	// The embedding dimension drives collection creation and all later
	// dimension checks, so failing to learn it is fatal.
	vectorSize, err := embedder.ProbeDimension(ctx)
	if err != nil {
		return nil, fmt.Errorf("probe embedding dimension: %w", err)
	}
	logger.Info("Embedding dimension probed", zap.Int("vector_size", vectorSize))

	if err := store.EnsureReady(ctx, vectorSize); err != nil {
		return nil, fmt.Errorf("prepare vector store: %w", err)
	}

	if err := ingestDocuments(ctx, cfg, embedder, store, memStore, vectorSize, logger); err != nil {
		return nil, err
	}

	// Initialize session store
	sessionRepo := repository.NewSessionFile(filepath.Join(cfg.DataDir, "sessions.json"), logger)
	sessionStore, err := session.NewStore(sessionRepo, logger)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	logger.Info("Session store initialized", zap.Int("sessions", sessionStore.Count()))

	// Initialize use case
	chatUC := chat.NewUsecase(
		embedder,
		store,
		generator,
		sessionStore,
		cfg.DefaultTopK,
		cfg.HistoryWindow,
		logger,
	)

	// Setup API handlers and router
	chatHandler := chatapi.NewHandler(chatUC)
	router := api.SetupRouter(chatHandler, store, logger)
	logger.Info("HTTP router configured")

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server: server,
		logger: logger,
	}, nil
}

// ingestDocuments optionally refreshes the documents file from the
// configured feeds, then indexes it. A missing documents file leaves the
// store empty; that only degrades answers, so the server still starts.
func ingestDocuments(
	ctx context.Context,
	cfg *config.Config,
	embedder embedding.Embedder,
	store vectorstore.Store,
	memStore *memory.Store,
	vectorSize int,
	logger *zap.Logger,
) error {
	articlesPath := filepath.Join(cfg.DataDir, "articles.json")

	if len(cfg.FeedURLs) > 0 {
		docs := feed.NewFetcher(logger).Fetch(ctx, cfg.FeedURLs, cfg.MaxFeedArticles)
		if len(docs) > 0 {
			if err := feed.WriteDocuments(articlesPath, docs); err != nil {
				return fmt.Errorf("write documents file: %w", err)
			}
		}
	}

	docs, err := feed.LoadDocuments(articlesPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Documents file not found, starting with an empty index",
				zap.String("path", articlesPath))
			return nil
		}
		return fmt.Errorf("load documents file: %w", err)
	}

	pipeline := ingest.NewPipeline(embedder, store, ingest.PipelineConfig{
		MaxChars:   cfg.ChunkMaxChars,
		VectorSize: vectorSize,
		Workers:    cfg.IngestWorkers,
	}, logger)

	stats, err := pipeline.Ingest(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingest documents: %w", err)
	}
	logger.Info("Ingestion completed",
		zap.Int("documents", stats.Documents),
		zap.Int("chunks_indexed", stats.ChunksIndexed),
		zap.Int("chunks_skipped", stats.ChunksSkipped),
	)

	if memStore != nil && cfg.MemorySnapshotPath != "" {
		if err := memStore.Persist(ctx); err != nil {
			logger.Warn("Failed to persist memory store snapshot", zap.Error(err))
		}
	}
	return nil
}

// FetchFeeds pulls the configured RSS feeds and rewrites the documents
// file, without starting the server.
func FetchFeeds() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}

	if len(cfg.FeedURLs) == 0 {
		return fmt.Errorf("FEED_URLS is empty, nothing to fetch")
	}

	docs := feed.NewFetcher(logger).Fetch(ctx, cfg.FeedURLs, cfg.MaxFeedArticles)
	if len(docs) == 0 {
		return fmt.Errorf("no articles fetched from %d feeds", len(cfg.FeedURLs))
	}

	articlesPath := filepath.Join(cfg.DataDir, "articles.json")
	if err := feed.WriteDocuments(articlesPath, docs); err != nil {
		return fmt.Errorf("write documents file: %w", err)
	}

	logger.Info("Documents file written",
		zap.String("path", articlesPath),
		zap.Int("articles", len(docs)),
	)
	return nil
}
