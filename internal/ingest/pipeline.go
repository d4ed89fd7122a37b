package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/newschat/rag-backend/internal/entity"
	"github.com/newschat/rag-backend/internal/vectorstore"
	"go.uber.org/zap"
)

// Embedder is the slice of the embedding contract the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the slice of the index contract the pipeline needs.
type VectorStore interface {
	Upsert(ctx context.Context, points []vectorstore.Point) error
}

// Stats summarizes one ingestion run.
type Stats struct {
	Documents     int
	ChunksIndexed int
	ChunksSkipped int
}

// Pipeline turns raw documents into indexed chunks: split, embed with the
// document title prefixed, and upsert one point batch per document. Each
// run generates fresh point ids, so re-ingesting the same documents appends
// duplicates rather than replacing prior chunks.
type Pipeline struct {
	embedder   Embedder
	store      VectorStore
	maxChars   int
	vectorSize int
	workers    int
	logger     *zap.Logger
}

type PipelineConfig struct {
	MaxChars   int
	VectorSize int
	Workers    int
}

func NewPipeline(embedder Embedder, store VectorStore, cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{
		embedder:   embedder,
		store:      store,
		maxChars:   cfg.MaxChars,
		vectorSize: cfg.VectorSize,
		workers:    workers,
		logger:     logger,
	}
}

// Ingest processes documents with a bounded worker pool. Chunks of one
// document keep their order within that document's point batch. A chunk
// whose embedding cannot be normalized or has the wrong length is skipped
// and counted; any other failure aborts the run.
func (p *Pipeline) Ingest(ctx context.Context, docs []entity.Document) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		stats    Stats
		firstErr error
	)

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for _, doc := range docs {
		wg.Add(1)
		sem <- struct{}{}
		go func(doc entity.Document) {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			indexed, skipped, err := p.ingestDocument(ctx, doc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				cancel()
				return
			}
			stats.Documents++
			stats.ChunksIndexed += indexed
			stats.ChunksSkipped += skipped
		}(doc)
	}
	wg.Wait()

	if firstErr != nil {
		return stats, firstErr
	}

	p.logger.Info("ingestion finished",
		zap.Int("documents", stats.Documents),
		zap.Int("chunks_indexed", stats.ChunksIndexed),
		zap.Int("chunks_skipped", stats.ChunksSkipped),
	)
	return stats, nil
}

func (p *Pipeline) ingestDocument(ctx context.Context, doc entity.Document) (indexed, skipped int, err error) {
	// The feed does not guarantee ids; derive a stable one per run.
	sourceID := doc.ID
	if sourceID == "" {
		sourceID = uuid.NewString()
	}
	title := doc.Title
	if title == "" {
		title = "(no title)"
	}

	chunks := SplitText(doc.Content, p.maxChars)
	points := make([]vectorstore.Point, 0, len(chunks))
	for _, text := range chunks {
		// Prefixing the title keeps document context in every chunk's
		// embedding, which improves retrieval precision.
		vector, embedErr := p.embedder.Embed(ctx, title+"\n\n"+text)
		if embedErr != nil {
			var formatErr *entity.EmbeddingFormatError
			if errors.As(embedErr, &formatErr) {
				p.logger.Warn("skipping chunk with unusable embedding",
					zap.String("document_id", sourceID), zap.Error(embedErr))
				skipped++
				continue
			}
			return 0, skipped, fmt.Errorf("embed chunk of document %s: %w", sourceID, embedErr)
		}
		if len(vector) != p.vectorSize {
			p.logger.Warn("skipping chunk with wrong embedding dimension",
				zap.String("document_id", sourceID),
				zap.Int("expected", p.vectorSize), zap.Int("got", len(vector)))
			skipped++
			continue
		}

		// Point ids are fresh uuids, never the document id, so ids cannot
		// collide across documents or with the source id.
		points = append(points, vectorstore.Point{
			ID:     uuid.NewString(),
			Vector: vector,
			Payload: vectorstore.Payload{
				Title:    title,
				URL:      doc.URL,
				Text:     text,
				SourceID: sourceID,
			},
		})
	}

	if len(points) > 0 {
		if err := p.store.Upsert(ctx, points); err != nil {
			return 0, skipped, fmt.Errorf("upsert points of document %s: %w", sourceID, err)
		}
	}
	return len(points), skipped, nil
}
