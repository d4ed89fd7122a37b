package vectorstore

import "context"

// Payload is the metadata carried alongside every indexed vector. SourceID
// ties a point back to the document it was chunked from so retrieval can
// group citations per source.
type Payload struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Text     string `json:"text"`
	SourceID string `json:"source_id"`
}

// Point is one indexable vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is one scored search result.
type Hit struct {
	ID      string
	Score   float32
	Payload Payload
}

// Store abstracts similarity search. The in-process brute-force store and
// the Qdrant delegate both satisfy it and must produce equivalent rankings
// for identical data.
type Store interface {
	// EnsureReady prepares the store for vectors of the given dimension,
	// creating backing structures if absent. Must be called before any
	// other operation.
	EnsureReady(ctx context.Context, dimension int) error

	// Upsert inserts or replaces points by id. Every vector must match the
	// dimension passed to EnsureReady; mismatches reject the batch.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to limit hits ordered by strictly descending cosine
	// similarity, ties broken by insertion order.
	Search(ctx context.Context, vector []float32, limit int) ([]Hit, error)

	// Count reports the number of stored points.
	Count(ctx context.Context) (int, error)
}
