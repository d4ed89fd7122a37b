package entity

// Document is a raw source article produced by the document feed.
// Documents are immutable once fetched; IDs come from the feed and are not
// guaranteed unique, so ingestion derives its own stable ids.
type Document struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// DocumentFile is the on-disk format written by the feed fetcher and
// consumed at ingestion startup.
type DocumentFile struct {
	Articles []Document `json:"articles"`
}

// RetrievalResult is one scored hit from a vector search. Produced per
// request, never persisted.
type RetrievalResult struct {
	ChunkID          string  `json:"id"`
	Score            float32 `json:"score"`
	SourceDocumentID string  `json:"-"`
	Title            string  `json:"title"`
	Text             string  `json:"-"`
}
