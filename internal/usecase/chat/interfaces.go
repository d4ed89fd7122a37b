package chat

import (
	"context"

	"github.com/newschat/rag-backend/internal/entity"
	"github.com/newschat/rag-backend/internal/vectorstore"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Generator interface {
	Complete(ctx context.Context, messages []entity.Message) (string, error)
}

type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]vectorstore.Hit, error)
}

type SessionStore interface {
	GetOrCreate(sessionID string) (string, *entity.Session, error)
	Append(sessionID string, turn entity.Turn) error
}
