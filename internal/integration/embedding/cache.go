package embedding

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache memoizes embeddings by input text. Embeddings are deterministic for
// a fixed model, so a TTL cache in front of the connector saves repeated
// calls for popular queries.
type Cache struct {
	inner Embedder
	cache *gocache.Cache
}

func NewCache(inner Embedder, ttl time.Duration) *Cache {
	return &Cache{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.cache.Get(text); ok {
		return cached.([]float32), nil
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(text, vector)
	return vector, nil
}

func (c *Cache) ProbeDimension(ctx context.Context) (int, error) {
	return c.inner.ProbeDimension(ctx)
}
