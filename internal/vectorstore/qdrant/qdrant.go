package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/newschat/rag-backend/internal/config"
	"github.com/newschat/rag-backend/internal/entity"
	"github.com/newschat/rag-backend/internal/integration/common"
	"github.com/newschat/rag-backend/internal/vectorstore"
	pkghttp "github.com/newschat/rag-backend/pkg/http"
	"go.uber.org/zap"
)

// Store is the delegated strategy: upserts and searches are forwarded to an
// external Qdrant instance over its REST API. The collection is created on
// first use with cosine distance and the probed vector size.
type Store struct {
	config    config.QdrantConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
	dimension int
}

func NewStore(cfg config.QdrantConnectorConfig, logger *zap.Logger) *Store {
	httpCfg := cfg.HTTPClientConfig
	// Qdrant authenticates with the api-key header, not a bearer token.
	httpCfg.Token = ""

	return &Store{
		config:    cfg,
		connector: common.NewBaseConnector(httpCfg, logger),
		logger:    logger,
	}
}

type vectorsConfig struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorsConfig `json:"vectors"`
}

type upsertPoint struct {
	ID      string              `json:"id"`
	Vector  []float32           `json:"vector"`
	Payload vectorstore.Payload `json:"payload"`
}

type upsertRequest struct {
	Points []upsertPoint `json:"points"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []struct {
		ID      string              `json:"id"`
		Score   float32             `json:"score"`
		Payload vectorstore.Payload `json:"payload"`
	} `json:"result"`
}

type countRequest struct {
	Exact bool `json:"exact"`
}

type countResponse struct {
	Result struct {
		Count int `json:"count"`
	} `json:"result"`
}

// EnsureReady checks that the collection exists and creates it if absent.
// Check-then-create is not atomic, which is acceptable at single-process
// startup.
func (s *Store) EnsureReady(ctx context.Context, dimension int) error {
	endpoint := "/collections/" + s.config.Collection

	err := s.do(ctx, http.MethodGet, endpoint, nil, nil)
	if err == nil {
		ctxzap.Info(ctx, "qdrant collection exists", zap.String("collection", s.config.Collection))
		s.dimension = dimension
		return nil
	}

	var httpErr *pkghttp.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check collection %s: %w", s.config.Collection, err)
	}

	ctxzap.Info(ctx, "creating qdrant collection",
		zap.String("collection", s.config.Collection), zap.Int("vector_size", dimension))

	req := createCollectionRequest{Vectors: vectorsConfig{Size: dimension, Distance: "Cosine"}}
	if err := s.do(ctx, http.MethodPut, endpoint, req, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", s.config.Collection, err)
	}
	s.dimension = dimension
	return nil
}

// Upsert rejects mismatched vectors locally before the remote call, so both
// store strategies fail identically.
func (s *Store) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}

	if s.dimension == 0 {
		return entity.ErrStoreNotReady
	}
	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("point %s: expected %d dimensions, got %d: %w",
				p.ID, s.dimension, len(p.Vector), entity.ErrDimensionMismatch)
		}
	}

	req := upsertRequest{Points: make([]upsertPoint, 0, len(points))}
	for _, p := range points {
		req.Points = append(req.Points, upsertPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
	}

	endpoint := "/collections/" + s.config.Collection + "/points?wait=true"
	if err := s.do(ctx, http.MethodPut, endpoint, req, nil); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]vectorstore.Hit, error) {
	var resp searchResponse
	req := searchRequest{Vector: vector, Limit: limit, WithPayload: true}

	endpoint := "/collections/" + s.config.Collection + "/points/search"
	if err := s.do(ctx, http.MethodPost, endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]vectorstore.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, vectorstore.Hit{ID: r.ID, Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var resp countResponse

	endpoint := "/collections/" + s.config.Collection + "/points/count"
	if err := s.do(ctx, http.MethodPost, endpoint, countRequest{Exact: true}, &resp); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return resp.Result.Count, nil
}

// do wraps the connector call with the configured retry policy. HTTP 4xx
// responses are not retried; connectivity failures and 5xx are.
func (s *Store) do(ctx context.Context, method, endpoint string, reqBody, respBody any) error {
	var opts []pkghttp.RequestOpt
	if s.config.Token != "" {
		opts = append(opts, pkghttp.WithHeader("api-key", s.config.Token))
	}

	retryOpts := append(s.config.Retry.ToRetryOptions(),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var httpErr *pkghttp.HTTPError
			if errors.As(err, &httpErr) {
				return httpErr.StatusCode >= 500
			}
			return true
		}),
	)

	return retry.Do(func() error {
		return s.connector.DoRequest(ctx, method, endpoint, reqBody, respBody, opts...)
	}, retryOpts...)
}
