package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/newschat/rag-backend/internal/config"
	"github.com/newschat/rag-backend/internal/entity"
	"github.com/newschat/rag-backend/internal/integration/common"
	pkghttp "github.com/newschat/rag-backend/pkg/http"
	"go.uber.org/zap"
)

// probeSample is the fixed input used to discover the model's vector size.
const probeSample = "hello world"

// Embedder turns text into a fixed-length vector. Implementations must be
// deterministic for a fixed model and input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ProbeDimension(ctx context.Context) (int, error)
}

// Connector calls an HTTP embedding service and normalizes its raw output
// into one canonical flat vector.
type Connector struct {
	config    config.EmbeddingConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(cfg config.EmbeddingConnectorConfig, logger *zap.Logger) *Connector {
	return &Connector{
		config:    cfg,
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		logger:    logger,
	}
}

// Embed requests an embedding for the given text. The service may answer
// with a flat vector, a per-token vector list (mean-pooled here), or a
// wrapped {"embedding": ...} object; anything else is an
// EmbeddingFormatError.
func (c *Connector) Embed(ctx context.Context, text string) ([]float32, error) {
	req := entity.EmbeddingRequest{Input: text, Model: c.config.Model}

	var raw json.RawMessage
	err := retry.Do(func() error {
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.EmbedEndpoint, req, &raw)
	}, append(c.config.Retry.ToRetryOptions(), retry.Context(ctx), retry.LastErrorOnly(true))...)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}

	vector, err := normalizeVector(raw)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// ProbeDimension embeds the fixed sample once and reports the vector size.
// Called at startup to pin VECTOR_SIZE for the life of the process.
func (c *Connector) ProbeDimension(ctx context.Context) (int, error) {
	vector, err := c.Embed(ctx, probeSample)
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimension: %w", err)
	}

	ctxzap.Info(ctx, "probed embedding dimension", zap.Int("vector_size", len(vector)))
	return len(vector), nil
}

// normalizeVector canonicalizes the three accepted raw shapes into a flat
// vector. Token-vector lists are mean-pooled along the sequence axis.
func normalizeVector(raw json.RawMessage) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	var tokens [][]float32
	if err := json.Unmarshal(raw, &tokens); err == nil && len(tokens) > 0 {
		return meanPool(tokens)
	}

	var wrapped struct {
		Embedding json.RawMessage `json:"embedding"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Embedding != nil {
		return normalizeVector(wrapped.Embedding)
	}

	return nil, &entity.EmbeddingFormatError{Shape: shapeOf(raw)}
}

// meanPool averages per-token vectors into one vector, per hidden
// dimension.
func meanPool(tokens [][]float32) ([]float32, error) {
	dim := len(tokens[0])
	pooled := make([]float64, dim)
	for _, tok := range tokens {
		if len(tok) != dim {
			return nil, &entity.EmbeddingFormatError{Shape: "ragged token matrix"}
		}
		for j, v := range tok {
			pooled[j] += float64(v)
		}
	}

	vector := make([]float32, dim)
	for j := range pooled {
		vector[j] = float32(pooled[j] / float64(len(tokens)))
	}
	return vector, nil
}

// shapeOf gives a short description of an unrecognized payload for error
// messages, without dumping whole response bodies.
func shapeOf(raw json.RawMessage) string {
	const maxShape = 120
	s := string(raw)
	if len(s) > maxShape {
		s = s[:maxShape] + "..."
	}
	return s
}
