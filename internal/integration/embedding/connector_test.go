package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newschat/rag-backend/internal/config"
	"github.com/newschat/rag-backend/internal/entity"
	pkgRetry "github.com/newschat/rag-backend/internal/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConnector(serverURL string) *Connector {
	cfg := config.EmbeddingConnectorConfig{
		EmbedEndpoint: "/embeddings",
		Model:         "test-model",
		Retry:         pkgRetry.RetryConfig{Attempts: 1},
	}
	cfg.Url = serverURL
	return NewConnector(cfg, zap.NewNop())
}

func serveBody(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req entity.EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Input)
		assert.Equal(t, "test-model", req.Model)
		w.Write([]byte(body))
	}))
}

func TestEmbedFlatVector(t *testing.T) {
	server := serveBody(t, `[0.1, 0.2, 0.3]`)
	defer server.Close()

	vector, err := newTestConnector(server.URL).Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestEmbedTokenMatrixIsMeanPooled(t *testing.T) {
	server := serveBody(t, `[[1, 2], [3, 4], [5, 6]]`)
	defer server.Close()

	vector, err := newTestConnector(server.URL).Embed(context.Background(), "some text")
	require.NoError(t, err)
	require.Len(t, vector, 2)
	assert.InDelta(t, 3.0, float64(vector[0]), 1e-6)
	assert.InDelta(t, 4.0, float64(vector[1]), 1e-6)
}

func TestEmbedWrappedVector(t *testing.T) {
	server := serveBody(t, `{"embedding": [0.5, -0.5]}`)
	defer server.Close()

	vector, err := newTestConnector(server.URL).Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5}, vector)
}

func TestEmbedWrappedTokenMatrix(t *testing.T) {
	server := serveBody(t, `{"embedding": [[2, 2], [4, 4]]}`)
	defer server.Close()

	vector, err := newTestConnector(server.URL).Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 3}, vector)
}

func TestEmbedUnrecognizedShape(t *testing.T) {
	server := serveBody(t, `{"data": "not a vector"}`)
	defer server.Close()

	_, err := newTestConnector(server.URL).Embed(context.Background(), "some text")
	var formatErr *entity.EmbeddingFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Shape, "not a vector")
}

func TestProbeDimension(t *testing.T) {
	var probed string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req entity.EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		probed = req.Input
		w.Write([]byte(`[0.1, 0.2, 0.3, 0.4]`))
	}))
	defer server.Close()

	dim, err := newTestConnector(server.URL).ProbeDimension(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, dim)
	assert.Equal(t, "hello world", probed)
}

func TestCacheAvoidsSecondCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[1, 2]`))
	}))
	defer server.Close()

	cached := NewCache(newTestConnector(server.URL), time.Minute)

	first, err := cached.Embed(context.Background(), "repeated query")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "repeated query")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestMockEmbedderIsDeterministic(t *testing.T) {
	m := NewMockConnector(zap.NewNop())

	a, err := m.Embed(context.Background(), "same input")
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), "same input")
	require.NoError(t, err)
	other, err := m.Embed(context.Background(), "different input")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)

	dim, err := m.ProbeDimension(context.Background())
	require.NoError(t, err)
	assert.Len(t, a, dim)
}
