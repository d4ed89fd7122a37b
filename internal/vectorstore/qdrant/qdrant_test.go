package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newschat/rag-backend/internal/config"
	"github.com/newschat/rag-backend/internal/entity"
	pkgRetry "github.com/newschat/rag-backend/internal/pkg/retry"
	"github.com/newschat/rag-backend/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(serverURL string) *Store {
	cfg := config.QdrantConnectorConfig{
		Collection: "test_collection",
		Retry:      pkgRetry.RetryConfig{Attempts: 1},
	}
	cfg.Url = serverURL
	cfg.Token = "secret-key"
	return NewStore(cfg, zap.NewNop())
}

func TestEnsureReadyCreatesMissingCollection(t *testing.T) {
	var createBody createCollectionRequest
	created := false

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("api-key"))
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			created = true
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createBody))
			w.Write([]byte(`{"result":true}`))
		}
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	require.NoError(t, s.EnsureReady(context.Background(), 384))

	assert.True(t, created)
	assert.Equal(t, 384, createBody.Vectors.Size)
	assert.Equal(t, "Cosine", createBody.Vectors.Distance)
}

func TestEnsureReadySkipsExistingCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"result":{"status":"green"}}`))
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	require.NoError(t, s.EnsureReady(context.Background(), 384))
	assert.Equal(t, 384, s.dimension)
}

func TestEnsureReadySurfacesConnectivityError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	assert.Error(t, s.EnsureReady(context.Background(), 384))
}

func TestUpsertSendsPoints(t *testing.T) {
	var body upsertRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/test_collection/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"result":{"status":"acknowledged"}}`))
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	s.dimension = 2
	err := s.Upsert(context.Background(), []vectorstore.Point{
		{ID: "p1", Vector: []float32{0.1, 0.2}, Payload: vectorstore.Payload{Title: "T", Text: "body", SourceID: "d1"}},
	})
	require.NoError(t, err)

	require.Len(t, body.Points, 1)
	assert.Equal(t, "p1", body.Points[0].ID)
	assert.Equal(t, "T", body.Points[0].Payload.Title)
	assert.Equal(t, "d1", body.Points[0].Payload.SourceID)
}

func TestUpsertRejectsWrongDimensionLocally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for a locally rejected upsert")
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	s.dimension = 2
	err := s.Upsert(context.Background(), []vectorstore.Point{
		{ID: "p1", Vector: []float32{0.1, 0.2, 0.3}},
	})
	assert.ErrorIs(t, err, entity.ErrDimensionMismatch)
}

func TestUpsertBeforeReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected before EnsureReady")
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	err := s.Upsert(context.Background(), []vectorstore.Point{
		{ID: "p1", Vector: []float32{0.1, 0.2}},
	})
	assert.ErrorIs(t, err, entity.ErrStoreNotReady)
}

func TestSearchParsesHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/test_collection/points/search", r.URL.Path)
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 4, req.Limit)
		assert.True(t, req.WithPayload)

		w.Write([]byte(`{"result":[
			{"id":"a","score":0.9,"payload":{"title":"One","text":"t1","source_id":"d1"}},
			{"id":"b","score":0.5,"payload":{"title":"Two","text":"t2","source_id":"d2"}}
		]}`))
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	hits, err := s.Search(context.Background(), []float32{1, 0}, 4)
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 0.9, float64(hits[0].Score), 1e-6)
	assert.Equal(t, "Two", hits[1].Payload.Title)
}

func TestCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/test_collection/points/count", r.URL.Path)
		w.Write([]byte(`{"result":{"count":42}}`))
	}))
	defer server.Close()

	s := newTestStore(server.URL)
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
