package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	chatapi "github.com/newschat/rag-backend/internal/api/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCounter struct {
	size int
	err  error
}

func (s *stubCounter) Count(context.Context) (int, error) {
	return s.size, s.err
}

func TestHealthReportsVectorStoreSize(t *testing.T) {
	router := SetupRouter(chatapi.NewHandler(nil), &stubCounter{size: 42}, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","vectorStoreSize":42}`, rec.Body.String())
}

func TestHealthReportsStoreFailure(t *testing.T) {
	router := SetupRouter(chatapi.NewHandler(nil), &stubCounter{err: errors.New("qdrant unreachable")}, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"qdrant unreachable"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	router := SetupRouter(chatapi.NewHandler(nil), &stubCounter{}, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/chat", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
