package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	chatapi "github.com/newschat/rag-backend/internal/api/chat"
	"github.com/newschat/rag-backend/internal/api/middleware"
	"github.com/newschat/rag-backend/internal/pkg/response"
	"go.uber.org/zap"
)

// VectorStoreCounter reports how many chunks the vector store currently
// holds, for the health endpoint.
type VectorStoreCounter interface {
	Count(ctx context.Context) (int, error)
}

// SetupRouter creates and configures the HTTP router
func SetupRouter(chatHandler *chatapi.Handler, counter VectorStoreCounter, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)                 // Recover from panics
	r.Use(chimiddleware.RequestID)                 // Add request ID
	r.Use(middleware.Logger(logger))               // Log requests
	r.Use(middleware.CORS)                         // Handle CORS
	r.Use(chimiddleware.Timeout(60 * time.Second)) // Default timeout

	// Health check endpoint
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		size, err := counter.Count(req.Context())
		if err != nil {
			response.JSON(w, http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": err.Error(),
			})
			return
		}
		response.JSON(w, http.StatusOK, map[string]any{
			"status":          "ok",
			"vectorStoreSize": size,
		})
	})

	// Register routes
	chatapi.RegisterRoutes(r, chatHandler)

	return r
}
