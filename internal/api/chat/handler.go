package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/newschat/rag-backend/internal/entity"
	"github.com/newschat/rag-backend/internal/pkg/logger"
	"github.com/newschat/rag-backend/internal/pkg/response"
	chatuc "github.com/newschat/rag-backend/internal/usecase/chat"
	"go.uber.org/zap"
)

type Handler struct {
	usecase ChatUsecase
}

func NewHandler(usecase ChatUsecase) *Handler {
	return &Handler{usecase: usecase}
}

// Chat handles POST /chat - answer a user message against the indexed news
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Chat")

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctxzap.Error(ctx, "failed to decode request body", zap.Error(err))
		response.Fail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.usecase.Answer(ctx, &chatuc.AnswerRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		TopK:      req.TopK,
	})
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "chat answered",
		zap.String("session_id", res.SessionID),
		zap.Int("retrieved", len(res.Retrieved)),
	)

	response.JSON(w, http.StatusOK, toChatResponse(res))
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, entity.ErrEmptyMessage) {
		ctxzap.Warn(ctx, "rejected chat request", zap.Error(err))
		response.Fail(w, http.StatusBadRequest, entity.ErrEmptyMessage.Error())
		return
	}
	ctxzap.Error(ctx, "failed to answer message", zap.Error(err))
	response.Fail(w, http.StatusInternalServerError, failureMessage(err))
}

// failureMessage reduces a wrapped error to its outermost stage description,
// keeping connector detail (URLs, upstream bodies) out of the response.
func failureMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 {
		msg = msg[:i]
	}
	return msg
}
