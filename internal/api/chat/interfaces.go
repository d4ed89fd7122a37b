package chat

import (
	"context"

	chatuc "github.com/newschat/rag-backend/internal/usecase/chat"
)

type ChatUsecase interface {
	Answer(ctx context.Context, req *chatuc.AnswerRequest) (*chatuc.AnswerResult, error)
}
