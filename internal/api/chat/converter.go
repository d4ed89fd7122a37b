package chat

import (
	"github.com/newschat/rag-backend/internal/entity"
	chatuc "github.com/newschat/rag-backend/internal/usecase/chat"
)

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	TopK      int    `json:"topK"`
}

type chatResponse struct {
	Success   bool                     `json:"success"`
	SessionID string                   `json:"sessionId"`
	Answer    string                   `json:"answer"`
	Retrieved []entity.RetrievalResult `json:"retrieved"`
}

func toChatResponse(res *chatuc.AnswerResult) chatResponse {
	retrieved := res.Retrieved
	if retrieved == nil {
		retrieved = []entity.RetrievalResult{}
	}
	return chatResponse{
		Success:   true,
		SessionID: res.SessionID,
		Answer:    res.Answer,
		Retrieved: retrieved,
	}
}
