package generation

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/newschat/rag-backend/internal/entity"
	"go.uber.org/zap"
)

// MockConnector answers with a canned response, for running without a real
// generation service.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{logger: logger}
}

func (m *MockConnector) Complete(ctx context.Context, messages []entity.Message) (string, error) {
	ctxzap.Info(ctx, "[MOCK] generating completion", zap.Int("message_count", len(messages)))

	question := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == entity.RoleUser {
			question = messages[i].Content
			break
		}
	}

	return fmt.Sprintf("According to the retrieved articles, here is what is known about %q [Source 1].", question), nil
}
