package generation

import (
	"context"
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

// Connector calls an OpenAI-compatible chat-completions service.
type Connector struct {
	config    config.GenerationConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(cfg config.GenerationConnectorConfig, logger *zap.Logger) *Connector {
	return &Connector{
		config:    cfg,
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		logger:    logger,
	}
}

// Complete sends the ordered message list to the generation service and
// returns the generated text.
func (c *Connector) Complete(ctx context.Context, messages []entity.Message) (string, error) {
	ctxzap.Info(ctx, "calling generation service", zap.Int("message_count", len(messages)))

	req := entity.GenerationRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	var resp entity.GenerationResponse
	err := retry.Do(func() error {
		return c.connector.DoRequest(ctx, http.MethodPost, c.config.CompleteEndpoint, req, &resp)
	}, append(c.config.Retry.ToRetryOptions(), retry.Context(ctx), retry.LastErrorOnly(true))...)
	if err != nil {
		return "", fmt.Errorf("generation request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generation response contains no choices")
	}

	answer := resp.Choices[0].Message.Content
	ctxzap.Info(ctx, "generation completed", zap.Int("answer_length", len(answer)))

	return answer, nil
}
