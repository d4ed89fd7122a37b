package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const mockDimension = 32

// MockConnector produces deterministic pseudo-embeddings derived from a
// hash of the input, for running without a real embedding service.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{logger: logger}
}

func (m *MockConnector) Embed(ctx context.Context, text string) ([]float32, error) {
	ctxzap.Debug(ctx, "[MOCK] embedding text", zap.Int("text_length", len(text)))

	vector := make([]float32, mockDimension)
	seed := sha256.Sum256([]byte(text))
	for i := range vector {
		// Expand the digest into stable values in [-1, 1).
		word := binary.BigEndian.Uint32(seed[(i*4)%28 : (i*4)%28+4])
		word ^= uint32(i) * 0x9e3779b9
		vector[i] = float32(int32(word)) / float32(1<<31)
	}
	return vector, nil
}

func (m *MockConnector) ProbeDimension(ctx context.Context) (int, error) {
	ctxzap.Info(ctx, "[MOCK] probing embedding dimension", zap.Int("vector_size", mockDimension))
	return mockDimension, nil
}
