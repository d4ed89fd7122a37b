package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/newschat/rag-backend/internal/entity"
	"github.com/newschat/rag-backend/internal/pkg/logger"
	"github.com/newschat/rag-backend/internal/vectorstore"
	"go.uber.org/zap"
)

const systemInstruction = "You are a helpful assistant answering using the news sources. Cite as [Source 1], etc."

type AnswerRequest struct {
	SessionID string
	Message   string
	TopK      int
}

type AnswerResult struct {
	SessionID string
	Answer    string
	Retrieved []entity.RetrievalResult
}

// Usecase drives one chat request: resolve the session, embed the query,
// search the index, assemble the generation request from retrieved sources
// and recent history, and record both turns.
type Usecase struct {
	embedder      Embedder
	searcher      VectorSearcher
	generator     Generator
	sessions      SessionStore
	defaultTopK   int
	historyWindow int
	logger        *zap.Logger
}

func NewUsecase(
	embedder Embedder,
	searcher VectorSearcher,
	generator Generator,
	sessions SessionStore,
	defaultTopK int,
	historyWindow int,
	logger *zap.Logger,
) *Usecase {
	return &Usecase{
		embedder:      embedder,
		searcher:      searcher,
		generator:     generator,
		sessions:      sessions,
		defaultTopK:   defaultTopK,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// Answer handles one user message. The user turn is appended before any
// external call, so it survives in history even when retrieval or
// generation later fails.
func (u *Usecase) Answer(ctx context.Context, req *AnswerRequest) (*AnswerResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, entity.ErrEmptyMessage
	}

	topK := req.TopK
	if topK <= 0 {
		topK = u.defaultTopK
	}

	sessionID, session, err := u.sessions.GetOrCreate(req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	ctx = logger.AddFields(ctx,
		zap.String("session_id", sessionID),
		zap.Int("message_length", len(message)),
	)

	if err := u.sessions.Append(sessionID, entity.Turn{
		Speaker:   entity.SpeakerUser,
		Text:      message,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	queryVector, err := u.embedder.Embed(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := u.searcher.Search(ctx, queryVector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	positive := hits[:0:0]
	for _, h := range hits {
		if h.Score > 0 {
			positive = append(positive, h)
		}
	}
	ctxzap.Info(ctx, "retrieved context",
		zap.Int("hits", len(hits)), zap.Int("relevant", len(positive)))

	sourcesText, retrieved := buildSources(positive)

	// The session snapshot predates the appended user turn, so the window
	// cannot duplicate the current message.
	messages := u.buildMessages(session.History, sourcesText, message)

	answer, err := u.generator.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if err := u.sessions.Append(sessionID, entity.Turn{
		Speaker:   entity.SpeakerAssistant,
		Text:      answer,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("append assistant turn: %w", err)
	}

	return &AnswerResult{SessionID: sessionID, Answer: answer, Retrieved: retrieved}, nil
}

// buildSources groups hits per source document, numbering distinct sources
// in the order first encountered, and concatenates each source's chunk
// texts under its label. Returns the citation block and the retrieved set
// for the response.
func buildSources(hits []vectorstore.Hit) (string, []entity.RetrievalResult) {
	var b strings.Builder
	retrieved := make([]entity.RetrievalResult, 0, len(hits))

	sourceNumbers := map[string]int{}
	order := []string{}
	texts := map[string][]string{}
	titles := map[string]string{}

	for _, h := range hits {
		key := h.Payload.SourceID
		if key == "" {
			key = h.ID
		}
		if _, ok := sourceNumbers[key]; !ok {
			sourceNumbers[key] = len(order) + 1
			order = append(order, key)
			titles[key] = h.Payload.Title
		}
		texts[key] = append(texts[key], h.Payload.Text)

		retrieved = append(retrieved, entity.RetrievalResult{
			ChunkID:          h.ID,
			Score:            h.Score,
			SourceDocumentID: h.Payload.SourceID,
			Title:            h.Payload.Title,
			Text:             h.Payload.Text,
		})
	}

	for _, key := range order {
		fmt.Fprintf(&b, "Source %d - %s\n", sourceNumbers[key], titles[key])
		for _, text := range texts[key] {
			b.WriteString(text)
			b.WriteString("\n")
		}
		b.WriteString("---\n")
	}
	return b.String(), retrieved
}

func (u *Usecase) buildMessages(history []entity.Turn, sourcesText, message string) []entity.Message {
	window := history
	if len(window) > u.historyWindow {
		window = window[len(window)-u.historyWindow:]
	}

	messages := make([]entity.Message, 0, len(window)+3)
	messages = append(messages,
		entity.Message{Role: entity.RoleSystem, Content: systemInstruction},
		entity.Message{Role: entity.RoleSystem, Content: "Retrieved context:\n" + sourcesText},
	)
	for _, turn := range window {
		role := entity.RoleAssistant
		if turn.Speaker == entity.SpeakerUser {
			role = entity.RoleUser
		}
		messages = append(messages, entity.Message{Role: role, Content: turn.Text})
	}
	return append(messages, entity.Message{Role: entity.RoleUser, Content: message})
}
