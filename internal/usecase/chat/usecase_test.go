package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/newschat/rag-backend/internal/entity"
	"github.com/newschat/rag-backend/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

type stubSearcher struct {
	hits  []vectorstore.Hit
	err   error
	limit int
}

func (s *stubSearcher) Search(_ context.Context, _ []float32, limit int) ([]vectorstore.Hit, error) {
	s.limit = limit
	return s.hits, s.err
}

type stubGenerator struct {
	answer   string
	err      error
	messages []entity.Message
}

func (s *stubGenerator) Complete(_ context.Context, messages []entity.Message) (string, error) {
	s.messages = messages
	return s.answer, s.err
}

type stubSessions struct {
	sessions map[string]*entity.Session
	nextID   string
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: map[string]*entity.Session{}, nextID: "sess_new"}
}

func (s *stubSessions) GetOrCreate(sessionID string) (string, *entity.Session, error) {
	if sessionID != "" {
		if sess, ok := s.sessions[sessionID]; ok {
			return sessionID, sess.Clone(), nil
		}
	}
	id := s.nextID
	s.sessions[id] = &entity.Session{}
	return id, s.sessions[id].Clone(), nil
}

func (s *stubSessions) Append(sessionID string, turn entity.Turn) error {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return entity.ErrSessionNotFound
	}
	sess.History = append(sess.History, turn)
	return nil
}

func newTestUsecase(e *stubEmbedder, se *stubSearcher, g *stubGenerator, ss *stubSessions) *Usecase {
	return NewUsecase(e, se, g, ss, 4, 10, zap.NewNop())
}

func TestAnswerRejectsEmptyMessage(t *testing.T) {
	sessions := newStubSessions()
	u := newTestUsecase(&stubEmbedder{}, &stubSearcher{}, &stubGenerator{}, sessions)

	_, err := u.Answer(context.Background(), &AnswerRequest{Message: "   "})

	assert.ErrorIs(t, err, entity.ErrEmptyMessage)
	assert.Empty(t, sessions.sessions, "no session should be created for a rejected message")
}

func TestAnswerHappyPath(t *testing.T) {
	sessions := newStubSessions()
	searcher := &stubSearcher{hits: []vectorstore.Hit{
		{ID: "c1", Score: 0.9, Payload: vectorstore.Payload{SourceID: "d1", Title: "Alpha", Text: "alpha text"}},
		{ID: "c2", Score: 0.7, Payload: vectorstore.Payload{SourceID: "d2", Title: "Beta", Text: "beta text"}},
	}}
	generator := &stubGenerator{answer: "Per [Source 1], things happened."}
	u := newTestUsecase(&stubEmbedder{vec: []float32{1, 0}}, searcher, generator, sessions)

	res, err := u.Answer(context.Background(), &AnswerRequest{Message: "what happened?"})
	require.NoError(t, err)

	assert.Equal(t, "sess_new", res.SessionID)
	assert.Equal(t, generator.answer, res.Answer)
	require.Len(t, res.Retrieved, 2)
	assert.Equal(t, "c1", res.Retrieved[0].ChunkID)
	assert.Equal(t, "Alpha", res.Retrieved[0].Title)
	assert.InDelta(t, 0.9, res.Retrieved[0].Score, 1e-6)

	history := sessions.sessions["sess_new"].History
	require.Len(t, history, 2)
	assert.Equal(t, entity.SpeakerUser, history[0].Speaker)
	assert.Equal(t, "what happened?", history[0].Text)
	assert.Equal(t, entity.SpeakerAssistant, history[1].Speaker)
	assert.Equal(t, generator.answer, history[1].Text)
}

func TestAnswerUsesDefaultTopK(t *testing.T) {
	searcher := &stubSearcher{}
	u := newTestUsecase(&stubEmbedder{vec: []float32{1}}, searcher, &stubGenerator{answer: "ok"}, newStubSessions())

	_, err := u.Answer(context.Background(), &AnswerRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 4, searcher.limit)

	_, err = u.Answer(context.Background(), &AnswerRequest{Message: "hi", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, searcher.limit)
}

func TestAnswerFiltersNonPositiveScores(t *testing.T) {
	searcher := &stubSearcher{hits: []vectorstore.Hit{
		{ID: "c1", Score: 0.5, Payload: vectorstore.Payload{SourceID: "d1", Title: "Kept", Text: "kept"}},
		{ID: "c2", Score: 0, Payload: vectorstore.Payload{SourceID: "d2", Title: "Dropped", Text: "dropped"}},
		{ID: "c3", Score: -0.2, Payload: vectorstore.Payload{SourceID: "d3", Title: "Dropped too", Text: "dropped"}},
	}}
	generator := &stubGenerator{answer: "ok"}
	u := newTestUsecase(&stubEmbedder{vec: []float32{1}}, searcher, generator, newStubSessions())

	res, err := u.Answer(context.Background(), &AnswerRequest{Message: "hi"})
	require.NoError(t, err)

	require.Len(t, res.Retrieved, 1)
	assert.Equal(t, "c1", res.Retrieved[0].ChunkID)

	contextBlock := generator.messages[1].Content
	assert.Contains(t, contextBlock, "Kept")
	assert.NotContains(t, contextBlock, "Dropped")
}

func TestAnswerGroupsChunksBySource(t *testing.T) {
	searcher := &stubSearcher{hits: []vectorstore.Hit{
		{ID: "c1", Score: 0.9, Payload: vectorstore.Payload{SourceID: "d1", Title: "Alpha", Text: "alpha first"}},
		{ID: "c2", Score: 0.8, Payload: vectorstore.Payload{SourceID: "d2", Title: "Beta", Text: "beta only"}},
		{ID: "c3", Score: 0.7, Payload: vectorstore.Payload{SourceID: "d1", Title: "Alpha", Text: "alpha second"}},
	}}
	generator := &stubGenerator{answer: "ok"}
	u := newTestUsecase(&stubEmbedder{vec: []float32{1}}, searcher, generator, newStubSessions())

	_, err := u.Answer(context.Background(), &AnswerRequest{Message: "hi"})
	require.NoError(t, err)

	contextBlock := generator.messages[1].Content
	alpha := "Source 1 - Alpha\nalpha first\nalpha second\n---\n"
	beta := "Source 2 - Beta\nbeta only\n---\n"
	assert.Contains(t, contextBlock, alpha)
	assert.Contains(t, contextBlock, beta)
	assert.Less(t, strings.Index(contextBlock, alpha), strings.Index(contextBlock, beta))
}

func TestAnswerBuildsGenerationMessages(t *testing.T) {
	sessions := newStubSessions()
	sessions.sessions["s1"] = &entity.Session{History: []entity.Turn{
		{Speaker: entity.SpeakerUser, Text: "earlier question"},
		{Speaker: entity.SpeakerAssistant, Text: "earlier answer"},
	}}
	generator := &stubGenerator{answer: "ok"}
	u := newTestUsecase(&stubEmbedder{vec: []float32{1}}, &stubSearcher{}, generator, sessions)

	_, err := u.Answer(context.Background(), &AnswerRequest{SessionID: "s1", Message: "follow-up"})
	require.NoError(t, err)

	msgs := generator.messages
	require.Len(t, msgs, 5)
	assert.Equal(t, entity.RoleSystem, msgs[0].Role)
	assert.Equal(t, entity.RoleSystem, msgs[1].Role)
	assert.Equal(t, entity.Message{Role: entity.RoleUser, Content: "earlier question"}, msgs[2])
	assert.Equal(t, entity.Message{Role: entity.RoleAssistant, Content: "earlier answer"}, msgs[3])
	assert.Equal(t, entity.Message{Role: entity.RoleUser, Content: "follow-up"}, msgs[4])
}

func TestAnswerTruncatesHistoryWindow(t *testing.T) {
	sessions := newStubSessions()
	var history []entity.Turn
	for i := 0; i < 14; i++ {
		speaker := entity.SpeakerUser
		if i%2 == 1 {
			speaker = entity.SpeakerAssistant
		}
		history = append(history, entity.Turn{Speaker: speaker, Text: string(rune('a' + i))})
	}
	sessions.sessions["s1"] = &entity.Session{History: history}
	generator := &stubGenerator{answer: "ok"}
	u := newTestUsecase(&stubEmbedder{vec: []float32{1}}, &stubSearcher{}, generator, sessions)

	_, err := u.Answer(context.Background(), &AnswerRequest{SessionID: "s1", Message: "now"})
	require.NoError(t, err)

	// 2 system + 10 window + 1 current.
	require.Len(t, generator.messages, 13)
	assert.Equal(t, history[4].Text, generator.messages[2].Content)
	assert.Equal(t, "now", generator.messages[12].Content)
}

func TestAnswerKeepsUserTurnWhenGenerationFails(t *testing.T) {
	sessions := newStubSessions()
	u := newTestUsecase(
		&stubEmbedder{vec: []float32{1}},
		&stubSearcher{},
		&stubGenerator{err: errors.New("upstream unavailable")},
		sessions,
	)

	_, err := u.Answer(context.Background(), &AnswerRequest{Message: "doomed question"})
	require.Error(t, err)

	history := sessions.sessions["sess_new"].History
	require.Len(t, history, 1)
	assert.Equal(t, entity.SpeakerUser, history[0].Speaker)
	assert.Equal(t, "doomed question", history[0].Text)
}

func TestAnswerPropagatesEmbedFailure(t *testing.T) {
	u := newTestUsecase(
		&stubEmbedder{err: errors.New("embedding service down")},
		&stubSearcher{},
		&stubGenerator{},
		newStubSessions(),
	)

	_, err := u.Answer(context.Background(), &AnswerRequest{Message: "hi"})
	assert.ErrorContains(t, err, "embed query")
}
