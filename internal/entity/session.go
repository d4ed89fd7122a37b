package entity

import "time"

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is a single message in a session's history.
type Turn struct {
	Speaker   Speaker   `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"at"`
}

// Session is a persistent conversation thread. History is append-only:
// turns are never reordered or edited in place.
type Session struct {
	History   []Turn    `json:"history"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy so callers can read history without holding
// the store's session lock.
func (s *Session) Clone() *Session {
	cp := &Session{
		History:   make([]Turn, len(s.History)),
		CreatedAt: s.CreatedAt,
	}
	copy(cp.History, s.History)
	return cp
}
