package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newschat/rag-backend/internal/entity"
	"go.uber.org/zap"
)

// Repository persists the full session map.
type Repository interface {
	Load() (map[string]*entity.Session, error)
	Save(map[string]*entity.Session) error
}

// Store owns session lifecycles. History mutations are serialized per
// session id, so concurrent requests against the same session cannot lose
// turns while requests against different sessions do not block each other.
// Every mutation is followed by a synchronous persist.
type Store struct {
	mu      sync.RWMutex // guards entries map membership
	entries map[string]*sessionEntry

	saveMu sync.Mutex // serializes snapshot writes
	repo   Repository
	logger *zap.Logger
}

type sessionEntry struct {
	mu      sync.Mutex
	session *entity.Session
}

// NewStore loads persisted state through the repository. Corrupt state has
// already been reduced to an empty map by the repository layer.
func NewStore(repo Repository, logger *zap.Logger) (*Store, error) {
	loaded, err := repo.Load()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	entries := make(map[string]*sessionEntry, len(loaded))
	for id, sess := range loaded {
		entries[id] = &sessionEntry{session: sess}
	}
	logger.Info("session store ready", zap.Int("sessions", len(entries)))

	return &Store{entries: entries, repo: repo, logger: logger}, nil
}

// GetOrCreate returns the session for the given id, or creates a fresh one
// when the id is empty or unknown. The returned session is a copy; mutate
// through Append only.
func (s *Store) GetOrCreate(sessionID string) (string, *entity.Session, error) {
	if sessionID != "" {
		s.mu.RLock()
		entry, ok := s.entries[sessionID]
		s.mu.RUnlock()
		if ok {
			entry.mu.Lock()
			defer entry.mu.Unlock()
			return sessionID, entry.session.Clone(), nil
		}
	}

	id := sessionID
	if id == "" {
		id = newSessionID()
	}
	sess := &entity.Session{History: []entity.Turn{}, CreatedAt: time.Now().UTC()}

	s.mu.Lock()
	if existing, ok := s.entries[id]; ok {
		// Lost a race with a concurrent create for the same id.
		s.mu.Unlock()
		existing.mu.Lock()
		defer existing.mu.Unlock()
		return id, existing.session.Clone(), nil
	}
	s.entries[id] = &sessionEntry{session: sess}
	s.mu.Unlock()

	if err := s.persist(); err != nil {
		return "", nil, fmt.Errorf("persist after create: %w", err)
	}
	return id, sess.Clone(), nil
}

// Get returns a copy of the session, or ErrSessionNotFound.
func (s *Store) Get(sessionID string) (*entity.Session, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, entity.ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

// Append adds a turn to the end of the session's history and persists.
// History is append-only; prior turns are never edited or removed.
func (s *Store) Append(sessionID string, turn entity.Turn) error {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return entity.ErrSessionNotFound
	}

	entry.mu.Lock()
	entry.session.History = append(entry.session.History, turn)
	entry.mu.Unlock()

	if err := s.persist(); err != nil {
		return fmt.Errorf("persist after append: %w", err)
	}
	return nil
}

// Count reports the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// persist snapshots every session under its own lock and writes the result.
// Writes are serialized so an older snapshot can never replace a newer one.
func (s *Store) persist() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[string]*entity.Session, len(s.entries))
	for id, entry := range s.entries {
		entry.mu.Lock()
		snapshot[id] = entry.session.Clone()
		entry.mu.Unlock()
	}
	s.mu.RUnlock()

	return s.repo.Save(snapshot)
}

// newSessionID mints an id with negligible collision probability: base36
// millis plus a random suffix.
func newSessionID() string {
	millis := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return "sess_" + millis + "_" + suffix
}
