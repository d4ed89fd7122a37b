package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/newschat/rag-backend/internal/entity"
	"go.uber.org/zap"
)

// SessionFile persists the session map as a single JSON document. Writes go
// through a temp file and rename so a crash mid-write leaves the previous
// state intact.
type SessionFile struct {
	path   string
	logger *zap.Logger
}

func NewSessionFile(path string, logger *zap.Logger) *SessionFile {
	return &SessionFile{path: path, logger: logger}
}

// Load reads the persisted session map. A missing file yields an empty map;
// corrupt or unreadable state is discarded with a warning rather than
// failing startup.
func (r *SessionFile) Load() (map[string]*entity.Session, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*entity.Session{}, nil
		}
		r.logger.Warn("could not read session state, starting empty",
			zap.String("path", r.path), zap.Error(err))
		return map[string]*entity.Session{}, nil
	}

	sessions := map[string]*entity.Session{}
	if err := json.Unmarshal(data, &sessions); err != nil {
		r.logger.Warn("corrupt session state discarded",
			zap.String("path", r.path), zap.Error(err))
		return map[string]*entity.Session{}, nil
	}
	return sessions, nil
}

// Save writes the full session map atomically.
func (r *SessionFile) Save(sessions map[string]*entity.Session) error {
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), "sessions-*.json")
	if err != nil {
		return fmt.Errorf("create sessions temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write sessions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close sessions: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace sessions: %w", err)
	}
	return nil
}
