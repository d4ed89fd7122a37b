package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/newschat/rag-backend/internal/entity"
	"github.com/newschat/rag-backend/internal/vectorstore"
	"go.uber.org/zap"
)

// Store is the in-process brute-force strategy: all points live in memory
// and every search scans the full set. O(n*d) per query, which is fine at
// the corpus scale this system targets (tens to low thousands of chunks).
type Store struct {
	mu           sync.RWMutex
	dimension    int
	points       []storedPoint
	byID         map[string]int
	snapshotPath string
	logger       *zap.Logger
}

type storedPoint struct {
	ID      string              `json:"id"`
	Vector  []float32           `json:"vector"`
	Payload vectorstore.Payload `json:"payload"`
}

type snapshot struct {
	Dimension int           `json:"dimension"`
	Points    []storedPoint `json:"points"`
}

// NewStore creates an in-memory store. When snapshotPath is non-empty,
// EnsureReady reloads a prior snapshot and Persist writes one.
func NewStore(snapshotPath string, logger *zap.Logger) *Store {
	return &Store{
		byID:         make(map[string]int),
		snapshotPath: snapshotPath,
		logger:       logger,
	}
}

func (s *Store) EnsureReady(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dimension = dimension
	if s.snapshotPath != "" {
		s.loadSnapshotLocked()
	}
	return nil
}

func (s *Store) Upsert(_ context.Context, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		return entity.ErrStoreNotReady
	}

	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("point %s: expected %d dimensions, got %d: %w",
				p.ID, s.dimension, len(p.Vector), entity.ErrDimensionMismatch)
		}
	}

	for _, p := range points {
		sp := storedPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
		if idx, ok := s.byID[p.ID]; ok {
			s.points[idx] = sp
			continue
		}
		s.byID[p.ID] = len(s.points)
		s.points = append(s.points, sp)
	}
	return nil
}

func (s *Store) Search(_ context.Context, vector []float32, limit int) ([]vectorstore.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension == 0 {
		return nil, entity.ErrStoreNotReady
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query: expected %d dimensions, got %d: %w",
			s.dimension, len(vector), entity.ErrDimensionMismatch)
	}
	if limit <= 0 {
		return nil, nil
	}

	type scored struct {
		order int
		score float32
	}
	scores := make([]scored, len(s.points))
	for i := range s.points {
		scores[i] = scored{order: i, score: cosine(s.points[i].Vector, vector)}
	}
	// Stable keeps insertion order for equal scores.
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if limit > len(scores) {
		limit = len(scores)
	}
	hits := make([]vectorstore.Hit, 0, limit)
	for _, sc := range scores[:limit] {
		p := s.points[sc.order]
		hits = append(hits, vectorstore.Hit{ID: p.ID, Score: sc.score, Payload: p.Payload})
	}
	return hits, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points), nil
}

// Persist writes the current point set to the snapshot path using a
// temp-file-and-rename so a crash mid-write cannot truncate prior state.
// No-op when the store was built without a snapshot path.
func (s *Store) Persist(_ context.Context) error {
	if s.snapshotPath == "" {
		return nil
	}

	s.mu.RLock()
	data, err := json.Marshal(snapshot{Dimension: s.dimension, Points: s.points})
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.snapshotPath), "points-*.json")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.snapshotPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// loadSnapshotLocked restores points from disk. A missing file is normal; a
// corrupt or dimension-mismatched snapshot is discarded with a warning so
// startup ingestion can rebuild it.
func (s *Store) loadSnapshotLocked() {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("could not read vector snapshot, starting empty",
				zap.String("path", s.snapshotPath), zap.Error(err))
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("corrupt vector snapshot discarded",
			zap.String("path", s.snapshotPath), zap.Error(err))
		return
	}
	if snap.Dimension != s.dimension {
		s.logger.Warn("vector snapshot dimension mismatch, discarding",
			zap.Int("snapshot_dimension", snap.Dimension),
			zap.Int("expected_dimension", s.dimension))
		return
	}

	s.points = snap.Points
	s.byID = make(map[string]int, len(snap.Points))
	for i, p := range snap.Points {
		s.byID[p.ID] = i
	}
	s.logger.Info("vector snapshot restored",
		zap.Int("points", len(s.points)), zap.String("path", s.snapshotPath))
}

// cosine is dot(a,b) / (||a|| * ||b||), defined as 0 when either norm is 0.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
