package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore keeps checkpoints in a map. Saved values are deep-copied so
// later mutation by the embedder does not leak into the stored snapshot.
type CheckpointStore struct {
	mu    sync.RWMutex
	items map[string]domain.Checkpoint
	saves map[string][]int
}

// NewCheckpointStore creates an empty in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		items: make(map[string]domain.Checkpoint),
		saves: make(map[string][]int),
	}
}

// Load returns a copy of the checkpoint for filename.
func (s *CheckpointStore) Load(_ context.Context, filename string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.items[filename]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := clone(cp)
	return &c, nil
}

// Save stores a copy of cp.
func (s *CheckpointStore) Save(_ context.Context, cp *domain.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[cp.Filename] = clone(*cp)
	s.saves[cp.Filename] = append(s.saves[cp.Filename], cp.Cursor())
	return nil
}

// Delete removes the checkpoint for filename. Missing is not an error.
func (s *CheckpointStore) Delete(_ context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, filename)
	return nil
}

// List returns the filenames with checkpoints, sorted.
func (s *CheckpointStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.items))
	for name := range s.items {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// SavedCursors returns the cursor at every Save for filename, in order.
func (s *CheckpointStore) SavedCursors(filename string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.saves[filename])
}

func clone(cp domain.Checkpoint) domain.Checkpoint {
	out := domain.Checkpoint{
		Filename: cp.Filename,
		Chunks:   slices.Clone(cp.Chunks),
		Metadata: slices.Clone(cp.Metadata),
		Vectors:  make([][]float32, len(cp.Vectors)),
	}
	for i, v := range cp.Vectors {
		out.Vectors[i] = slices.Clone(v)
	}
	return out
}
