// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mazesim/service/internal/models"
)

// MemoryStore keeps runs in process memory. It is the default backend and is
// safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	order []uuid.UUID
	runs  map[uuid.UUID]models.Run
	steps map[uuid.UUID][]models.StepRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[uuid.UUID]models.Run),
		steps: make(map[uuid.UUID][]models.StepRecord),
	}
}

func (m *MemoryStore) CreateRun(_ context.Context, run models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("create run %s: already exists", run.ID)
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	return nil
}

func (m *MemoryStore) AppendStep(_ context.Context, rec models.StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[rec.RunID]; !ok {
		return fmt.Errorf("append step %d: %w: %s", rec.Step, ErrRunNotFound, rec.RunID)
	}
	m.steps[rec.RunID] = append(m.steps[rec.RunID], rec)
	return nil
}

func (m *MemoryStore) Steps(_ context.Context, runID uuid.UUID) ([]models.StepRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, fmt.Errorf("steps: %w: %s", ErrRunNotFound, runID)
	}
	return slices.Clone(m.steps[runID]), nil
}

func (m *MemoryStore) Runs(_ context.Context) ([]models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Run, len(m.order))
	for i, id := range m.order {
		out[i] = m.runs[id]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
