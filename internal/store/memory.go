package store

import (
	"context"
	"sort"
	"sync"

	"github.com/franz/order-recon/internal/table"
)

// Memory keeps the dataset and run history in process memory
type Memory struct {
	mu      sync.RWMutex
	dataset *table.Table
	runs    map[string]Run
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{runs: make(map[string]Run)}
}

// Save replaces the stored dataset
func (m *Memory) Save(ctx context.Context, t *table.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataset = t
	return nil
}

// Load returns the stored dataset or ErrNoDataset
func (m *Memory) Load(ctx context.Context) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.dataset == nil {
		return nil, ErrNoDataset
	}
	return m.dataset, nil
}

// RecordRun inserts or replaces a run record
func (m *Memory) RecordRun(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *run
	r.Sources = append([]string(nil), run.Sources...)
	m.runs[run.ID] = r
	return nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (m *Memory) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
