// Package store provides an in-memory scenario.Store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/carbon-engine/engine"
	"github.com/warp/carbon-engine/factory"
	"github.com/warp/carbon-engine/scenario"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps inputs as rows, the same shape the SQL stores persist, so a
// stored scenario never shares slices with the caller.
type Memory struct {
	mu        sync.RWMutex
	scenarios map[scenario.ID]record
	runs      map[scenario.ID][]scenario.Run
	factory   *factory.InputFactory
}

type record struct {
	meta scenario.Scenario // Inputs left empty
	rows []factory.InputRow
}

func NewMemory() *Memory {
	return &Memory{
		scenarios: make(map[scenario.ID]record),
		runs:      make(map[scenario.ID][]scenario.Run),
		factory:   factory.NewInputFactory(),
	}
}

func (m *Memory) Save(_ context.Context, s scenario.Scenario) error {
	rows := m.factory.ToRows(s.Inputs)
	meta := s
	meta.Inputs = engine.UIInputs{}
	if s.DeletedAt != nil {
		at := *s.DeletedAt
		meta.DeletedAt = &at
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[s.ID] = record{meta: meta, rows: rows}
	return nil
}

func (m *Memory) Get(_ context.Context, id scenario.ID) (scenario.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.scenarios[id]
	if !ok {
		return scenario.Scenario{}, scenario.ErrScenarioNotFound
	}
	return m.materialize(rec)
}

func (m *Memory) List(_ context.Context, includeDeleted bool) ([]scenario.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]scenario.Scenario, 0, len(m.scenarios))
	for _, rec := range m.scenarios {
		if rec.meta.Deleted() && !includeDeleted {
			continue
		}
		s, err := m.materialize(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) ListTrash(_ context.Context) ([]scenario.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []scenario.Scenario
	for _, rec := range m.scenarios {
		if !rec.meta.Deleted() {
			continue
		}
		s, err := m.materialize(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].DeletedAt.Equal(*result[j].DeletedAt) {
			return result[i].DeletedAt.After(*result[j].DeletedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) SoftDelete(_ context.Context, id scenario.ID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.scenarios[id]
	if !ok {
		return scenario.ErrScenarioNotFound
	}
	if rec.meta.Deleted() {
		return scenario.ErrScenarioDeleted
	}
	rec.meta.DeletedAt = &at
	m.scenarios[id] = rec
	return nil
}

func (m *Memory) Restore(_ context.Context, id scenario.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.scenarios[id]
	if !ok {
		return scenario.ErrScenarioNotFound
	}
	if !rec.meta.Deleted() {
		return scenario.ErrScenarioNotDeleted
	}
	rec.meta.DeletedAt = nil
	m.scenarios[id] = rec
	return nil
}

func (m *Memory) PurgeDeletedBefore(_ context.Context, cutoff time.Time) ([]scenario.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var purged []scenario.ID
	for id, rec := range m.scenarios {
		if rec.meta.Deleted() && rec.meta.DeletedAt.Before(cutoff) {
			delete(m.scenarios, id)
			delete(m.runs, id)
			purged = append(purged, id)
		}
	}
	sort.Slice(purged, func(i, j int) bool { return purged[i] < purged[j] })
	return purged, nil
}

func (m *Memory) SaveRun(_ context.Context, r scenario.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scenarios[r.ScenarioID]; !ok {
		return scenario.ErrScenarioNotFound
	}
	runs := append(m.runs[r.ScenarioID], r)
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].RanAt.Before(runs[j].RanAt) })
	m.runs[r.ScenarioID] = runs
	return nil
}

func (m *Memory) ListRuns(_ context.Context, id scenario.ID) ([]scenario.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.scenarios[id]; !ok {
		return nil, scenario.ErrScenarioNotFound
	}
	result := make([]scenario.Run, len(m.runs[id]))
	copy(result, m.runs[id])
	return result, nil
}

func (m *Memory) materialize(rec record) (scenario.Scenario, error) {
	ui, err := m.factory.FromRows(rec.rows)
	if err != nil {
		return scenario.Scenario{}, err
	}
	s := rec.meta
	s.Inputs = ui
	if rec.meta.DeletedAt != nil {
		at := *rec.meta.DeletedAt
		s.DeletedAt = &at
	}
	return s, nil
}

// Compile-time interface check
var _ scenario.Store = (*Memory)(nil)
