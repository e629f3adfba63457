package replay

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danielpatrickdp/review-tuner/internal/learning"
	"github.com/danielpatrickdp/review-tuner/internal/patterns"
)

// #region memory-store

// Memory is an in-process implementation of the learning and pattern stores.
// A replay owns one so it never touches the database it was extracted from.
type Memory struct {
	mu       sync.Mutex
	entities map[string]learning.EntityRecord
	patterns []patterns.SuccessPattern
	nextID   int64
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{entities: map[string]learning.EntityRecord{}}
}

// GetEntity implements learning.RecordStore.
func (m *Memory) GetEntity(_ context.Context, id string) (*learning.EntityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.entities[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// UpdateEntity implements learning.RecordStore.
func (m *Memory) UpdateEntity(_ context.Context, id string, fn func(prev *learning.EntityRecord) learning.EntityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prev *learning.EntityRecord
	if rec, ok := m.entities[id]; ok {
		prev = &rec
	}
	m.entities[id] = fn(prev)
	return nil
}

// UpdatePattern implements patterns.Store.
func (m *Memory) UpdatePattern(_ context.Context, typ patterns.PatternType, key string, create bool, fn func(prev *patterns.SuccessPattern) patterns.SuccessPattern) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.patterns {
		p := m.patterns[i]
		if p.PatternType == typ && p.PatternKey == key {
			next := fn(&p)
			next.ID = p.ID
			next.PatternType, next.PatternKey = typ, key
			m.patterns[i] = next
			return true, nil
		}
	}
	if !create {
		return false, nil
	}
	m.nextID++
	next := fn(nil)
	next.ID = m.nextID
	next.PatternType, next.PatternKey = typ, key
	m.patterns = append(m.patterns, next)
	return false, nil
}

// ListPatterns implements patterns.Store.
func (m *Memory) ListPatterns(_ context.Context, f patterns.Filter) ([]patterns.SuccessPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []patterns.SuccessPattern
	for _, p := range m.patterns {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgScoreImpact > out[j].AvgScoreImpact })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// SetPatternActive implements patterns.Store.
func (m *Memory) SetPatternActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.patterns {
		if m.patterns[i].ID == id {
			m.patterns[i].IsActive = active
			return nil
		}
	}
	return fmt.Errorf("pattern %d not found", id)
}

// #endregion memory-store
