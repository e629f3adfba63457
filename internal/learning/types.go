package learning

import (
	"context"
	"sort"
	"time"
)

// #region record

// ChronicWeakPoint counts how often a weak point recurred for an entity.
type ChronicWeakPoint struct {
	Axis     string `json:"axis"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Key is the rule-table key for this weak point.
func (c ChronicWeakPoint) Key() string {
	return c.Axis + "_" + c.Category
}

// EntityRecord holds running statistics for one entity (e.g. a hotel).
// AvgScore is always the mean of exactly AttemptCount samples.
type EntityRecord struct {
	EntityID          string                      `json:"entity_id"`
	AttemptCount      int                         `json:"attempt_count"`
	AvgScore          float64                     `json:"avg_score"`
	BestScore         float64                     `json:"best_score"`
	LastScore         float64                     `json:"last_score"`
	ChronicWeakPoints map[string]ChronicWeakPoint `json:"chronic_weak_points"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

// Chronic returns weak points with Count >= threshold, most frequent first,
// ties broken by key.
func (r EntityRecord) Chronic(threshold int) []ChronicWeakPoint {
	var out []ChronicWeakPoint
	for _, c := range r.ChronicWeakPoints {
		if c.Count >= threshold {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// #endregion record

// #region store-port

// RecordStore persists entity records.
type RecordStore interface {
	// GetEntity returns nil, nil when the entity has no record yet.
	GetEntity(ctx context.Context, entityID string) (*EntityRecord, error)
	// UpdateEntity reads the current record (nil if absent), passes it to fn,
	// and writes fn's result, all as one atomic step.
	UpdateEntity(ctx context.Context, entityID string, fn func(prev *EntityRecord) EntityRecord) error
}

// #endregion store-port
