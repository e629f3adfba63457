package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/review-tuner/internal/quality"
)

// #region fold

// Fold is the pure record update for one attempt. prev may be nil for the
// entity's first attempt. Weak points repeated within a single attempt count once.
func Fold(prev *EntityRecord, entityID string, weakPoints []quality.WeakPoint, totalScore float64, now time.Time) EntityRecord {
	next := EntityRecord{
		EntityID:          entityID,
		ChronicWeakPoints: map[string]ChronicWeakPoint{},
		UpdatedAt:         now,
	}

	if prev == nil || prev.AttemptCount == 0 {
		next.AttemptCount = 1
		next.AvgScore = totalScore
		next.BestScore = totalScore
		next.LastScore = totalScore
	} else {
		for k, c := range prev.ChronicWeakPoints {
			next.ChronicWeakPoints[k] = c
		}
		n := float64(prev.AttemptCount)
		next.AttemptCount = prev.AttemptCount + 1
		next.AvgScore = (prev.AvgScore*n + totalScore) / (n + 1)
		next.BestScore = prev.BestScore
		if totalScore > next.BestScore {
			next.BestScore = totalScore
		}
		next.LastScore = totalScore
	}

	seen := make(map[string]bool, len(weakPoints))
	for _, wp := range weakPoints {
		key := wp.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		c := next.ChronicWeakPoints[key]
		c.Axis = wp.Axis
		c.Category = wp.Category
		c.Count++
		next.ChronicWeakPoints[key] = c
	}

	return next
}

// #endregion fold

// #region learner

// Learner records attempts against a RecordStore.
type Learner struct {
	store RecordStore
	now   func() time.Time
}

// NewLearner creates a Learner backed by store.
func NewLearner(store RecordStore) *Learner {
	return &Learner{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// RecordAttempt folds one scored attempt into the entity's record.
func (l *Learner) RecordAttempt(ctx context.Context, entityID string, weakPoints []quality.WeakPoint, totalScore float64) error {
	if entityID == "" {
		return fmt.Errorf("record attempt: empty entity id")
	}

	var updated EntityRecord
	err := l.store.UpdateEntity(ctx, entityID, func(prev *EntityRecord) EntityRecord {
		updated = Fold(prev, entityID, weakPoints, totalScore, l.now())
		return updated
	})
	if err != nil {
		return fmt.Errorf("record attempt %s: %w", entityID, err)
	}

	log.Debug().
		Str("component", "learning").
		Str("entity", entityID).
		Int("attempts", updated.AttemptCount).
		Float64("avg", updated.AvgScore).
		Float64("best", updated.BestScore).
		Msg("attempt recorded")
	return nil
}

// Get returns the entity's record, or nil if it has none.
func (l *Learner) Get(ctx context.Context, entityID string) (*EntityRecord, error) {
	rec, err := l.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("get entity %s: %w", entityID, err)
	}
	return rec, nil
}

// #endregion learner
