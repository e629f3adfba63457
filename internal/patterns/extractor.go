package patterns

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
)

// #region config

// Config holds extraction thresholds.
type Config struct {
	HighScoreThreshold float64 // minimum total score (0-100) for an attempt to count
	SubMetricRatio     float64 // minimum score/max for a sub-metric to count
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		HighScoreThreshold: 75,
		SubMetricRatio:     0.8,
	}
}

// #endregion config

// #region attempt

// Attempt is a scored generation attempt offered for extraction.
type Attempt struct {
	EntityID   string
	TotalScore float64
	Details    map[string][]quality.SubMetric // axis -> breakdown
	Settings   params.ParameterSet
}

// Extraction reports what one Extract call touched.
type Extraction struct {
	Skipped       bool     // below the high-score threshold
	BoostsUpdated []string // "type:key" of existing boost rows that were incremented
	BoostsMissing []string // qualifying sub-metrics with no seeded row
	Combo         string   // combo key that was upserted
}

// #endregion attempt

// #region tracker

// Tracker extracts and ranks success patterns.
type Tracker struct {
	store  Store
	config Config
	now    func() time.Time
}

// NewTracker creates a Tracker over store.
func NewTracker(store Store, config Config) *Tracker {
	return &Tracker{store: store, config: config, now: func() time.Time { return time.Now().UTC() }}
}

// Extract increments patterns for a high-scoring attempt.
//
// Layer-boost rows are only updated when they already exist; they are never
// created here. Combo rows are created on first sight. The asymmetry keeps
// boost patterns curated: operators seed the sub-metrics worth tracking.
func (t *Tracker) Extract(ctx context.Context, a Attempt) (Extraction, error) {
	if a.TotalScore < t.config.HighScoreThreshold {
		return Extraction{Skipped: true}, nil
	}

	var ext Extraction
	now := t.now()

	axes := make([]string, 0, len(a.Details))
	for axis := range a.Details {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	for _, axis := range axes {
		typ := BoostType(axis)
		for _, m := range a.Details[axis] {
			if m.Ratio() < t.config.SubMetricRatio {
				continue
			}
			found, err := t.store.UpdatePattern(ctx, typ, m.Key, false, func(prev *SuccessPattern) SuccessPattern {
				return prev.Observe(a.TotalScore, now)
			})
			if err != nil {
				return ext, fmt.Errorf("update %s pattern %s: %w", typ, m.Key, err)
			}
			tag := string(typ) + ":" + m.Key
			if found {
				ext.BoostsUpdated = append(ext.BoostsUpdated, tag)
			} else {
				ext.BoostsMissing = append(ext.BoostsMissing, tag)
			}
		}
	}

	combo := ComboOf(a.Settings)
	key := combo.Key()
	_, err := t.store.UpdatePattern(ctx, TypeCombo, key, true, func(prev *SuccessPattern) SuccessPattern {
		p := SuccessPattern{
			PatternType:  TypeCombo,
			PatternKey:   key,
			PatternValue: key,
			SuccessRate:  100,
			IsActive:     true,
		}
		if prev != nil {
			p = *prev
		}
		return p.Observe(a.TotalScore, now)
	})
	if err != nil {
		return ext, fmt.Errorf("upsert combo pattern %s: %w", key, err)
	}
	ext.Combo = key

	log.Debug().
		Str("component", "patterns").
		Str("entity", a.EntityID).
		Float64("score", a.TotalScore).
		Strs("boosts", ext.BoostsUpdated).
		Int("unseeded", len(ext.BoostsMissing)).
		Str("combo", key).
		Msg("success patterns extracted")
	return ext, nil
}

// Seed inserts boost or combo rows that do not exist yet. Existing rows are
// left untouched so seeding is idempotent.
func (t *Tracker) Seed(ctx context.Context, seeds []SuccessPattern) error {
	for _, s := range seeds {
		seed := s
		_, err := t.store.UpdatePattern(ctx, seed.PatternType, seed.PatternKey, true, func(prev *SuccessPattern) SuccessPattern {
			if prev != nil {
				return *prev
			}
			seed.UpdatedAt = t.now()
			return seed
		})
		if err != nil {
			return fmt.Errorf("seed %s/%s: %w", seed.PatternType, seed.PatternKey, err)
		}
	}
	return nil
}

// SetActive toggles whether a pattern may be consumed.
func (t *Tracker) SetActive(ctx context.Context, id int64, active bool) error {
	if err := t.store.SetPatternActive(ctx, id, active); err != nil {
		return fmt.Errorf("set pattern %d active=%v: %w", id, active, err)
	}
	return nil
}

// #endregion tracker

// #region ranking

// Ranked returns consumable patterns of type typ, best first.
func (t *Tracker) Ranked(ctx context.Context, typ PatternType, limit int) ([]SuccessPattern, error) {
	f := Consumable(typ)
	f.Limit = limit
	out, err := t.store.ListPatterns(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("rank %s patterns: %w", typ, err)
	}
	return out, nil
}

// BestCombo returns the top consumable combo pattern, or nil when none qualify.
func (t *Tracker) BestCombo(ctx context.Context) (*Combo, *SuccessPattern, error) {
	top, err := t.Ranked(ctx, TypeCombo, 1)
	if err != nil {
		return nil, nil, err
	}
	if len(top) == 0 {
		return nil, nil, nil
	}
	combo, ok := ParseCombo(top[0].PatternKey)
	if !ok {
		return nil, nil, nil
	}
	return &combo, &top[0], nil
}

// #endregion ranking
