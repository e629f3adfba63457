// Package replay re-runs recorded attempts through the optimizer in memory,
// so rule-table or threshold changes can be checked against past behavior.
package replay

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/review-tuner/internal/learning"
	"github.com/danielpatrickdp/review-tuner/internal/optimizer"
	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/patterns"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
	"github.com/danielpatrickdp/review-tuner/internal/rules"
	"github.com/danielpatrickdp/review-tuner/internal/variation"
)

// #region types

// Attempt is one recorded, analyzed generation attempt.
type Attempt struct {
	AttemptID string
	EntityID  string
	Analysis  quality.Analysis
	// Start pins the settings the attempt was optimized from. When nil the
	// entity's settings carried over from its previous replayed attempt are used.
	Start *params.ParameterSet
}

// Config bundles the optimizer knobs for a replay run.
type Config struct {
	Table              rules.Table
	ChronicThreshold   int
	HighScoreThreshold float64
	UseSuccessPatterns bool
	Seeds              []patterns.SuccessPattern
}

// DefaultConfig returns the production defaults over the default rule table.
func DefaultConfig() Config {
	return Config{
		Table:              rules.DefaultTable(params.DefaultSchema()),
		ChronicThreshold:   optimizer.DefaultChronicThreshold,
		HighScoreThreshold: patterns.DefaultConfig().HighScoreThreshold,
	}
}

// Result captures the outcome of replaying one attempt.
type Result struct {
	AttemptID   string
	EntityID    string
	Score       float64
	ChangeCount int
	Changes     []optimizer.Change
	Summary     string
	Settings    params.ParameterSet // settings proposed for the entity's next attempt
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalAttempts int
	Adjusted      int
	NoOps         int
	TotalChanges  int
	ByPass        map[optimizer.Pass]int
	FinalSettings map[string]params.ParameterSet // entity -> last proposed settings
}

// #endregion types

// #region replay

// Replay runs each attempt through optimize-then-record, in order, against
// fresh in-memory learning and pattern stores.
func Replay(ctx context.Context, start params.ParameterSet, attempts []Attempt, config Config) ([]Result, error) {
	if config.Table.Len() == 0 {
		config.Table = rules.DefaultTable(params.DefaultSchema())
	}
	mem := NewMemory()
	pcfg := patterns.DefaultConfig()
	if config.HighScoreThreshold > 0 {
		pcfg.HighScoreThreshold = config.HighScoreThreshold
	}
	tracker := patterns.NewTracker(mem, pcfg)
	if err := tracker.Seed(ctx, config.Seeds); err != nil {
		return nil, fmt.Errorf("seed patterns: %w", err)
	}

	opt := optimizer.NewOptimizer(config.Table, optimizer.Deps{
		Learner:          learning.NewLearner(mem),
		Tracker:          tracker,
		Catalog:          variation.DefaultCatalog(),
		ChronicThreshold: config.ChronicThreshold,
	})

	current := map[string]params.ParameterSet{}
	results := make([]Result, 0, len(attempts))

	for _, a := range attempts {
		settings, ok := current[a.EntityID]
		if !ok {
			settings = start
		}
		if a.Start != nil {
			settings = *a.Start
		}

		analysis := a.Analysis
		res := opt.Optimize(ctx, settings, &analysis, optimizer.Options{
			EntityID:           a.EntityID,
			UseSuccessPatterns: config.UseSuccessPatterns,
			Record:             true,
		})
		current[a.EntityID] = res.Settings

		results = append(results, Result{
			AttemptID:   a.AttemptID,
			EntityID:    a.EntityID,
			Score:       a.Analysis.TotalScore,
			ChangeCount: res.ChangeCount,
			Changes:     res.Changes,
			Summary:     res.Summary(),
			Settings:    res.Settings,
		})
	}

	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{
		TotalAttempts: len(results),
		ByPass:        map[optimizer.Pass]int{},
		FinalSettings: map[string]params.ParameterSet{},
	}
	for _, r := range results {
		if r.ChangeCount == 0 {
			s.NoOps++
		} else {
			s.Adjusted++
		}
		s.TotalChanges += r.ChangeCount
		for _, c := range r.Changes {
			s.ByPass[c.Pass]++
		}
		s.FinalSettings[r.EntityID] = r.Settings
	}
	return s
}

// #endregion replay
