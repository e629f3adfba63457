package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/patterns"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                    `json:"description"`
	StartSettings   params.ParameterSet       `json:"start_settings"`
	Config          FixtureConfig             `json:"config"`
	SeedPatterns    []patterns.SuccessPattern `json:"seed_patterns"`
	Attempts        []FixtureAttempt          `json:"attempts"`
	ExpectedResults []FixtureExpectedResult   `json:"expected_results"`
}

// FixtureConfig holds the optimizer knobs. Zero values fall back to defaults.
type FixtureConfig struct {
	ChronicThreshold   int     `json:"chronic_threshold"`
	HighScoreThreshold float64 `json:"high_score_threshold"`
	UseSuccessPatterns bool    `json:"use_success_patterns"`
}

// FixtureAttempt mirrors Attempt with JSON tags.
type FixtureAttempt struct {
	AttemptID string           `json:"attempt_id"`
	EntityID  string           `json:"entity_id"`
	Analysis  quality.Analysis `json:"analysis"`
}

// FixtureExpectedResult captures the expected change count per attempt.
type FixtureExpectedResult struct {
	AttemptID   string `json:"attempt_id"`
	ChangeCount int    `json:"change_count"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file. A fixture without start
// settings starts from the default settings.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.StartSettings.Len() == 0 {
		f.StartSettings = params.DefaultSettings()
	}
	if err := params.DefaultSchema().Validate(f.StartSettings); err != nil {
		return nil, fmt.Errorf("fixture %s start settings: %w", path, err)
	}
	return &f, nil
}

// ToAttempt converts a FixtureAttempt to a replay Attempt.
func (fa *FixtureAttempt) ToAttempt() Attempt {
	return Attempt{
		AttemptID: fa.AttemptID,
		EntityID:  fa.EntityID,
		Analysis:  fa.Analysis,
	}
}

// ToConfig converts a fixture's config section and seeds into a replay Config.
func (f *Fixture) ToConfig() Config {
	c := DefaultConfig()
	if f.Config.ChronicThreshold > 0 {
		c.ChronicThreshold = f.Config.ChronicThreshold
	}
	if f.Config.HighScoreThreshold > 0 {
		c.HighScoreThreshold = f.Config.HighScoreThreshold
	}
	c.UseSuccessPatterns = f.Config.UseSuccessPatterns
	c.Seeds = f.SeedPatterns
	return c
}

// #endregion fixture-loader
