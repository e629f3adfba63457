package patterns

import (
	"context"
	"strings"
	"time"

	"github.com/danielpatrickdp/review-tuner/internal/params"
)

// #region pattern-type

// PatternType classifies a success pattern.
type PatternType string

const (
	TypeVoiceBoost   PatternType = "h_boost"
	TypeQualityBoost PatternType = "q_boost"
	TypeContentBoost PatternType = "c_boost"
	TypeCombo        PatternType = "combo"
)

// BoostType maps an analysis axis ("H", "Q", "C") to its layer-boost type.
func BoostType(axis string) PatternType {
	return PatternType(strings.ToLower(axis) + "_boost")
}

// #endregion pattern-type

// #region success-pattern

// SuccessPattern tracks a sub-metric or style combination associated with
// high-scoring attempts. AvgScoreImpact is the running mean of the total
// scores of the UsageCount attempts that triggered it.
type SuccessPattern struct {
	ID             int64       `json:"id"`
	PatternType    PatternType `json:"pattern_type"`
	PatternKey     string      `json:"pattern_key"`
	PatternValue   string      `json:"pattern_value"`
	UsageCount     int         `json:"usage_count"`
	AvgScoreImpact float64     `json:"avg_score_impact"`
	SuccessRate    float64     `json:"success_rate"`
	IsActive       bool        `json:"is_active"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Observe folds one triggering attempt's total score into p.
func (p SuccessPattern) Observe(totalScore float64, now time.Time) SuccessPattern {
	n := float64(p.UsageCount)
	p.AvgScoreImpact = (p.AvgScoreImpact*n + totalScore) / (n + 1)
	p.UsageCount++
	p.UpdatedAt = now
	return p
}

// #endregion success-pattern

// #region combo

// Combo is the (structure, persona, tone) triple behind a combo pattern.
type Combo struct {
	Structure string `json:"structure"`
	Persona   string `json:"persona"`
	Tone      string `json:"tone"`
}

// ComboOf reads the triple from a parameter set. Missing entries are empty.
func ComboOf(p params.ParameterSet) Combo {
	structure, _ := p.GetPath(params.PathStructure).Str()
	persona, _ := p.GetPath(params.PathPersona).Str()
	tone, _ := p.GetPath(params.PathTone).Str()
	return Combo{Structure: structure, Persona: persona, Tone: tone}
}

// Key encodes the combo as "structure|persona|tone".
func (c Combo) Key() string {
	return c.Structure + "|" + c.Persona + "|" + c.Tone
}

// ParseCombo is the inverse of Combo.Key.
func ParseCombo(key string) (Combo, bool) {
	parts := strings.Split(key, "|")
	if len(parts) != 3 {
		return Combo{}, false
	}
	return Combo{Structure: parts[0], Persona: parts[1], Tone: parts[2]}, true
}

// #endregion combo

// #region store-port

// Filter narrows ListPatterns.
type Filter struct {
	Type           PatternType // empty = all types
	ActiveOnly     bool
	MinSuccessRate float64
	MinUsage       int
	Limit          int // 0 = unlimited
}

// Consumable is the filter used when patterns feed back into optimization:
// active, success rate >= 80, at least 3 uses.
func Consumable(t PatternType) Filter {
	return Filter{Type: t, ActiveOnly: true, MinSuccessRate: 80, MinUsage: 3}
}

// Match reports whether p passes f, ignoring Limit.
func (f Filter) Match(p SuccessPattern) bool {
	if f.Type != "" && p.PatternType != f.Type {
		return false
	}
	if f.ActiveOnly && !p.IsActive {
		return false
	}
	return p.SuccessRate >= f.MinSuccessRate && p.UsageCount >= f.MinUsage
}

// Store persists success patterns.
type Store interface {
	// UpdatePattern runs fn over the (typ, key) row in one atomic step. prev is
	// nil when the row does not exist; in that case the row is inserted only if
	// create is true, otherwise fn is not called and found is false.
	UpdatePattern(ctx context.Context, typ PatternType, key string, create bool, fn func(prev *SuccessPattern) SuccessPattern) (found bool, err error)
	// ListPatterns returns matching rows ordered by AvgScoreImpact descending.
	ListPatterns(ctx context.Context, f Filter) ([]SuccessPattern, error)
	// SetPatternActive toggles a row's IsActive flag.
	SetPatternActive(ctx context.Context, id int64, active bool) error
}

// #endregion store-port
