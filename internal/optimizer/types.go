package optimizer

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/review-tuner/internal/adjust"
	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
)

// #region pass

// Pass identifies which stage of Optimize produced a change.
type Pass string

const (
	PassChronic Pass = "chronic"
	PassCurrent Pass = "current"
	PassPattern Pass = "pattern"
)

// #endregion pass

// #region options

// DefaultChronicThreshold is the recurrence count at which a weak point is chronic.
const DefaultChronicThreshold = 3

// Options controls one Optimize call.
type Options struct {
	EntityID           string
	UseSuccessPatterns bool
	// Record folds the analysis into the learning store and success patterns
	// after the passes have run.
	Record bool
}

// #endregion options

// #region change

// Change is one entry of the change log.
type Change struct {
	Param    string          `json:"param"`
	From     string          `json:"from"`
	To       string          `json:"to"`
	Priority adjust.Priority `json:"priority"`
	Reason   string          `json:"reason"`
	Pass     Pass            `json:"pass"`
	Key      string          `json:"key,omitempty"` // weak-point or pattern key that caused it
}

// #endregion change

// #region result

// Result is the outcome of Optimize. It is always valid, possibly with no changes.
type Result struct {
	Settings      params.ParameterSet `json:"settings"`
	Changes       []Change            `json:"changes"`
	Reasons       []string            `json:"reasons"`
	ChangeCount   int                 `json:"change_count"`
	OriginalScore float64             `json:"original_score"`
	Instructions  []string            `json:"instructions"`
}

// Summary renders a one-line status for display.
func (r Result) Summary() string {
	if r.ChangeCount == 0 {
		return "no adjustments needed"
	}
	if r.ChangeCount == 1 {
		return "1 adjustment applied"
	}
	return fmt.Sprintf("%d adjustments applied", r.ChangeCount)
}

// #endregion result

// #region provenance

// RunRecord is what the optimizer hands to its provenance sink after each run.
type RunRecord struct {
	EntityID      string
	OriginalScore float64
	Changes       []Change
	Before        params.ParameterSet
	After         params.ParameterSet
	Analysis      *quality.Analysis // nil when Optimize ran without one
}

// ProvenanceSink persists optimize runs. Failures are logged, never surfaced.
type ProvenanceSink interface {
	LogRun(ctx context.Context, rec RunRecord) error
}

// #endregion provenance
