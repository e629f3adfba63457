package adjust

import "github.com/danielpatrickdp/review-tuner/internal/params"

// #region action

// Action enumerates how a rule moves its target parameter.
type Action string

const (
	ActionRecommend      Action = "recommend"        // set a single value
	ActionRecommendAny   Action = "recommend_any"    // keep current if already preferred, else adopt the first operand
	ActionIncrease       Action = "increase"         // advance along an ordered scale
	ActionEnsureNotEmpty Action = "ensure_not_empty" // seed a default when empty
	ActionEnsureContains Action = "ensure_contains"  // add an element to a set
)

// #endregion action

// #region priority

// Priority controls how aggressively a rule is applied.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Steps is the number of scale positions an increase advances at p.
func (p Priority) Steps() int {
	if p == PriorityHigh {
		return 2
	}
	return 1
}

// #endregion priority

// #region rule

// Rule is one parameter adjustment. For ActionIncrease the operands are the
// ordered scale; for the other actions they are candidate values.
type Rule struct {
	TargetPath string   `json:"target_path" yaml:"target_path"`
	Action     Action   `json:"action" yaml:"action"`
	Operands   []string `json:"operands" yaml:"operands"`
}

// #endregion rule

// #region change

// Change reports what Apply did to the target path.
type Change struct {
	Changed bool
	From    params.Value
	To      params.Value
}

// #endregion change
