// Package quality defines the contracts of the external collaborators that
// score and produce review documents.
package quality

import (
	"context"

	"github.com/danielpatrickdp/review-tuner/internal/params"
)

// #region weak-point

// WeakPoint is a diagnosed deficiency on one analysis axis.
type WeakPoint struct {
	Axis       string  `json:"axis"`
	Category   string  `json:"category"`
	ScoreRatio float64 `json:"score_ratio"`
}

// Key is the rule-table lookup key "{axis}_{category}".
func (w WeakPoint) Key() string {
	return w.Axis + "_" + w.Category
}

// HighPriority reports whether the deficiency is severe (ratio < 0.3).
func (w WeakPoint) HighPriority() bool {
	return w.ScoreRatio < 0.3
}

// #endregion weak-point

// #region analysis

// AxisScore is the score on one axis.
type AxisScore struct {
	Score float64 `json:"score"`
	Max   float64 `json:"max"`
}

// SubMetric is one entry of an axis' detail breakdown.
type SubMetric struct {
	Key   string  `json:"key"`
	Score float64 `json:"score"`
	Max   float64 `json:"max"`
}

// Ratio returns score/max, or 0 when max is not positive.
func (m SubMetric) Ratio() float64 {
	if m.Max <= 0 {
		return 0
	}
	return m.Score / m.Max
}

// Analysis is the Quality Analyzer's verdict on one document.
type Analysis struct {
	AxisScores map[string]AxisScore   `json:"axis_scores"`
	TotalScore float64                `json:"total_score"`
	WeakPoints []WeakPoint            `json:"weak_points"`
	Details    map[string][]SubMetric `json:"details"`
}

// AnalysisContext carries what the analyzer may need besides the text.
type AnalysisContext struct {
	EntityID string
	Settings params.ParameterSet
}

// #endregion analysis

// #region document

// Document is a generated review.
type Document struct {
	Text    string `json:"text"`
	PostRef string `json:"post_ref"`
}

// #endregion document

// #region interfaces

// Analyzer turns a document into scores and weak points.
type Analyzer interface {
	Analyze(ctx context.Context, document string, actx AnalysisContext) (Analysis, error)
}

// Generator produces a document for an entity from a parameter set.
type Generator interface {
	Generate(ctx context.Context, entityID string, settings params.ParameterSet) (Document, error)
}

// #endregion interfaces
