package abtest

import (
	"errors"
	"fmt"
)

// Outcome is the result of running one variant.
type Outcome struct {
	Score   float64
	PostRef string
	Err     error
}

// Verdict is the state a test moves to once both variants are settled.
type Verdict struct {
	Status      Status
	Winner      *Winner
	ScoreA      *float64
	ScoreB      *float64
	ErrorDetail string
}

// Decide applies the winner rules. A failed variant's score is absent, not
// zero; equal scores are a tie.
func Decide(a, b Outcome) Verdict {
	var v Verdict
	if a.Err == nil {
		s := a.Score
		v.ScoreA = &s
	}
	if b.Err == nil {
		s := b.Score
		v.ScoreB = &s
	}

	switch {
	case a.Err != nil && b.Err != nil:
		v.Status = StatusFailed
		v.ErrorDetail = errors.Join(
			fmt.Errorf("variant A: %w", a.Err),
			fmt.Errorf("variant B: %w", b.Err),
		).Error()
		return v
	case a.Err != nil:
		v.ErrorDetail = fmt.Sprintf("variant A: %v", a.Err)
		v.Winner = winner(WinnerB)
	case b.Err != nil:
		v.ErrorDetail = fmt.Sprintf("variant B: %v", b.Err)
		v.Winner = winner(WinnerA)
	case a.Score > b.Score:
		v.Winner = winner(WinnerA)
	case b.Score > a.Score:
		v.Winner = winner(WinnerB)
	default:
		v.Winner = winner(WinnerTie)
	}
	v.Status = StatusCompleted
	return v
}

func winner(w Winner) *Winner { return &w }
