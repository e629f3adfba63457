// Package abtest runs two parameter-set variants through generation and
// analysis, declares a winner, and can promote it into the global settings.
package abtest

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/review-tuner/internal/params"
)

// #region errors

var (
	ErrNotFound      = errors.New("ab test not found")
	ErrNotApplicable = errors.New("ab test has no applicable winner")
	ErrInvalidState  = errors.New("ab test is in the wrong state")
)

// #endregion errors

// #region status

// Status is the A/B test state: pending → running → completed | failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Winner names the better variant.
type Winner string

const (
	WinnerA   Winner = "A"
	WinnerB   Winner = "B"
	WinnerTie Winner = "TIE"
)

// #endregion status

// #region test

// Test is one two-variant comparison.
type Test struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	EntityID    string              `json:"entity_id"`
	VariantA    params.ParameterSet `json:"variant_a"`
	VariantB    params.ParameterSet `json:"variant_b"`
	Status      Status              `json:"status"`
	ScoreA      *float64            `json:"score_a"` // nil: variant could not be produced
	ScoreB      *float64            `json:"score_b"`
	Winner      *Winner             `json:"winner"`
	ErrorDetail string              `json:"error_detail,omitempty"`
	PostRefA    string              `json:"post_ref_a,omitempty"`
	PostRefB    string              `json:"post_ref_b,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// Retryable reports whether the test may be run again: it failed, or it
// completed without either variant producing a usable score.
func (t Test) Retryable() bool {
	switch t.Status {
	case StatusFailed:
		return true
	case StatusCompleted:
		return blank(t.ScoreA) && blank(t.ScoreB)
	}
	return false
}

// Applicable reports whether ApplyWinner may promote a variant.
func (t Test) Applicable() bool {
	if t.Status != StatusCompleted || t.Winner == nil {
		return false
	}
	return *t.Winner == WinnerA || *t.Winner == WinnerB
}

func blank(score *float64) bool {
	return score == nil || *score == 0
}

// #endregion test

// #region request

// CreateRequest describes a new test.
type CreateRequest struct {
	Name     string              `json:"name" validate:"required,max=120"`
	Type     string              `json:"type" validate:"omitempty,oneof=persona tone structure length combined"`
	EntityID string              `json:"entity_id" validate:"required,max=200"`
	VariantA params.ParameterSet `json:"variant_a"`
	VariantB params.ParameterSet `json:"variant_b"`
}

// #endregion request

// #region ports

// Store persists tests. GetTest returns nil, nil when id is unknown.
type Store interface {
	CreateTest(ctx context.Context, t Test) error
	GetTest(ctx context.Context, id string) (*Test, error)
	SaveTest(ctx context.Context, t Test) error
	DeleteTest(ctx context.Context, id string) (bool, error)
	ListTests(ctx context.Context, limit int) ([]Test, error)
}

// SettingsStore holds the global default parameter set.
type SettingsStore interface {
	GetGlobal(ctx context.Context) (params.ParameterSet, error)
	SetGlobal(ctx context.Context, settings params.ParameterSet, reason string) (string, error)
}

// Event is one recorded state transition.
type Event struct {
	TestID string
	From   Status
	To     Status
	Detail string
}

// EventSink records transitions. Failures are logged, never surfaced.
type EventSink interface {
	LogEvent(ctx context.Context, ev Event) error
}

// #endregion ports
