package abtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
)

var validate = validator.New()

// PromotedPaths are the fields ApplyWinner copies into the global settings.
var PromotedPaths = []string{
	params.PathPersona,
	params.PathTone,
	params.PathStructure,
	params.PathLength,
}

// #region config

// Config bounds variant execution.
type Config struct {
	Timeout time.Duration // per variant, covers generate + analyze
	Rate    rate.Limit    // generation calls per second
	Burst   int
}

// DefaultConfig allows both variants of a test to start at once.
func DefaultConfig() Config {
	return Config{
		Timeout: 2 * time.Minute,
		Rate:    rate.Limit(1),
		Burst:   2,
	}
}

// #endregion config

// #region manager

// Deps are the Manager's collaborators. Events may be nil.
type Deps struct {
	Store     Store
	Settings  SettingsStore
	Generator quality.Generator
	Analyzer  quality.Analyzer
	Schema    params.Schema
	Events    EventSink
}

// Manager owns A/B test state transitions.
type Manager struct {
	deps    Deps
	config  Config
	limiter *rate.Limiter
	now     func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

// NewManager creates a Manager.
func NewManager(deps Deps, config Config) *Manager {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &Manager{
		deps:    deps,
		config:  config,
		limiter: rate.NewLimiter(config.Rate, config.Burst),
		now:     func() time.Time { return time.Now().UTC() },
		running: map[string]bool{},
	}
}

// #endregion manager

// #region crud

// Create validates req and stores a pending test.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (Test, error) {
	if err := validate.Struct(req); err != nil {
		return Test{}, fmt.Errorf("invalid ab test request: %w", err)
	}
	if req.VariantA.Len() == 0 || req.VariantB.Len() == 0 {
		return Test{}, fmt.Errorf("invalid ab test request: both variants must set at least one parameter")
	}
	if m.deps.Schema != nil {
		if err := m.deps.Schema.Validate(req.VariantA); err != nil {
			return Test{}, fmt.Errorf("variant A: %w", err)
		}
		if err := m.deps.Schema.Validate(req.VariantB); err != nil {
			return Test{}, fmt.Errorf("variant B: %w", err)
		}
	}

	t := Test{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Type:      req.Type,
		EntityID:  req.EntityID,
		VariantA:  req.VariantA.Clone(),
		VariantB:  req.VariantB.Clone(),
		Status:    StatusPending,
		CreatedAt: m.now(),
	}
	if err := m.deps.Store.CreateTest(ctx, t); err != nil {
		return Test{}, fmt.Errorf("create ab test: %w", err)
	}
	m.event(ctx, Event{TestID: t.ID, To: StatusPending, Detail: t.Name})
	return t, nil
}

// Get returns the test with id.
func (m *Manager) Get(ctx context.Context, id string) (Test, error) {
	t, err := m.deps.Store.GetTest(ctx, id)
	if err != nil {
		return Test{}, fmt.Errorf("get ab test %s: %w", id, err)
	}
	if t == nil {
		return Test{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return *t, nil
}

// List returns up to limit tests, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]Test, error) {
	out, err := m.deps.Store.ListTests(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list ab tests: %w", err)
	}
	return out, nil
}

// Delete removes the test regardless of its status. Learning records and
// success patterns are not touched.
func (m *Manager) Delete(ctx context.Context, id string) error {
	ok, err := m.deps.Store.DeleteTest(ctx, id)
	if err != nil {
		return fmt.Errorf("delete ab test %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	log.Info().Str("component", "abtest").Str("test", id).Msg("ab test deleted")
	return nil
}

// #endregion crud

// #region run

// Run executes a pending test. Both variants run concurrently and the test
// leaves running only after both are settled.
func (m *Manager) Run(ctx context.Context, id string) (Test, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return Test{}, err
	}
	if t.Status != StatusPending {
		return t, fmt.Errorf("run %s from %s: %w", id, t.Status, ErrInvalidState)
	}
	return m.execute(ctx, t)
}

// Retry re-runs a failed test, or a completed one with no usable score,
// discarding prior results.
func (m *Manager) Retry(ctx context.Context, id string) (Test, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return Test{}, err
	}
	if !t.Retryable() {
		return t, fmt.Errorf("retry %s from %s: %w", id, t.Status, ErrInvalidState)
	}
	return m.execute(ctx, t)
}

func (m *Manager) execute(ctx context.Context, t Test) (Test, error) {
	if !m.claim(t.ID) {
		return t, fmt.Errorf("%s is already running: %w", t.ID, ErrInvalidState)
	}
	defer m.release(t.ID)

	from := t.Status
	t.Status = StatusRunning
	t.ScoreA, t.ScoreB, t.Winner = nil, nil, nil
	t.ErrorDetail, t.PostRefA, t.PostRefB = "", "", ""
	t.CompletedAt = nil
	if err := m.deps.Store.SaveTest(ctx, t); err != nil {
		return t, fmt.Errorf("start ab test %s: %w", t.ID, err)
	}
	m.event(ctx, Event{TestID: t.ID, From: from, To: StatusRunning})

	var outcomes [2]Outcome
	variants := [2]params.ParameterSet{t.VariantA, t.VariantB}

	// Variant errors live in outcomes; the group never cancels a sibling.
	var g errgroup.Group
	for i := range variants {
		g.Go(func() error {
			outcomes[i] = m.runVariant(ctx, t.EntityID, variants[i])
			return nil
		})
	}
	_ = g.Wait()

	v := Decide(outcomes[0], outcomes[1])
	done := m.now()
	t.Status = v.Status
	t.Winner = v.Winner
	t.ScoreA, t.ScoreB = v.ScoreA, v.ScoreB
	t.ErrorDetail = v.ErrorDetail
	t.PostRefA, t.PostRefB = outcomes[0].PostRef, outcomes[1].PostRef
	t.CompletedAt = &done

	// The caller's context may have expired with the variants; settle the
	// record anyway so it never stays running.
	saveCtx := context.WithoutCancel(ctx)
	if err := m.deps.Store.SaveTest(saveCtx, t); err != nil {
		return t, fmt.Errorf("finish ab test %s: %w", t.ID, err)
	}

	detail := t.ErrorDetail
	if t.Winner != nil {
		detail = "winner " + string(*t.Winner)
	}
	m.event(saveCtx, Event{TestID: t.ID, From: StatusRunning, To: t.Status, Detail: detail})

	ev := log.Info()
	if t.Status == StatusFailed {
		ev = log.Warn()
	}
	ev.Str("component", "abtest").
		Str("test", t.ID).
		Str("status", string(t.Status)).
		Str("detail", detail).
		Msg("ab test settled")
	return t, nil
}

// runVariant generates and scores one variant under the shared limiter and
// the per-call timeout. A variant the limiter refuses is a failure.
func (m *Manager) runVariant(ctx context.Context, entityID string, settings params.ParameterSet) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	if err := m.limiter.Wait(callCtx); err != nil {
		return Outcome{Err: fmt.Errorf("not attempted: %w", err)}
	}

	doc, err := m.deps.Generator.Generate(callCtx, entityID, settings)
	if err != nil {
		return Outcome{Err: fmt.Errorf("generate: %w", err)}
	}
	analysis, err := m.deps.Analyzer.Analyze(callCtx, doc.Text, quality.AnalysisContext{EntityID: entityID, Settings: settings})
	if err != nil {
		return Outcome{PostRef: doc.PostRef, Err: fmt.Errorf("analyze: %w", err)}
	}
	return Outcome{Score: analysis.TotalScore, PostRef: doc.PostRef}
}

func (m *Manager) claim(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running[id] {
		return false
	}
	m.running[id] = true
	return true
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, id)
}

// #endregion run

// #region apply

// ApplyWinner copies the winning variant's promoted fields into the global
// settings and returns the new settings version id. Tests that are not
// completed, or completed as a tie, are rejected with ErrNotApplicable.
func (m *Manager) ApplyWinner(ctx context.Context, id string) (string, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !t.Applicable() {
		return "", fmt.Errorf("apply %s (status %s): %w", id, t.Status, ErrNotApplicable)
	}

	src := t.VariantA
	if *t.Winner == WinnerB {
		src = t.VariantB
	}

	global, err := m.deps.Settings.GetGlobal(ctx)
	if err != nil {
		return "", fmt.Errorf("load global settings: %w", err)
	}
	next := Promote(global, src)

	reason := fmt.Sprintf("ab test %s winner %s", t.ID, *t.Winner)
	version, err := m.deps.Settings.SetGlobal(ctx, next, reason)
	if err != nil {
		return "", fmt.Errorf("save global settings: %w", err)
	}

	m.event(ctx, Event{TestID: t.ID, From: t.Status, To: t.Status, Detail: "applied as " + version})
	log.Info().Str("component", "abtest").Str("test", t.ID).Str("version", version).Msg("winner applied")
	return version, nil
}

// Promote returns a copy of global with the promoted fields taken from
// winner. Fields the winner leaves absent keep their global value.
func Promote(global, winner params.ParameterSet) params.ParameterSet {
	out := global.Clone()
	for _, path := range PromotedPaths {
		if v := winner.GetPath(path); !v.IsZero() {
			out.SetPath(path, v)
		}
	}
	return out
}

// #endregion apply

func (m *Manager) event(ctx context.Context, ev Event) {
	if m.deps.Events == nil {
		return
	}
	if err := m.deps.Events.LogEvent(ctx, ev); err != nil {
		log.Warn().Err(err).Str("component", "abtest").Str("test", ev.TestID).Msg("event log failed")
	}
}

// IsNotFound reports whether err means the test does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
