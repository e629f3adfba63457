package abtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
)

// #region fakes

type memStore struct {
	mu    sync.Mutex
	tests map[string]Test
}

func newMemStore() *memStore { return &memStore{tests: map[string]Test{}} }

func (m *memStore) CreateTest(_ context.Context, t Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[t.ID] = t
	return nil
}

func (m *memStore) GetTest(_ context.Context, id string) (*Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memStore) SaveTest(_ context.Context, t Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[t.ID] = t
	return nil
}

func (m *memStore) DeleteTest(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tests[id]
	delete(m.tests, id)
	return ok, nil
}

func (m *memStore) ListTests(_ context.Context, limit int) ([]Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Test
	for _, t := range m.tests {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memSettings struct {
	mu       sync.Mutex
	global   params.ParameterSet
	versions int
}

func (s *memSettings) GetGlobal(context.Context) (params.ParameterSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global.Clone(), nil
}

func (s *memSettings) SetGlobal(_ context.Context, p params.ParameterSet, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = p.Clone()
	s.versions++
	return "v-test", nil
}

// scripted generates a document named after the variant's tone; the analyzer
// scores it from the scores map. Tones listed in fail make generation fail.
type scripted struct {
	scores map[string]float64
	fail   map[string]bool
	block  bool
}

func (s *scripted) Generate(ctx context.Context, _ string, p params.ParameterSet) (quality.Document, error) {
	tone, _ := p.GetPath(params.PathTone).Str()
	if s.block {
		<-ctx.Done()
		return quality.Document{}, ctx.Err()
	}
	if s.fail[tone] {
		return quality.Document{}, errors.New("generator unavailable for " + tone)
	}
	return quality.Document{Text: tone, PostRef: "post-" + tone}, nil
}

func (s *scripted) Analyze(_ context.Context, doc string, _ quality.AnalysisContext) (quality.Analysis, error) {
	return quality.Analysis{TotalScore: s.scores[doc]}, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (e *eventLog) LogEvent(_ context.Context, ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

// #endregion fakes

// #region helpers

func variant(tone, structure string) params.ParameterSet {
	p := params.DefaultSettings()
	p.SetPath(params.PathTone, params.Scalar(tone))
	p.SetPath(params.PathStructure, params.Scalar(structure))
	return p
}

func newTestManager(gen *scripted, cfg Config) (*Manager, *memStore, *memSettings, *eventLog) {
	store := newMemStore()
	settings := &memSettings{global: params.DefaultSettings()}
	events := &eventLog{}
	m := NewManager(Deps{
		Store:     store,
		Settings:  settings,
		Generator: gen,
		Analyzer:  gen,
		Schema:    params.DefaultSchema(),
		Events:    events,
	}, cfg)
	return m, store, settings, events
}

func fastConfig() Config {
	return Config{Timeout: time.Second, Rate: rate.Inf, Burst: 2}
}

func createTest(t *testing.T, m *Manager) Test {
	t.Helper()
	test, err := m.Create(context.Background(), CreateRequest{
		Name:     "calm vs enthusiastic",
		Type:     "tone",
		EntityID: "Rose Hotel",
		VariantA: variant("calm", "highlight"),
		VariantB: variant("enthusiastic", "qa"),
	})
	require.NoError(t, err)
	return test
}

// #endregion helpers

func TestCreateValidates(t *testing.T) {
	m, _, _, _ := newTestManager(&scripted{}, fastConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"missing name", CreateRequest{EntityID: "x", VariantA: variant("calm", "qa"), VariantB: variant("calm", "qa")}},
		{"missing entity", CreateRequest{Name: "n", VariantA: variant("calm", "qa"), VariantB: variant("calm", "qa")}},
		{"unknown type", CreateRequest{Name: "n", Type: "colour", EntityID: "x", VariantA: variant("calm", "qa"), VariantB: variant("calm", "qa")}},
		{"empty variant", CreateRequest{Name: "n", EntityID: "x", VariantA: params.New(), VariantB: variant("calm", "qa")}},
		{"out of domain", CreateRequest{Name: "n", EntityID: "x", VariantA: variant("grumpy", "qa"), VariantB: variant("calm", "qa")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(ctx, tt.req)
			assert.Error(t, err)
		})
	}
}

func TestCreateStartsPending(t *testing.T) {
	m, _, _, events := newTestManager(&scripted{}, fastConfig())
	test := createTest(t, m)

	assert.NotEmpty(t, test.ID)
	assert.Equal(t, StatusPending, test.Status)
	assert.Nil(t, test.Winner)
	require.Len(t, events.events, 1)
	assert.Equal(t, StatusPending, events.events[0].To)
}

func TestRunWinnerSelection(t *testing.T) {
	tests := []struct {
		name   string
		scoreA float64
		scoreB float64
		want   Winner
	}{
		{"tie", 72.0, 72.0, WinnerTie},
		{"A by a hair", 80.1, 80.0, WinnerA},
		{"B", 61, 77, WinnerB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scripted{scores: map[string]float64{"calm": tt.scoreA, "enthusiastic": tt.scoreB}}
			m, _, _, _ := newTestManager(gen, fastConfig())
			test := createTest(t, m)

			got, err := m.Run(context.Background(), test.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, got.Status)
			require.NotNil(t, got.Winner)
			assert.Equal(t, tt.want, *got.Winner)
			require.NotNil(t, got.ScoreA)
			require.NotNil(t, got.ScoreB)
			assert.Equal(t, tt.scoreA, *got.ScoreA)
			assert.Equal(t, tt.scoreB, *got.ScoreB)
			assert.Equal(t, "post-calm", got.PostRefA)
			assert.NotNil(t, got.CompletedAt)
		})
	}
}

func TestRunOneVariantFails(t *testing.T) {
	gen := &scripted{
		scores: map[string]float64{"calm": 10, "enthusiastic": 90},
		fail:   map[string]bool{"enthusiastic": true},
	}
	m, _, _, _ := newTestManager(gen, fastConfig())
	test := createTest(t, m)

	got, err := m.Run(context.Background(), test.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Winner)
	assert.Equal(t, WinnerA, *got.Winner)
	require.NotNil(t, got.ScoreA)
	assert.Equal(t, 10.0, *got.ScoreA)
	assert.Nil(t, got.ScoreB, "failed variant score must be absent, not zero")
	assert.Contains(t, got.ErrorDetail, "variant B")
}

func TestRunBothFail(t *testing.T) {
	gen := &scripted{fail: map[string]bool{"calm": true, "enthusiastic": true}}
	m, store, _, events := newTestManager(gen, fastConfig())
	test := createTest(t, m)

	got, err := m.Run(context.Background(), test.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Nil(t, got.Winner)
	assert.Nil(t, got.ScoreA)
	assert.Nil(t, got.ScoreB)
	assert.Contains(t, got.ErrorDetail, "variant A: generate: generator unavailable for calm")
	assert.Contains(t, got.ErrorDetail, "variant B: generate: generator unavailable for enthusiastic")

	stored, _ := store.GetTest(context.Background(), test.ID)
	assert.Equal(t, StatusFailed, stored.Status)

	var to []Status
	for _, ev := range events.events {
		to = append(to, ev.To)
	}
	assert.Equal(t, []Status{StatusPending, StatusRunning, StatusFailed}, to)
}

func TestRunTimeoutIsAFailure(t *testing.T) {
	gen := &scripted{block: true}
	m, _, _, _ := newTestManager(gen, Config{Timeout: 20 * time.Millisecond, Rate: rate.Inf, Burst: 2})
	test := createTest(t, m)

	got, err := m.Run(context.Background(), test.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.ErrorDetail, context.DeadlineExceeded.Error())
}

func TestRunLimiterRefusalMarksVariantFailed(t *testing.T) {
	gen := &scripted{scores: map[string]float64{"calm": 70, "enthusiastic": 75}}
	// one token, never refilled: only one variant can be attempted
	m, _, _, _ := newTestManager(gen, Config{Timeout: time.Second, Rate: 0, Burst: 1})
	test := createTest(t, m)

	got, err := m.Run(context.Background(), test.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.Winner)
	assert.True(t, (got.ScoreA == nil) != (got.ScoreB == nil), "exactly one variant must be absent")
	if got.ScoreA == nil {
		assert.Equal(t, WinnerB, *got.Winner)
	} else {
		assert.Equal(t, WinnerA, *got.Winner)
	}
	assert.Contains(t, got.ErrorDetail, "not attempted")
}

func TestRunRequiresPending(t *testing.T) {
	gen := &scripted{scores: map[string]float64{"calm": 70, "enthusiastic": 75}}
	m, _, _, _ := newTestManager(gen, fastConfig())
	test := createTest(t, m)

	_, err := m.Run(context.Background(), test.ID)
	require.NoError(t, err)
	_, err = m.Run(context.Background(), test.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = m.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetry(t *testing.T) {
	gen := &scripted{
		scores: map[string]float64{"calm": 70, "enthusiastic": 75},
		fail:   map[string]bool{"calm": true, "enthusiastic": true},
	}
	m, _, _, _ := newTestManager(gen, fastConfig())
	ctx := context.Background()
	test := createTest(t, m)

	_, err := m.Retry(ctx, test.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "pending tests are run, not retried")

	got, err := m.Run(ctx, test.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, got.Status)

	gen.fail = nil
	got, err = m.Retry(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, WinnerB, *got.Winner)
	assert.Empty(t, got.ErrorDetail)

	_, err = m.Retry(ctx, test.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "completed with scores is final")
}

func TestRetryableZeroScores(t *testing.T) {
	zero := 0.0
	tie := WinnerTie
	assert.True(t, Test{Status: StatusCompleted, ScoreA: &zero, ScoreB: nil, Winner: &tie}.Retryable())
	assert.True(t, Test{Status: StatusFailed}.Retryable())
	assert.False(t, Test{Status: StatusRunning}.Retryable())
}

func TestApplyWinnerGuard(t *testing.T) {
	gen := &scripted{
		scores: map[string]float64{"calm": 72, "enthusiastic": 72},
		fail:   map[string]bool{"calm": true, "enthusiastic": true},
	}
	m, _, settings, _ := newTestManager(gen, fastConfig())
	ctx := context.Background()
	before := settings.global.Clone()

	pending := createTest(t, m)
	_, err := m.ApplyWinner(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrNotApplicable)

	failed := createTest(t, m)
	_, err = m.Run(ctx, failed.ID)
	require.NoError(t, err)
	_, err = m.ApplyWinner(ctx, failed.ID)
	assert.ErrorIs(t, err, ErrNotApplicable)

	gen.fail = nil
	tied := createTest(t, m)
	got, err := m.Run(ctx, tied.ID)
	require.NoError(t, err)
	require.Equal(t, WinnerTie, *got.Winner)
	_, err = m.ApplyWinner(ctx, tied.ID)
	assert.ErrorIs(t, err, ErrNotApplicable)

	assert.True(t, settings.global.Equal(before))
	assert.Equal(t, 0, settings.versions)
}

func TestApplyWinnerPromotesFields(t *testing.T) {
	gen := &scripted{scores: map[string]float64{"calm": 60, "enthusiastic": 88}}
	m, _, settings, _ := newTestManager(gen, fastConfig())
	ctx := context.Background()

	settings.global.SetPath(params.PathScene, params.Scalar("S3"))
	req := CreateRequest{
		Name:     "solo qa",
		EntityID: "Rose Hotel",
		VariantA: variant("calm", "highlight"),
		VariantB: variant("enthusiastic", "qa"),
	}
	req.VariantB.SetPath(params.PathPersona, params.Scalar("solo"))
	req.VariantB.SetPath(params.PathLength, params.Scalar("L3"))
	req.VariantB.SetPath(params.PathScene, params.Scalar("S1"))
	test, err := m.Create(ctx, req)
	require.NoError(t, err)
	_, err = m.Run(ctx, test.ID)
	require.NoError(t, err)

	version, err := m.ApplyWinner(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, "v-test", version)

	g := settings.global
	for path, want := range map[string]string{
		params.PathPersona:   "solo",
		params.PathTone:      "enthusiastic",
		params.PathStructure: "qa",
		params.PathLength:    "L3",
		params.PathScene:     "S3", // not a promoted field
	} {
		got, _ := g.GetPath(path).Str()
		assert.Equal(t, want, got, path)
	}
}

func TestDelete(t *testing.T) {
	gen := &scripted{fail: map[string]bool{"calm": true, "enthusiastic": true}}
	m, _, _, _ := newTestManager(gen, fastConfig())
	ctx := context.Background()
	test := createTest(t, m)
	_, err := m.Run(ctx, test.ID)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, test.ID))
	_, err = m.Get(ctx, test.ID)
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, m.Delete(ctx, test.ID), ErrNotFound)
}

func TestDecide(t *testing.T) {
	boom := errors.New("boom")

	v := Decide(Outcome{Score: 72}, Outcome{Score: 72})
	assert.Equal(t, WinnerTie, *v.Winner)

	v = Decide(Outcome{Err: boom}, Outcome{Score: 0})
	assert.Equal(t, StatusCompleted, v.Status)
	assert.Equal(t, WinnerB, *v.Winner)
	assert.Nil(t, v.ScoreA)
	require.NotNil(t, v.ScoreB)
	assert.Equal(t, 0.0, *v.ScoreB)

	v = Decide(Outcome{Err: boom}, Outcome{Err: boom})
	assert.Equal(t, StatusFailed, v.Status)
	assert.Nil(t, v.Winner)
}
