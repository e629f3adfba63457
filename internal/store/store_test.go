package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/review-tuner/internal/abtest"
	"github.com/danielpatrickdp/review-tuner/internal/learning"
	"github.com/danielpatrickdp/review-tuner/internal/params"
	"github.com/danielpatrickdp/review-tuner/internal/patterns"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
)

// Compile-time port checks.
var (
	_ learning.RecordStore = (*Store)(nil)
	_ patterns.Store       = (*Store)(nil)
	_ abtest.Store         = (*Store)(nil)
	_ abtest.SettingsStore = (*Store)(nil)
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// #region settings

func TestGlobalSettingsVersioning(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	_, err := s.GetGlobal(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	seed, err := s.EnsureGlobal(ctx, params.DefaultSettings())
	require.NoError(t, err)
	assert.Empty(t, seed.ParentID)
	assert.Equal(t, "seed", seed.Reason)

	again, err := s.EnsureGlobal(ctx, params.New())
	require.NoError(t, err)
	assert.Equal(t, seed.VersionID, again.VersionID, "seeding is idempotent")

	next := params.DefaultSettings()
	next.SetPath(params.PathTone, params.Scalar("calm"))
	v2, err := s.SetGlobal(ctx, next, "ab test winner")
	require.NoError(t, err)

	cur, err := s.GetGlobal(ctx)
	require.NoError(t, err)
	assert.True(t, cur.Equal(next))

	active, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2, active.VersionID)
	assert.Equal(t, seed.VersionID, active.ParentID)

	require.NoError(t, s.Rollback(ctx, seed.VersionID))
	cur, err = s.GetGlobal(ctx)
	require.NoError(t, err)
	assert.True(t, cur.Equal(params.DefaultSettings()))

	assert.ErrorIs(t, s.Rollback(ctx, "nope"), ErrNotFound)

	versions, err := s.ListVersions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, v2, versions[0].VersionID)
}

// #endregion settings

// #region entities

func TestEntityRoundTrip(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	l := learning.NewLearner(s)

	rec, err := s.GetEntity(ctx, "Rose Hotel")
	require.NoError(t, err)
	assert.Nil(t, rec)

	scene := []quality.WeakPoint{{Axis: "H", Category: "scene", ScoreRatio: 0.2}}
	require.NoError(t, l.RecordAttempt(ctx, "Rose Hotel", scene, 45))
	require.NoError(t, l.RecordAttempt(ctx, "Rose Hotel", scene, 55))

	rec, err = s.GetEntity(ctx, "Rose Hotel")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 2, rec.AttemptCount)
	assert.InDelta(t, 50.0, rec.AvgScore, 1e-9)
	assert.Equal(t, 55.0, rec.BestScore)
	assert.Equal(t, 55.0, rec.LastScore)
	assert.Equal(t, 2, rec.ChronicWeakPoints["H_scene"].Count)
	assert.False(t, rec.UpdatedAt.IsZero())

	all, err := s.ListEntities(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEntityConcurrentUpdates(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	l := learning.NewLearner(s)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.RecordAttempt(ctx, "Hotel Sakura", nil, 60))
		}()
	}
	wg.Wait()

	rec, err := s.GetEntity(ctx, "Hotel Sakura")
	require.NoError(t, err)
	assert.Equal(t, 20, rec.AttemptCount)
	assert.InDelta(t, 60.0, rec.AvgScore, 1e-9)
}

// #endregion entities

// #region patterns

func TestPatternStore(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	tr := patterns.NewTracker(s, patterns.DefaultConfig())

	require.NoError(t, tr.Seed(ctx, []patterns.SuccessPattern{
		{PatternType: patterns.TypeVoiceBoost, PatternKey: "scene", PatternValue: "S3", SuccessRate: 90, IsActive: true},
	}))

	winner := params.DefaultSettings()
	attempt := patterns.Attempt{
		EntityID:   "Rose Hotel",
		TotalScore: 90,
		Details:    map[string][]quality.SubMetric{"H": {{Key: "scene", Score: 9, Max: 10}}},
		Settings:   winner,
	}
	for i := 0; i < 3; i++ {
		_, err := tr.Extract(ctx, attempt)
		require.NoError(t, err)
	}

	scene, err := tr.Ranked(ctx, patterns.TypeVoiceBoost, 0)
	require.NoError(t, err)
	require.Len(t, scene, 1)
	assert.Equal(t, 3, scene[0].UsageCount)
	assert.Equal(t, "S3", scene[0].PatternValue)

	combo, pat, err := tr.BestCombo(ctx)
	require.NoError(t, err)
	require.NotNil(t, combo)
	assert.Equal(t, patterns.ComboOf(winner), *combo)
	assert.InDelta(t, 90.0, pat.AvgScoreImpact, 1e-9)

	require.NoError(t, tr.SetActive(ctx, pat.ID, false))
	combo, _, err = tr.BestCombo(ctx)
	require.NoError(t, err)
	assert.Nil(t, combo)

	assert.ErrorIs(t, s.SetPatternActive(ctx, 9999, true), ErrNotFound)

	all, err := s.ListPatterns(ctx, patterns.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdatePatternWithoutCreate(t *testing.T) {
	s := tempDB(t)
	called := false
	found, err := s.UpdatePattern(context.Background(), patterns.TypeContentBoost, "bath", false,
		func(*patterns.SuccessPattern) patterns.SuccessPattern {
			called = true
			return patterns.SuccessPattern{}
		})
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, called)
}

// #endregion patterns

// #region abtests

func TestABTestRoundTrip(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	test := abtest.Test{
		ID:        "t1",
		Name:      "calm vs candid",
		Type:      "tone",
		EntityID:  "Rose Hotel",
		VariantA:  params.DefaultSettings(),
		VariantB:  params.DefaultSettings(),
		Status:    abtest.StatusPending,
		CreatedAt: created,
	}
	require.NoError(t, s.CreateTest(ctx, test))

	got, err := s.GetTest(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, abtest.StatusPending, got.Status)
	assert.Nil(t, got.ScoreA)
	assert.Nil(t, got.Winner)
	assert.Nil(t, got.CompletedAt)
	assert.True(t, got.VariantA.Equal(test.VariantA))
	assert.True(t, got.CreatedAt.Equal(created))

	score := 81.5
	w := abtest.WinnerA
	done := created.Add(time.Minute)
	test.Status = abtest.StatusCompleted
	test.ScoreA = &score
	test.Winner = &w
	test.ErrorDetail = "variant B: generate: timeout"
	test.CompletedAt = &done
	require.NoError(t, s.SaveTest(ctx, test))

	got, err = s.GetTest(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, abtest.StatusCompleted, got.Status)
	require.NotNil(t, got.ScoreA)
	assert.Equal(t, 81.5, *got.ScoreA)
	assert.Nil(t, got.ScoreB, "absent score stays absent")
	assert.Equal(t, abtest.WinnerA, *got.Winner)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(done))

	list, err := s.ListTests(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	ok, err := s.DeleteTest(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = s.GetTest(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, s.SaveTest(ctx, test), ErrNotFound)
}

// #endregion abtests
