package learning

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/review-tuner/internal/quality"
)

// #region fake-store

type memStore struct {
	mu   sync.Mutex
	recs map[string]EntityRecord
}

func newMemStore() *memStore {
	return &memStore{recs: map[string]EntityRecord{}}
}

func (m *memStore) GetEntity(_ context.Context, id string) (*EntityRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memStore) UpdateEntity(_ context.Context, id string, fn func(*EntityRecord) EntityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prev *EntityRecord
	if rec, ok := m.recs[id]; ok {
		prev = &rec
	}
	m.recs[id] = fn(prev)
	return nil
}

// #endregion fake-store

var rec0Time = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRoseHotelScenario(t *testing.T) {
	ctx := context.Background()
	l := NewLearner(newMemStore())
	scene := []quality.WeakPoint{{Axis: "H", Category: "scene", ScoreRatio: 0.2}}

	require.NoError(t, l.RecordAttempt(ctx, "Rose Hotel", scene, 45))
	rec, err := l.Get(ctx, "Rose Hotel")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.AttemptCount)
	assert.Equal(t, 45.0, rec.AvgScore)
	assert.Equal(t, 45.0, rec.BestScore)
	assert.Equal(t, 45.0, rec.LastScore)
	assert.Equal(t, 1, rec.ChronicWeakPoints["H_scene"].Count)

	require.NoError(t, l.RecordAttempt(ctx, "Rose Hotel", scene, 60))
	rec, err = l.Get(ctx, "Rose Hotel")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.AttemptCount)
	assert.InDelta(t, 52.5, rec.AvgScore, 1e-9)
	assert.Equal(t, 60.0, rec.BestScore)
	assert.Equal(t, 60.0, rec.LastScore)
	assert.Equal(t, 2, rec.ChronicWeakPoints["H_scene"].Count)
	assert.Empty(t, rec.Chronic(3))
}

func TestRunningMean(t *testing.T) {
	scores := []float64{12.5, 90, 33.3, 71, 71, 0, 100, 48.2}
	var rec *EntityRecord
	var sum, best float64
	for i, s := range scores {
		next := Fold(rec, "h1", nil, s, rec0Time)
		rec = &next
		sum += s
		if i == 0 || s > best {
			best = s
		}
		assert.Equal(t, i+1, rec.AttemptCount)
		assert.InDelta(t, sum/float64(i+1), rec.AvgScore, 1e-9)
		assert.Equal(t, best, rec.BestScore)
		assert.Equal(t, s, rec.LastScore)
	}
}

func TestFoldDeduplicatesWithinAttempt(t *testing.T) {
	wps := []quality.WeakPoint{
		{Axis: "C", Category: "bath", ScoreRatio: 0.1},
		{Axis: "C", Category: "bath", ScoreRatio: 0.4},
		{Axis: "Q", Category: "depth", ScoreRatio: 0.5},
	}
	rec := Fold(nil, "h1", wps, 50, rec0Time)
	assert.Equal(t, 1, rec.ChronicWeakPoints["C_bath"].Count)
	assert.Equal(t, 1, rec.ChronicWeakPoints["Q_depth"].Count)

	rec = Fold(&rec, "h1", wps[:1], 55, rec0Time)
	assert.Equal(t, 2, rec.ChronicWeakPoints["C_bath"].Count)
	assert.Equal(t, 1, rec.ChronicWeakPoints["Q_depth"].Count)
}

func TestFoldDoesNotMutatePrevious(t *testing.T) {
	wps := []quality.WeakPoint{{Axis: "H", Category: "emotion"}}
	first := Fold(nil, "h1", wps, 50, rec0Time)
	_ = Fold(&first, "h1", wps, 70, rec0Time)
	assert.Equal(t, 1, first.ChronicWeakPoints["H_emotion"].Count)
	assert.Equal(t, 1, first.AttemptCount)
}

func TestChronicOrdering(t *testing.T) {
	rec := EntityRecord{ChronicWeakPoints: map[string]ChronicWeakPoint{
		"Q_depth":  {Axis: "Q", Category: "depth", Count: 3},
		"H_scene":  {Axis: "H", Category: "scene", Count: 5},
		"C_bath":   {Axis: "C", Category: "bath", Count: 3},
		"C_access": {Axis: "C", Category: "access", Count: 2},
	}}
	got := rec.Chronic(3)
	require.Len(t, got, 3)
	assert.Equal(t, "H_scene", got[0].Key())
	assert.Equal(t, "C_bath", got[1].Key())
	assert.Equal(t, "Q_depth", got[2].Key())
}

func TestRecordAttemptRejectsEmptyEntity(t *testing.T) {
	l := NewLearner(newMemStore())
	assert.Error(t, l.RecordAttempt(context.Background(), "", nil, 10))
}

func TestRecordAttemptConcurrentSameEntity(t *testing.T) {
	ctx := context.Background()
	l := NewLearner(newMemStore())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.RecordAttempt(ctx, "busy", nil, 40)
		}()
	}
	wg.Wait()

	rec, err := l.Get(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, 50, rec.AttemptCount)
	assert.InDelta(t, 40, rec.AvgScore, 1e-9)
}
