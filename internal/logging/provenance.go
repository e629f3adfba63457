package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/review-tuner/internal/abtest"
	"github.com/danielpatrickdp/review-tuner/internal/optimizer"
	"github.com/danielpatrickdp/review-tuner/internal/quality"
)

// timeLayout matches the store's fixed-width timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region log-optimization

// LogOptimization writes one optimize run to the optimization_log table.
func LogOptimization(ctx context.Context, db *sql.DB, rec optimizer.RunRecord) error {
	changes, err := json.Marshal(rec.Changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	before, err := json.Marshal(rec.Before)
	if err != nil {
		return fmt.Errorf("marshal before: %w", err)
	}
	after, err := json.Marshal(rec.After)
	if err != nil {
		return fmt.Errorf("marshal after: %w", err)
	}
	var analysis string
	if rec.Analysis != nil {
		data, err := json.Marshal(rec.Analysis)
		if err != nil {
			return fmt.Errorf("marshal analysis: %w", err)
		}
		analysis = string(data)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO optimization_log (entity_id, original_score, change_count, changes_json, before_json, after_json, analysis_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(rec.EntityID),
		rec.OriginalScore,
		len(rec.Changes),
		string(changes),
		string(before),
		string(after),
		nullIfEmpty(analysis),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log optimization: %w", err)
	}
	return nil
}

// #endregion log-optimization

// #region log-ab-event

// LogABEvent writes one A/B test transition to the abtest_events table.
func LogABEvent(ctx context.Context, db *sql.DB, ev abtest.Event) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO abtest_events (test_id, from_status, to_status, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.TestID,
		nullIfEmpty(string(ev.From)),
		string(ev.To),
		nullIfEmpty(ev.Detail),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("log ab event: %w", err)
	}
	return nil
}

// #endregion log-ab-event

// #region read-back

// LoggedRun is an optimization_log row read back for replay or export.
type LoggedRun struct {
	ID          int64
	ChangeCount int
	CreatedAt   time.Time
	optimizer.RunRecord
}

// ReadRuns returns the last n runs that carried an analysis, oldest first.
// n <= 0 returns all of them.
func ReadRuns(ctx context.Context, db *sql.DB, n int) ([]LoggedRun, error) {
	if n <= 0 {
		n = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, entity_id, original_score, change_count, changes_json, before_json, after_json, analysis_json, created_at
		 FROM (
			SELECT * FROM optimization_log WHERE analysis_json IS NOT NULL ORDER BY id DESC LIMIT ?
		 ) sub ORDER BY id ASC`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query optimization_log: %w", err)
	}
	defer rows.Close()

	var out []LoggedRun
	for rows.Next() {
		var r LoggedRun
		var entity sql.NullString
		var changes, before, after, analysis, created string
		if err := rows.Scan(&r.ID, &entity, &r.OriginalScore, &r.ChangeCount, &changes, &before, &after, &analysis, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.EntityID = entity.String
		if err := json.Unmarshal([]byte(changes), &r.Changes); err != nil {
			return nil, fmt.Errorf("run %d changes: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(before), &r.Before); err != nil {
			return nil, fmt.Errorf("run %d before: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(after), &r.After); err != nil {
			return nil, fmt.Errorf("run %d after: %w", r.ID, err)
		}
		r.Analysis = &quality.Analysis{}
		if err := json.Unmarshal([]byte(analysis), r.Analysis); err != nil {
			return nil, fmt.Errorf("run %d analysis: %w", r.ID, err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// ReadEvents returns the status transitions of one A/B test, oldest first.
func ReadEvents(ctx context.Context, db *sql.DB, testID string) ([]abtest.Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT from_status, to_status, detail FROM abtest_events WHERE test_id = ? ORDER BY id ASC`, testID,
	)
	if err != nil {
		return nil, fmt.Errorf("query abtest_events: %w", err)
	}
	defer rows.Close()

	var out []abtest.Event
	for rows.Next() {
		var from, detail sql.NullString
		var to string
		if err := rows.Scan(&from, &to, &detail); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, abtest.Event{
			TestID: testID,
			From:   abtest.Status(from.String),
			To:     abtest.Status(to),
			Detail: detail.String,
		})
	}
	return out, rows.Err()
}

// #endregion read-back

// #region sink

// Provenance adapts the log functions to the optimizer and abtest sink ports.
type Provenance struct {
	db *sql.DB
}

// NewProvenance returns a sink writing to db.
func NewProvenance(db *sql.DB) *Provenance {
	return &Provenance{db: db}
}

// LogRun implements optimizer.ProvenanceSink.
func (p *Provenance) LogRun(ctx context.Context, rec optimizer.RunRecord) error {
	return LogOptimization(ctx, p.db, rec)
}

// LogEvent implements abtest.EventSink.
func (p *Provenance) LogEvent(ctx context.Context, ev abtest.Event) error {
	return LogABEvent(ctx, p.db, ev)
}

// #endregion sink

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
