package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/review-tuner/internal/learning"
)

// #region get-entity

// GetEntity returns the learning record of id, or nil when it has none.
func (s *Store) GetEntity(ctx context.Context, id string) (*learning.EntityRecord, error) {
	rec, err := getEntity(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("get entity %s: %w", id, err)
	}
	return rec, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getEntity(ctx context.Context, q queryer, id string) (*learning.EntityRecord, error) {
	row := q.QueryRowContext(ctx,
		`SELECT entity_id, attempt_count, avg_score, best_score, last_score, chronic_json, updated_at
		 FROM entity_learning WHERE entity_id = ?`, id,
	)
	rec, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// #endregion get-entity

// #region update-entity

// UpdateEntity reads the record, applies fn, and writes the result in one
// transaction.
func (s *Store) UpdateEntity(ctx context.Context, id string, fn func(prev *learning.EntityRecord) learning.EntityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	prev, err := getEntity(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("read entity %s: %w", id, err)
	}
	next := fn(prev)

	chronic, err := json.Marshal(next.ChronicWeakPoints)
	if err != nil {
		return fmt.Errorf("marshal chronic weak points: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entity_learning (entity_id, attempt_count, avg_score, best_score, last_score, chronic_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET
			attempt_count = excluded.attempt_count,
			avg_score     = excluded.avg_score,
			best_score    = excluded.best_score,
			last_score    = excluded.last_score,
			chronic_json  = excluded.chronic_json,
			updated_at    = excluded.updated_at`,
		id, next.AttemptCount, next.AvgScore, next.BestScore, next.LastScore,
		string(chronic), next.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", id, err)
	}

	return tx.Commit()
}

// #endregion update-entity

// #region list-entities

// ListEntities returns entity records ordered by most recent update.
func (s *Store) ListEntities(ctx context.Context, limit int) ([]learning.EntityRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, attempt_count, avg_score, best_score, last_score, chronic_json, updated_at
		 FROM entity_learning ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []learning.EntityRecord
	for rows.Next() {
		rec, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion list-entities

func scanEntity(sc scanner) (learning.EntityRecord, error) {
	var rec learning.EntityRecord
	var chronic, updated string
	err := sc.Scan(&rec.EntityID, &rec.AttemptCount, &rec.AvgScore, &rec.BestScore, &rec.LastScore, &chronic, &updated)
	if err != nil {
		return learning.EntityRecord{}, err
	}
	rec.ChronicWeakPoints = map[string]learning.ChronicWeakPoint{}
	if err := json.Unmarshal([]byte(chronic), &rec.ChronicWeakPoints); err != nil {
		return learning.EntityRecord{}, fmt.Errorf("unmarshal chronic weak points: %w", err)
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return rec, nil
}
