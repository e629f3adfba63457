package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/review-tuner/internal/abtest"
)

const abTestColumns = `id, name, test_type, entity_id, variant_a, variant_b, status, score_a, score_b,
	winner, error_detail, post_ref_a, post_ref_b, created_at, completed_at`

// #region create-test

// CreateTest inserts a new A/B test.
func (s *Store) CreateTest(ctx context.Context, t abtest.Test) error {
	args, err := testArgs(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ab_tests (`+abTestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("insert ab test: %w", err)
	}
	return nil
}

// #endregion create-test

// #region save-test

// SaveTest overwrites every mutable column of an existing test.
func (s *Store) SaveTest(ctx context.Context, t abtest.Test) error {
	args, err := testArgs(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE ab_tests SET name = ?, test_type = ?, entity_id = ?, variant_a = ?, variant_b = ?,
			status = ?, score_a = ?, score_b = ?, winner = ?, error_detail = ?, post_ref_a = ?,
			post_ref_b = ?, created_at = ?, completed_at = ?
		 WHERE id = ?`,
		append(append([]any{}, args[1:]...), args[0])...,
	)
	if err != nil {
		return fmt.Errorf("update ab test: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ab test %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// #endregion save-test

// #region get-test

// GetTest returns the test with id, or nil when it does not exist.
func (s *Store) GetTest(ctx context.Context, id string) (*abtest.Test, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+abTestColumns+` FROM ab_tests WHERE id = ?`, id)
	t, err := scanTest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ab test %s: %w", id, err)
	}
	return &t, nil
}

// ListTests returns up to limit tests, newest first. limit <= 0 means all.
func (s *Store) ListTests(ctx context.Context, limit int) ([]abtest.Test, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+abTestColumns+` FROM ab_tests ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ab tests: %w", err)
	}
	defer rows.Close()

	var out []abtest.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// #endregion get-test

// #region delete-test

// DeleteTest removes the test row. It reports whether a row existed.
func (s *Store) DeleteTest(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM ab_tests WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete ab test: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete ab test: %w", err)
	}
	return n > 0, nil
}

// #endregion delete-test

// #region encoding

func testArgs(t abtest.Test) ([]any, error) {
	a, err := json.Marshal(t.VariantA)
	if err != nil {
		return nil, fmt.Errorf("marshal variant A: %w", err)
	}
	b, err := json.Marshal(t.VariantB)
	if err != nil {
		return nil, fmt.Errorf("marshal variant B: %w", err)
	}

	var winner interface{}
	if t.Winner != nil {
		winner = string(*t.Winner)
	}
	var completed interface{}
	if t.CompletedAt != nil {
		completed = t.CompletedAt.Format(timeLayout)
	}

	return []any{
		t.ID, t.Name, nullIfEmpty(t.Type), t.EntityID, string(a), string(b), string(t.Status),
		nullFloat(t.ScoreA), nullFloat(t.ScoreB), winner, nullIfEmpty(t.ErrorDetail),
		nullIfEmpty(t.PostRefA), nullIfEmpty(t.PostRefB), t.CreatedAt.Format(timeLayout), completed,
	}, nil
}

func scanTest(sc scanner) (abtest.Test, error) {
	var t abtest.Test
	var typ, winner, detail, refA, refB, completed sql.NullString
	var scoreA, scoreB sql.NullFloat64
	var a, b, status, created string

	err := sc.Scan(&t.ID, &t.Name, &typ, &t.EntityID, &a, &b, &status, &scoreA, &scoreB,
		&winner, &detail, &refA, &refB, &created, &completed)
	if err != nil {
		return abtest.Test{}, err
	}
	if err := json.Unmarshal([]byte(a), &t.VariantA); err != nil {
		return abtest.Test{}, fmt.Errorf("unmarshal variant A: %w", err)
	}
	if err := json.Unmarshal([]byte(b), &t.VariantB); err != nil {
		return abtest.Test{}, fmt.Errorf("unmarshal variant B: %w", err)
	}

	t.Type = typ.String
	t.Status = abtest.Status(status)
	t.ScoreA, t.ScoreB = floatPtr(scoreA), floatPtr(scoreB)
	if winner.Valid {
		w := abtest.Winner(winner.String)
		t.Winner = &w
	}
	t.ErrorDetail, t.PostRefA, t.PostRefB = detail.String, refA.String, refB.String
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	if completed.Valid {
		ts, _ := time.Parse(time.RFC3339Nano, completed.String)
		t.CompletedAt = &ts
	}
	return t, nil
}

// #endregion encoding
