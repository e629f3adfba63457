package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/review-tuner/internal/patterns"
)

const patternColumns = `id, pattern_type, pattern_key, pattern_value, usage_count, avg_score_impact, success_rate, is_active, updated_at`

// #region update-pattern

// UpdatePattern reads the (typ, key) row, applies fn, and writes the result
// in one transaction. Absent rows are inserted only when create is true.
func (s *Store) UpdatePattern(ctx context.Context, typ patterns.PatternType, key string, create bool, fn func(prev *patterns.SuccessPattern) patterns.SuccessPattern) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM success_patterns WHERE pattern_type = ? AND pattern_key = ?`,
		string(typ), key,
	)
	prev, err := scanPattern(row)
	found := true
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		return false, fmt.Errorf("read pattern %s/%s: %w", typ, key, err)
	}
	if !found && !create {
		return false, nil
	}

	var next patterns.SuccessPattern
	if found {
		next = fn(&prev)
	} else {
		next = fn(nil)
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO success_patterns (pattern_type, pattern_key, pattern_value, usage_count, avg_score_impact, success_rate, is_active, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pattern_type, pattern_key) DO UPDATE SET
			pattern_value    = excluded.pattern_value,
			usage_count      = excluded.usage_count,
			avg_score_impact = excluded.avg_score_impact,
			success_rate     = excluded.success_rate,
			is_active        = excluded.is_active,
			updated_at       = excluded.updated_at`,
		string(typ), key, nullIfEmpty(next.PatternValue), next.UsageCount, next.AvgScoreImpact,
		next.SuccessRate, next.IsActive, next.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("upsert pattern %s/%s: %w", typ, key, err)
	}

	return found, tx.Commit()
}

// #endregion update-pattern

// #region list-patterns

// ListPatterns returns rows matching f ordered by avg_score_impact descending.
func (s *Store) ListPatterns(ctx context.Context, f patterns.Filter) ([]patterns.SuccessPattern, error) {
	var where []string
	var args []any
	if f.Type != "" {
		where = append(where, "pattern_type = ?")
		args = append(args, string(f.Type))
	}
	if f.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if f.MinSuccessRate > 0 {
		where = append(where, "success_rate >= ?")
		args = append(args, f.MinSuccessRate)
	}
	if f.MinUsage > 0 {
		where = append(where, "usage_count >= ?")
		args = append(args, f.MinUsage)
	}

	q := `SELECT ` + patternColumns + ` FROM success_patterns`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY avg_score_impact DESC, id ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var out []patterns.SuccessPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// #endregion list-patterns

// #region set-active

// SetPatternActive toggles a pattern's is_active flag.
func (s *Store) SetPatternActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE success_patterns SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("set pattern active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set pattern active: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("pattern %d: %w", id, ErrNotFound)
	}
	return nil
}

// #endregion set-active

func scanPattern(sc scanner) (patterns.SuccessPattern, error) {
	var p patterns.SuccessPattern
	var typ, updated string
	var value sql.NullString
	err := sc.Scan(&p.ID, &typ, &p.PatternKey, &value, &p.UsageCount, &p.AvgScoreImpact, &p.SuccessRate, &p.IsActive, &updated)
	if err != nil {
		return patterns.SuccessPattern{}, err
	}
	p.PatternType = patterns.PatternType(typ)
	p.PatternValue = value.String
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return p, nil
}
