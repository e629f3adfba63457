// Package store is the SQLite settings store. It implements the persistence
// ports of the learning, patterns and abtest packages, and keeps versioned
// global settings.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout keeps a fixed fraction width so text timestamps sort in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS settings_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	settings_json TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES settings_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_settings (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES settings_versions(version_id)
);

CREATE TABLE IF NOT EXISTS entity_learning (
	entity_id     TEXT PRIMARY KEY,
	attempt_count INTEGER NOT NULL,
	avg_score     REAL NOT NULL,
	best_score    REAL NOT NULL,
	last_score    REAL NOT NULL,
	chronic_json  TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS success_patterns (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	pattern_type     TEXT NOT NULL,
	pattern_key      TEXT NOT NULL,
	pattern_value    TEXT,
	usage_count      INTEGER NOT NULL DEFAULT 0,
	avg_score_impact REAL NOT NULL DEFAULT 0,
	success_rate     REAL NOT NULL DEFAULT 0,
	is_active        INTEGER NOT NULL DEFAULT 1,
	updated_at       TEXT NOT NULL,
	UNIQUE (pattern_type, pattern_key)
);

CREATE TABLE IF NOT EXISTS ab_tests (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	test_type     TEXT,
	entity_id     TEXT NOT NULL,
	variant_a     TEXT NOT NULL,
	variant_b     TEXT NOT NULL,
	status        TEXT NOT NULL,
	score_a       REAL,
	score_b       REAL,
	winner        TEXT,
	error_detail  TEXT,
	post_ref_a    TEXT,
	post_ref_b    TEXT,
	created_at    TEXT NOT NULL,
	completed_at  TEXT
);

CREATE TABLE IF NOT EXISTS optimization_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id      TEXT,
	original_score REAL NOT NULL,
	change_count   INTEGER NOT NULL,
	changes_json   TEXT NOT NULL,
	before_json    TEXT NOT NULL,
	after_json     TEXT NOT NULL,
	analysis_json  TEXT,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS abtest_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	test_id       TEXT NOT NULL,
	from_status   TEXT,
	to_status     TEXT NOT NULL,
	detail        TEXT,
	created_at    TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct

// Store wraps the SQLite database. Read-modify-write operations hold mu for
// the whole transaction so concurrent attempts on one entity never lose an update.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the provenance logger.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
// #endregion helpers
