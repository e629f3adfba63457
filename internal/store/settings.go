package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/review-tuner/internal/params"
)

// #region settings-version

// SettingsVersion is one saved revision of the global settings.
type SettingsVersion struct {
	VersionID string              `json:"version_id"`
	ParentID  string              `json:"parent_id,omitempty"`
	Settings  params.ParameterSet `json:"settings"`
	Reason    string              `json:"reason,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// #endregion settings-version

// #region ensure-global

// EnsureGlobal installs seed as the first global version when none exists
// and returns the active version.
func (s *Store) EnsureGlobal(ctx context.Context, seed params.ParameterSet) (SettingsVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.activeVersion(ctx)
	if err == nil {
		return cur, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return SettingsVersion{}, err
	}

	v, err := s.insertVersion(ctx, seed, "seed")
	if err != nil {
		return SettingsVersion{}, err
	}
	log.Info().Str("component", "store").Str("version", v.VersionID).Msg("global settings seeded")
	return v, nil
}

// #endregion ensure-global

// #region get-global

// GetGlobal returns the active global settings.
func (s *Store) GetGlobal(ctx context.Context) (params.ParameterSet, error) {
	v, err := s.activeVersion(ctx)
	if err != nil {
		return params.ParameterSet{}, err
	}
	return v.Settings, nil
}

// Active returns the active version with its metadata.
func (s *Store) Active(ctx context.Context) (SettingsVersion, error) {
	return s.activeVersion(ctx)
}

func (s *Store) activeVersion(ctx context.Context) (SettingsVersion, error) {
	var versionID string
	err := s.db.QueryRowContext(ctx, `SELECT version_id FROM active_settings WHERE id = 1`).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return SettingsVersion{}, fmt.Errorf("active settings: %w", ErrNotFound)
	}
	if err != nil {
		return SettingsVersion{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(ctx, versionID)
}

// #endregion get-global

// #region set-global

// SetGlobal saves settings as a new version whose parent is the current
// active version, moves the active pointer, and returns the new version id.
func (s *Store) SetGlobal(ctx context.Context, settings params.ParameterSet, reason string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.insertVersion(ctx, settings, reason)
	if err != nil {
		return "", err
	}
	log.Info().Str("component", "store").Str("version", v.VersionID).Str("parent", v.ParentID).Str("reason", reason).Msg("global settings committed")
	return v.VersionID, nil
}

// insertVersion commits a version and the active pointer in one transaction.
// Callers hold s.mu.
func (s *Store) insertVersion(ctx context.Context, settings params.ParameterSet, reason string) (SettingsVersion, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return SettingsVersion{}, fmt.Errorf("marshal settings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SettingsVersion{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT version_id FROM active_settings WHERE id = 1`).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return SettingsVersion{}, fmt.Errorf("get active: %w", err)
	}

	v := SettingsVersion{
		VersionID: uuid.New().String(),
		ParentID:  parent.String,
		Settings:  settings.Clone(),
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}

	var parentPtr interface{}
	if v.ParentID != "" {
		parentPtr = v.ParentID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO settings_versions (version_id, parent_id, settings_json, reason, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		v.VersionID, parentPtr, string(data), nullIfEmpty(reason), v.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return SettingsVersion{}, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_settings (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		v.VersionID,
	)
	if err != nil {
		return SettingsVersion{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return SettingsVersion{}, fmt.Errorf("commit: %w", err)
	}
	return v, nil
}

// #endregion set-global

// #region get-version

// GetVersion retrieves a specific settings version by id.
func (s *Store) GetVersion(ctx context.Context, id string) (SettingsVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT version_id, parent_id, settings_json, reason, created_at
		 FROM settings_versions WHERE version_id = ?`, id,
	)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SettingsVersion{}, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SettingsVersion{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return v, nil
}

// #endregion get-version

// #region rollback

// Rollback points the active settings at a previous version.
func (s *Store) Rollback(ctx context.Context, targetVersionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM settings_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s: %w", targetVersionID, ErrNotFound)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO active_settings (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		targetVersionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	log.Info().Str("component", "store").Str("version", targetVersionID).Msg("global settings rolled back")
	return nil
}

// #endregion rollback

// #region list-versions

// ListVersions returns the most recent settings versions, newest first. limit <= 0 means all.
func (s *Store) ListVersions(ctx context.Context, limit int) ([]SettingsVersion, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT version_id, parent_id, settings_json, reason, created_at
		 FROM settings_versions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []SettingsVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// #endregion list-versions

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(sc scanner) (SettingsVersion, error) {
	var v SettingsVersion
	var parentID, reason sql.NullString
	var data, createdStr string
	if err := sc.Scan(&v.VersionID, &parentID, &data, &reason, &createdStr); err != nil {
		return SettingsVersion{}, err
	}
	v.ParentID = parentID.String
	v.Reason = reason.String
	if err := json.Unmarshal([]byte(data), &v.Settings); err != nil {
		return SettingsVersion{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return v, nil
}
