// Package localstore is the on-device mirror of the journal: dream JSON
// blobs and string preferences in a single SQLite file.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"dreamdecode/pkg/domain"
)

// Fixed-width timestamps keep lexical and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Well-known preference keys.
const (
	PrefVoiceLanguage       = "voice_language"
	PrefInterpretationStyle = "interpretation_style"
	PrefReminderTime        = "reminder_time"
	PrefTheme               = "theme"
)

// ErrNoPreference is returned when a preference key was never saved.
var ErrNoPreference = errors.New("preference not set")

// Store persists dreams and preferences in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps WAL and busy handling predictable.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveDream inserts or replaces the full local shape of d, art_style included.
func (s *Store) SaveDream(ctx context.Context, d domain.Dream) error {
	blob, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dream: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dreams (id, user_id, json, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, json = excluded.json, created_at = excluded.created_at`,
		d.ID, d.UserID, string(blob), d.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save dream %s: %w", d.ID, err)
	}
	return nil
}

// LoadDreams returns userID's dreams, newest first. Rows that fail to decode
// are skipped and counted in the returned skipped value.
func (s *Store) LoadDreams(ctx context.Context, userID string) (dreams []domain.Dream, skipped int, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json FROM dreams WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("query dreams: %w", err)
	}
	defer rows.Close()

	dreams = []domain.Dream{}
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, 0, fmt.Errorf("scan dream: %w", err)
		}
		var d domain.Dream
		if err := json.Unmarshal([]byte(blob), &d); err != nil {
			skipped++
			continue
		}
		dreams = append(dreams, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate dreams: %w", err)
	}
	return dreams, skipped, nil
}

// DeleteDream removes one dream. Missing rows are not an error.
func (s *Store) DeleteDream(ctx context.Context, userID, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM dreams WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return fmt.Errorf("delete dream %s: %w", id, err)
	}
	return nil
}

// CountDreams reports how many dreams userID has locally.
func (s *Store) CountDreams(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM dreams WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// Users lists every user id with local data.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM dreams UNION SELECT user_id FROM preferences ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SavePreference stores a string value under key for userID.
func (s *Store) SavePreference(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save preference %s: %w", key, err)
	}
	return nil
}

// LoadPreference returns the value under key, or ErrNoPreference.
func (s *Store) LoadPreference(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoPreference
	}
	if err != nil {
		return "", fmt.Errorf("load preference %s: %w", key, err)
	}
	return value, nil
}

// LoadAllPreferences returns every preference of userID.
func (s *Store) LoadAllPreferences(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM preferences WHERE user_id = ? ORDER BY key`, userID)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// DeletePreference removes key for userID.
func (s *Store) DeletePreference(ctx context.Context, userID, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = ? AND key = ?`, userID, key)
	return err
}
