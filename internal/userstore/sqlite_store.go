package userstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore persists users, their settings and quota, and the request
// history in a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// EnsureUser returns the user row, creating it with default settings and
// the default quota on first contact.
func (s *SQLiteStore) EnsureUser(ctx context.Context, id, username, name string) (*User, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, name, available_minutes)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET username = excluded.username, name = excluded.name`,
		id, username, name, DefaultAvailableMinutes,
	); err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", id, err)
	}
	return s.GetUser(ctx, id)
}

// GetUser returns the user row, or nil when the user is unknown.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	var borderBox, transcribeOnly, displayMode int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, name, joined_at, ui_language, font, font_size, border_box,
		        default_language, default_resolution, transcribe_only, display_mode, available_minutes
		 FROM users WHERE id = ?`, id,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Name,
		&u.JoinedAt,
		&u.UILanguage,
		&u.Settings.Font,
		&u.Settings.FontSize,
		&borderBox,
		&u.Settings.Language,
		&u.Settings.Resolution,
		&transcribeOnly,
		&displayMode,
		&u.AvailableMinutes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	u.Settings.BorderBox = borderBox != 0
	u.Settings.TranscribeOnly = transcribeOnly != 0
	u.Settings.DisplayMode = displayMode != 0
	return &u, nil
}

// UpdateSettings replaces the user's preferences.
func (s *SQLiteStore) UpdateSettings(ctx context.Context, id string, settings Settings) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET font = ?, font_size = ?, border_box = ?, default_language = ?,
		        default_resolution = ?, transcribe_only = ?, display_mode = ?
		 WHERE id = ?`,
		settings.Font, settings.FontSize, boolToInt(settings.BorderBox),
		settings.Language, settings.Resolution,
		boolToInt(settings.TranscribeOnly), boolToInt(settings.DisplayMode),
		id,
	)
	if err != nil {
		return fmt.Errorf("update settings for %s: %w", id, err)
	}
	return requireRowChanged(result, id)
}

// SetUILanguage stores the language the user wants messages in.
func (s *SQLiteStore) SetUILanguage(ctx context.Context, id, lang string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET ui_language = ? WHERE id = ?`, lang, id)
	if err != nil {
		return fmt.Errorf("set ui language for %s: %w", id, err)
	}
	return requireRowChanged(result, id)
}

// AvailableMinutes reads the user's remaining quota.
func (s *SQLiteStore) AvailableMinutes(ctx context.Context, id string) (int, error) {
	var minutes int
	err := s.db.QueryRowContext(ctx, `SELECT available_minutes FROM users WHERE id = ?`, id).Scan(&minutes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("unknown user %s", id)
	}
	if err != nil {
		return 0, fmt.Errorf("read quota for %s: %w", id, err)
	}
	return minutes, nil
}

// DebitMinutes subtracts a finished job's duration from the user's quota
// in a single authoritative update. Only one job per user runs at a
// time, so no optimistic concurrency is needed.
func (s *SQLiteStore) DebitMinutes(ctx context.Context, id string, minutes int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET available_minutes = available_minutes - ? WHERE id = ?`, minutes, id)
	if err != nil {
		return fmt.Errorf("debit %d minutes from %s: %w", minutes, id, err)
	}
	return requireRowChanged(result, id)
}

// CreditMinutes adds purchased minutes to the user's quota.
func (s *SQLiteStore) CreditMinutes(ctx context.Context, id string, minutes int) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET available_minutes = available_minutes + ? WHERE id = ?`, minutes, id)
	if err != nil {
		return fmt.Errorf("credit %d minutes to %s: %w", minutes, id, err)
	}
	return requireRowChanged(result, id)
}

// RecordRequest appends one row to the request history.
func (s *SQLiteStore) RecordRequest(ctx context.Context, record RequestRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (user_id, username, name, link, sent_at, duration_min, resolution, language, transcription)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.UserID, record.Username, record.Name, record.Link, record.SentAt.UTC(),
		record.DurationMinutes, record.Resolution, record.Language, boolToInt(record.Transcription),
	)
	if err != nil {
		return fmt.Errorf("record request for %s: %w", record.UserID, err)
	}
	return nil
}

// RecentRequests lists the user's latest history rows, newest first.
func (s *SQLiteStore) RecentRequests(ctx context.Context, userID string, limit int) ([]RequestRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, name, link, sent_at, duration_min, resolution, language, transcription
		 FROM requests WHERE user_id = ? ORDER BY sent_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list requests for %s: %w", userID, err)
	}
	defer rows.Close()

	ret := make([]RequestRecord, 0)
	for rows.Next() {
		var record RequestRecord
		var transcription int
		if err := rows.Scan(
			&record.UserID,
			&record.Username,
			&record.Name,
			&record.Link,
			&record.SentAt,
			&record.DurationMinutes,
			&record.Resolution,
			&record.Language,
			&transcription,
		); err != nil {
			return nil, err
		}
		record.Transcription = transcription != 0
		ret = append(ret, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// UserIDs lists every known user id.
func (s *SQLiteStore) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRowChanged(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("unknown user %s", id)
	}
	return nil
}
