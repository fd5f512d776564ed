package store

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

	"github.com/flaggdavid-source/lifeboat/internal/profile"
)

const sqliteSchema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS profiles (
    id       TEXT PRIMARY KEY,
    name     TEXT NOT NULL,
    saved_at TEXT NOT NULL,
    profile  TEXT NOT NULL
);
`

// SQLiteStore is the default embedded profile store.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, id string, p *profile.CompanionProfile) (string, error) {
	id = ValidateID(id)
	blob, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, name, saved_at, profile) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, saved_at = excluded.saved_at, profile = excluded.profile`,
		id, recordName(p), time.Now().UTC().Format(time.RFC3339), string(blob),
	)
	if err != nil {
		return "", fmt.Errorf("insert profile: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, saved_at, profile FROM profiles WHERE id = ?`, id)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, saved_at, profile FROM profiles ORDER BY saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanRecord decodes one profiles row via the given Scan function, shared
// by both SQL engines.
func scanRecord(scanFn func(dest ...any) error) (*Record, error) {
	var rec Record
	var savedAt, blob string
	if err := scanFn(&rec.ID, &rec.Name, &savedAt, &blob); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339, savedAt)
	if err != nil {
		return nil, fmt.Errorf("parse saved_at: %w", err)
	}
	rec.SavedAt = ts

	var p profile.CompanionProfile
	if err := json.Unmarshal([]byte(blob), &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	rec.Profile = &p
	return &rec, nil
}
