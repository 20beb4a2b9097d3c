package registry

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

	"github.com/podushkina/schedmon/internal/task"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLite persists records in a local database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA journal_mode = WAL;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Insert(ctx context.Context, rec task.Record) error {
	return upsert(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, rec task.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO tasks (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		rec.ID, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

func (s *SQLite) Update(ctx context.Context, rec task.Record) (task.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return task.Record{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx, `SELECT data FROM tasks WHERE id = ?`, rec.ID).Scan(&data)
	switch {
	case err == nil:
		var prev task.Record
		if err := json.Unmarshal([]byte(data), &prev); err != nil {
			return task.Record{}, fmt.Errorf("unmarshal task: %w", err)
		}
		rec = prev.Merge(rec)
	case errors.Is(err, sql.ErrNoRows):
	default:
		return task.Record{}, fmt.Errorf("get task: %w", err)
	}

	if err := upsert(ctx, tx, rec); err != nil {
		return task.Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return task.Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (task.Record, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM tasks WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Record{}, false, nil
	}
	if err != nil {
		return task.Record{}, false, fmt.Errorf("get task: %w", err)
	}

	var rec task.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return task.Record{}, false, fmt.Errorf("unmarshal task: %w", err)
	}
	return rec, true, nil
}

func (s *SQLite) List(ctx context.Context, opts task.SortOptions) ([]task.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM tasks`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	records := []task.Record{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		var rec task.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return sorted(records, opts), nil
}

func (s *SQLite) ReplaceAll(ctx context.Context, records []task.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	for _, rec := range records {
		if err := upsert(ctx, tx, rec); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	return s.ReplaceAll(ctx, nil)
}

func (s *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}
