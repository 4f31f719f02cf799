package modlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// SQLite is the default Sink, backed by a single SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Sink = (*SQLite)(nil)

// NewSQLite opens (or creates) the modlog database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("modlog: open db: %w", err)
	}

	ctx := context.Background()

	// WAL keeps searches cheap while the server appends.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("modlog: set WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("modlog: set busy_timeout: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS modlog (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		room       TEXT    NOT NULL,
		line       TEXT    NOT NULL,
		created_at TEXT    NOT NULL DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_modlog_room ON modlog(room, id);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("modlog: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Append records one moderation line.
func (s *SQLite) Append(room, line string) error {
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO modlog (room, line, created_at) VALUES (?, ?, ?)",
		room, line, time.Now().UTC().Format(dbTimeLayout))
	if err != nil {
		return fmt.Errorf("modlog: append: %w", err)
	}
	return nil
}

// Search returns up to limit entries for room, most recent first.
func (s *SQLite) Search(room, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, room, line, created_at FROM modlog WHERE room = ? AND line LIKE ? ESCAPE '\' ORDER BY id DESC LIMIT ?`,
		room, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("modlog: search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Room, &e.Line, &createdAt); err != nil {
			return nil, fmt.Errorf("modlog: scan: %w", err)
		}
		e.At, err = time.ParseInLocation(dbTimeLayout, createdAt, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("modlog: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}
