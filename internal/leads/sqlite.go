package leads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore provides a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if necessary initializes) a SQLite-backed lead
// store at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("leads: sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("leads: open sqlite: %w", err)
	}

	// Updates for a lead must not interleave; a single connection
	// serializes all writes through SQLite's own locking.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("leads: init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	phone TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	call_scheduled BOOLEAN NOT NULL DEFAULT FALSE,
	call_completed BOOLEAN NOT NULL DEFAULT FALSE,
	interested BOOLEAN NOT NULL DEFAULT FALSE,
	transcript TEXT NOT NULL DEFAULT ''
);`

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, name, email, phone string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO leads (name, email, phone, created_at) VALUES (?, ?, ?, ?)",
		name, email, phone, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("leads: insert: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("leads: last insert id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Lead, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, created_at, call_scheduled, call_completed, interested, transcript FROM leads WHERE id = ?",
		id,
	)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leads: get: %w", err)
	}
	return lead, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id int64, update Update) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)

	if update.CallScheduled != nil {
		sets = append(sets, "call_scheduled = ?")
		args = append(args, *update.CallScheduled)
	}
	if update.CallCompleted != nil {
		sets = append(sets, "call_completed = ?")
		args = append(args, *update.CallCompleted)
	}
	if update.Interested != nil {
		sets = append(sets, "interested = ?")
		args = append(args, *update.Interested)
	}
	if update.Transcript != nil {
		sets = append(sets, "transcript = ?")
		args = append(args, *update.Transcript)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	result, err := s.db.ExecContext(ctx,
		"UPDATE leads SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("leads: update: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("leads: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, phone, created_at, call_scheduled, call_completed, interested, transcript FROM leads ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("leads: list: %w", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan: %w", err)
		}
		out = append(out, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: list rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.CreatedAt,
		&lead.CallScheduled, &lead.CallCompleted, &lead.Interested, &lead.Transcript,
	)
	if err != nil {
		return nil, err
	}
	return &lead, nil
}
