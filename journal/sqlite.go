package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, filename string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filename))
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			kind TEXT NOT NULL,
			record JSON NOT NULL CHECK (json_valid(record))
		);
	`)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("error initializing sqlite table: %w", err),
			db.Close(),
		)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores r and returns it with its new id.
func (s *Store) Save(ctx context.Context, r Record) (Record, error) {
	b, err := Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("error marshaling record: %w", err)
	}

	ts := r.Time()
	if ts.IsZero() {
		ts = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records(ts, kind, record) VALUES (?, ?, ?)`,
		ts.UTC(), r.Kind(), string(b))
	if err != nil {
		return nil, fmt.Errorf("error saving record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("error reading last insert id: %w", err)
	}

	return r.WithID(id), nil
}

// Recent returns the newest n records, oldest first.
func (s *Store) Recent(ctx context.Context, n int) (recs []Record, err error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, record
FROM records
ORDER BY id DESC
LIMIT ?
`, n)
	if err != nil {
		return nil, fmt.Errorf("records query error: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("rows close error: %w", closeErr))
		}
	}()

	recs = make([]Record, 0, n)
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("rows scan error: %w", err)
		}

		r, err := Unmarshal([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("record %d: json decoding error: %w", id, err)
		}
		recs = append(recs, r.WithID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows unexpected error: %w", err)
	}

	slices.Reverse(recs)
	return recs, nil
}
