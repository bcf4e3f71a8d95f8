package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	storage "courseform/internal/adapters/storage"
)

// timeLayout has fixed-width fractions so submitted_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type sqliteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore returns a Store backed by SQLite.
func NewSQLiteStore(db storage.SQLDB) Store {
	return &sqliteStore{db: db}
}

// Save persists a Record.
// PRE: r.ID is non-empty and unique
// POST: row inserted into course_submission with the draft as JSON
func (s *sqliteStore) Save(ctx context.Context, r Record) error {
	payload, err := json.Marshal(r.Draft)
	if err != nil {
		return fmt.Errorf("submission encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO course_submission (
			id, form_id, course_name, course_code, slot_count, draft_json, submitted_at
		) VALUES (?,?,?,?,?,?,?)`,
		r.ID,
		r.FormID,
		r.Draft.CourseName,
		r.Draft.CourseCode,
		len(r.Draft.ClassTimes),
		string(payload),
		r.SubmittedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("submission save: %w", err)
	}
	return nil
}

// GetByID retrieves a Record by its ID.
// PRE: id is non-empty
// POST: returns the record or ErrNotFound
func (s *sqliteStore) GetByID(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, form_id, draft_json, submitted_at
		FROM course_submission WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

// ListRecent returns up to limit records, newest first.
// PRE: limit > 0
func (s *sqliteStore) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, form_id, draft_json, submitted_at
		FROM course_submission ORDER BY submitted_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("submission list: %w", err)
	}
	defer rows.Close()

	var list []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var payload, submittedAt string
	if err := row.Scan(&r.ID, &r.FormID, &payload, &submittedAt); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(payload), &r.Draft); err != nil {
		return Record{}, fmt.Errorf("submission decode %s: %w", r.ID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, submittedAt)
	if err != nil {
		return Record{}, fmt.Errorf("submission time %s: %w", r.ID, err)
	}
	r.SubmittedAt = t
	return r, nil
}
