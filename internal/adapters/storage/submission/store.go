package submission

import (
	"context"
	"errors"
	"time"

	domain "courseform/internal/domain/course"
)

// ErrNotFound is returned when no submission has the requested ID.
var ErrNotFound = errors.New("submission not found")

// Record is one accepted course submission.
type Record struct {
	ID          string       `json:"id"`
	FormID      string       `json:"formID"`
	Draft       domain.Draft `json:"draft"`
	SubmittedAt time.Time    `json:"submittedAt"`
}

// Store persists submitted course snapshots.
type Store interface {
	Save(ctx context.Context, r Record) error
	GetByID(ctx context.Context, id string) (Record, error)
	// ListRecent returns up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}
