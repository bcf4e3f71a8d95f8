package draft

import (
	"context"
	"errors"

	domain "courseform/internal/domain/course"
)

// ErrNotFound is returned when no form session exists for an ID.
var ErrNotFound = errors.New("form session not found")

// Store holds form sessions between requests.
type Store interface {
	Get(ctx context.Context, id string) (domain.Form, error)
	Save(ctx context.Context, form domain.Form) error
	Delete(ctx context.Context, id string) error
}
