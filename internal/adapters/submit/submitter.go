package submit

import (
	"context"
	"time"

	domain "courseform/internal/domain/course"
)

// Submission is the snapshot handed to a course-creation backend.
type Submission struct {
	ID          string
	FormID      string
	Draft       domain.Draft
	SubmittedAt time.Time
}

// Result is the backend's acknowledgement.
type Result struct {
	SubmissionID string
	AcceptedAt   time.Time
}

// Submitter is the extension point for a real course-creation service.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (Result, error)
}
