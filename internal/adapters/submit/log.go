package submit

import (
	"context"
	"log/slog"
	"time"
)

// LogSubmitter writes the submitted draft to the log and does nothing else.
// It stands in for a course-creation backend until one exists.
type LogSubmitter struct {
	Logger *slog.Logger // nil means slog.Default()
}

// NewLogSubmitter creates a LogSubmitter that logs through logger.
func NewLogSubmitter(logger *slog.Logger) *LogSubmitter {
	return &LogSubmitter{Logger: logger}
}

// Submit logs the full draft.
// PRE: sub.ID is non-empty
// POST: One "course_submitted" record is logged; always succeeds
func (s *LogSubmitter) Submit(ctx context.Context, sub Submission) (Result, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "course_submitted",
		"submission_id", sub.ID,
		"form_id", sub.FormID,
		"course", sub.Draft,
	)
	return Result{SubmissionID: sub.ID, AcceptedAt: time.Now()}, nil
}
