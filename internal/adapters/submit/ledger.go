package submit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"courseform/internal/adapters/storage/submission"
)

// LedgerSubmitter records each submission in a submission.Store.
// It is a local stand-in for a course-creation backend.
type LedgerSubmitter struct {
	Store submission.Store
	Now   func() time.Time // nil means time.Now
}

// NewLedgerSubmitter creates a LedgerSubmitter writing to store.
func NewLedgerSubmitter(store submission.Store) *LedgerSubmitter {
	return &LedgerSubmitter{Store: store}
}

// Submit saves the draft snapshot.
// PRE: sub.ID is non-empty and unused
// POST: One record with the full draft is stored; AcceptedAt is the store time
func (s *LedgerSubmitter) Submit(ctx context.Context, sub Submission) (Result, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	accepted := now()
	err := s.Store.Save(ctx, submission.Record{
		ID:          sub.ID,
		FormID:      sub.FormID,
		Draft:       sub.Draft,
		SubmittedAt: sub.SubmittedAt,
	})
	if err != nil {
		return Result{}, fmt.Errorf("ledger submit: %w", err)
	}
	slog.InfoContext(ctx, "course_recorded", "submission_id", sub.ID, "form_id", sub.FormID)
	return Result{SubmissionID: sub.ID, AcceptedAt: accepted}, nil
}
