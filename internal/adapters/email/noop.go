package email

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// NoopSender logs sends but does not deliver emails.
type NoopSender struct {
	sent atomic.Int64
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// Send logs the email but does not deliver it.
// PRE: req is a valid SendRequest
// POST: Returns a noop result numbered by the running send count
func (s *NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	n := s.sent.Add(1)
	slog.Info("noop_email_send",
		"sent", n,
		"submission_id", req.SubmissionID,
		"to", req.To,
		"subject", req.Subject,
		"attachments", len(req.Attachments),
	)
	return SendResult{
		MessageID: fmt.Sprintf("noop-%d", n),
		SentAt:    time.Now(),
	}, nil
}
