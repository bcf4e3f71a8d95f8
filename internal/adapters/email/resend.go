package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// submissionTag is the Resend tag name carrying SendRequest.SubmissionID.
const submissionTag = "submission_id"

// ResendSender delivers course notices through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender that mails from the configured course office address.
// PRE: apiKey is a valid Resend API key; from is a valid sender address
// POST: Returns a ready-to-use sender
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Send queues one notice with Resend.
// PRE: req has at least one recipient and a subject
// POST: Returns the Resend message ID; the message is tagged with the submission ID when set
func (s *ResendSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	sent, err := s.client.Emails.SendWithContext(ctx, s.buildRequest(req))
	if err != nil {
		slog.Error("resend_send_failed", "error", err, "submission_id", req.SubmissionID, "to", req.To)
		return SendResult{}, fmt.Errorf("resend send failed: %w", err)
	}

	slog.Info("resend_sent", "message_id", sent.Id, "submission_id", req.SubmissionID, "attachments", len(req.Attachments))
	return SendResult{
		MessageID: sent.Id,
		SentAt:    time.Now(),
	}, nil
}

func (s *ResendSender) buildRequest(req SendRequest) *resend.SendEmailRequest {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
	}
	if req.SubmissionID != "" {
		params.Tags = []resend.Tag{{Name: submissionTag, Value: req.SubmissionID}}
	}
	for _, a := range req.Attachments {
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     a.Content,
		})
	}
	return params
}
