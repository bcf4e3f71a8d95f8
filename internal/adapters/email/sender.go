package email

import (
	"context"
	"time"
)

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To           []string
	Subject      string
	HTML         string
	SubmissionID string // Tags the message so delivery events can be matched to the ledger
	Attachments  []Attachment
}

// Attachment is a file carried inline in the message.
type Attachment struct {
	Filename    string
	ContentType string // Empty lets the provider derive it from Filename
	Content     []byte
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string    // Provider's message ID for tracking
	SentAt    time.Time // When the send was accepted
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}
