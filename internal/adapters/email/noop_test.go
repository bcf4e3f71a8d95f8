package email

import (
	"context"
	"testing"
)

// TestNoopSender_NumbersSends verifies each send gets the next running number as its ID.
func TestNoopSender_NumbersSends(t *testing.T) {
	s := NewNoopSender()
	a, err := s.Send(context.Background(), SendRequest{To: []string{"a@example.edu"}, Subject: "one"})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.Send(context.Background(), SendRequest{To: []string{"b@example.edu"}, Subject: "two", SubmissionID: "sub-2"})
	if a.MessageID != "noop-1" || b.MessageID != "noop-2" {
		t.Errorf("message IDs = %q, %q, want noop-1, noop-2", a.MessageID, b.MessageID)
	}
}
