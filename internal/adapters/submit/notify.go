package submit

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"

	"courseform/internal/adapters/email"
)

var noticeTmpl = template.Must(template.New("notice").Parse(`<h2>{{.CourseName}} ({{.CourseCode}})</h2>
<p>{{.StartDate}} – {{.EndDate}} · {{.Location}} · max {{.MaxStudents}}</p>
<ul>{{range .ClassTimes}}<li>{{.Label}}</li>{{end}}</ul>
{{with .File}}<p>Attachment: {{.Filename}}</p>{{end}}`))

// FileOpener reads the bytes behind an attachment handle.
type FileOpener interface {
	Open(id string) (io.ReadCloser, error)
}

// NotifySubmitter forwards to Next and then emails a summary of the accepted course.
// A failed notice is logged and never fails the submission.
type NotifySubmitter struct {
	Next   Submitter
	Sender email.Sender
	To     []string
	Files  FileOpener // Optional; when set the draft's file is attached to the notice
}

// Submit forwards sub to Next and sends the notice on success.
// PRE: Next and Sender are non-nil
// POST: Returns Next's result; a notice is attempted only when Next accepted and To is non-empty
func (s *NotifySubmitter) Submit(ctx context.Context, sub Submission) (Result, error) {
	res, err := s.Next.Submit(ctx, sub)
	if err != nil || len(s.To) == 0 {
		return res, err
	}

	var body bytes.Buffer
	if err := noticeTmpl.Execute(&body, sub.Draft); err != nil {
		slog.ErrorContext(ctx, "submission_notice_render_failed", "submission_id", res.SubmissionID, "error", err.Error())
		return res, nil
	}
	_, err = s.Sender.Send(ctx, email.SendRequest{
		To:           s.To,
		Subject:      fmt.Sprintf("Course submitted: %s", noticeSubject(sub)),
		HTML:         body.String(),
		SubmissionID: res.SubmissionID,
		Attachments:  s.attachments(ctx, sub),
	})
	if err != nil {
		slog.WarnContext(ctx, "submission_notice_failed", "submission_id", res.SubmissionID, "error", err.Error())
	}
	return res, nil
}

// attachments reads the draft's file; a missing file sends the notice without it.
func (s *NotifySubmitter) attachments(ctx context.Context, sub Submission) []email.Attachment {
	f := sub.Draft.File
	if f == nil || s.Files == nil {
		return nil
	}
	rc, err := s.Files.Open(f.ID)
	if err != nil {
		slog.WarnContext(ctx, "submission_notice_attachment_failed", "submission_id", sub.ID, "attachment_id", f.ID, "error", err.Error())
		return nil
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		slog.WarnContext(ctx, "submission_notice_attachment_failed", "submission_id", sub.ID, "attachment_id", f.ID, "error", err.Error())
		return nil
	}
	return []email.Attachment{{Filename: f.Filename, ContentType: f.ContentType, Content: content}}
}

func noticeSubject(sub Submission) string {
	switch {
	case sub.Draft.CourseName != "" && sub.Draft.CourseCode != "":
		return sub.Draft.CourseName + " (" + sub.Draft.CourseCode + ")"
	case sub.Draft.CourseName != "":
		return sub.Draft.CourseName
	default:
		return "untitled " + sub.ID
	}
}
