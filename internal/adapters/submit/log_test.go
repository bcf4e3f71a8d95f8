package submit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"courseform/internal/adapters/submit"
	domain "courseform/internal/domain/course"
	"courseform/internal/domain/timeslot"
)

// TestLogSubmitter_LogsFullDraft verifies every draft field reaches the log record.
// PRE: JSON log handler writing to a buffer.
// POST: one course_submitted record with the nested course group.
func TestLogSubmitter_LogsFullDraft(t *testing.T) {
	var buf bytes.Buffer
	s := submit.NewLogSubmitter(slog.New(slog.NewJSONHandler(&buf, nil)))

	draft := domain.Draft{
		CourseName:  "Algorithms",
		CourseCode:  "CS301",
		StartDate:   "2026-09-01",
		EndDate:     "2026-12-20",
		ClassTimes:  []timeslot.TimeSlot{{Day: timeslot.Monday, StartTime: "09:00", EndTime: "10:30"}},
		Location:    "Hall B",
		MaxStudents: 30,
		File:        &domain.Attachment{ID: "x", Filename: "outline.pdf"},
	}
	res, err := s.Submit(context.Background(), submit.Submission{ID: "sub-1", FormID: "form-1", Draft: draft, SubmittedAt: time.Now()})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.SubmissionID != "sub-1" {
		t.Errorf("SubmissionID = %q", res.SubmissionID)
	}

	var rec struct {
		Msg          string `json:"msg"`
		SubmissionID string `json:"submission_id"`
		FormID       string `json:"form_id"`
		Course       struct {
			CourseName  string   `json:"courseName"`
			CourseCode  string   `json:"courseCode"`
			ClassTimes  []string `json:"classTimes"`
			MaxStudents int      `json:"maxStudents"`
			File        string   `json:"file"`
		} `json:"course"`
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log is not JSON: %v (%s)", err, buf.String())
	}
	if rec.Msg != "course_submitted" || rec.SubmissionID != "sub-1" || rec.FormID != "form-1" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Course.CourseName != "Algorithms" || rec.Course.CourseCode != "CS301" || rec.Course.MaxStudents != 30 {
		t.Errorf("course = %+v", rec.Course)
	}
	if len(rec.Course.ClassTimes) != 1 || rec.Course.ClassTimes[0] != "Monday 09:00 - 10:30" {
		t.Errorf("classTimes = %v", rec.Course.ClassTimes)
	}
	if rec.Course.File != "outline.pdf" {
		t.Errorf("file = %q", rec.Course.File)
	}
}
