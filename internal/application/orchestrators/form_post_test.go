package orchestrators

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	domain "courseform/internal/domain/course"
	"courseform/internal/domain/timeslot"
)

func fullPost(action string) FormPostCommand {
	return FormPostCommand{
		FormID: "f1",
		Fields: map[string]string{
			domain.FieldCourseName:  "Algorithms",
			domain.FieldCourseCode:  "CS301",
			domain.FieldStartDate:   "2026-09-01",
			domain.FieldEndDate:     "2026-12-20",
			domain.FieldLocation:    "Hall B",
			domain.FieldMaxStudents: "30",
		},
		Entry: map[string]string{
			timeslot.FieldDay:       timeslot.Monday,
			timeslot.FieldStartTime: "09:00",
			timeslot.FieldEndTime:   "10:30",
		},
		Action: action,
	}
}

// TestExecuteFormPost_AddSlot verifies fields are saved and the entry is appended then reset.
func TestExecuteFormPost_AddSlot(t *testing.T) {
	env := newTestEnv(t)
	res, err := ExecuteFormPost(context.Background(), fullPost(ActionAddSlot), env.deps)
	if err != nil {
		t.Fatalf("ExecuteFormPost() error = %v", err)
	}
	d := res.Form.Draft
	if d.CourseName != "Algorithms" || d.CourseCode != "CS301" || d.MaxStudents != 30 || d.Location != "Hall B" {
		t.Errorf("Draft = %+v", d)
	}
	if !reflect.DeepEqual(d.ClassTimes, []timeslot.TimeSlot{mon}) {
		t.Errorf("ClassTimes = %+v", d.ClassTimes)
	}
	if !res.Form.Entry.IsEmpty() {
		t.Errorf("Entry = %+v", res.Form.Entry)
	}
}

// TestExecuteFormPost_SaveKeepsEntry verifies a plain save does not append the entry.
func TestExecuteFormPost_SaveKeepsEntry(t *testing.T) {
	env := newTestEnv(t)
	res, err := ExecuteFormPost(context.Background(), fullPost(ActionSave), env.deps)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Form.Draft.ClassTimes) != 0 || res.Form.Entry != mon {
		t.Errorf("form = %+v", res.Form)
	}
}

// TestExecuteFormPost_AbsentFieldsUntouched verifies inputs missing from a post keep their values.
func TestExecuteFormPost_AbsentFieldsUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ExecuteFormPost(ctx, fullPost(ActionSave), env.deps)

	res, err := ExecuteFormPost(ctx, FormPostCommand{
		FormID: "f1",
		Fields: map[string]string{domain.FieldLocation: "Lab 3"},
	}, env.deps)
	if err != nil {
		t.Fatal(err)
	}
	if res.Form.Draft.Location != "Lab 3" || res.Form.Draft.CourseName != "Algorithms" || res.Form.Entry != mon {
		t.Errorf("form = %+v", res.Form)
	}
}

// TestExecuteFormPost_RemoveSlot removes by the posted index.
func TestExecuteFormPost_RemoveSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, s := range []timeslot.TimeSlot{mon, wed, fri} {
		setEntry(t, ctx, env.deps, "f1", s)
		ExecuteAppendSlot(ctx, "f1", env.deps)
	}
	res, err := ExecuteFormPost(ctx, FormPostCommand{FormID: "f1", Action: ActionRemoveSlot, RemoveIndex: 1}, env.deps)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Form.Draft.ClassTimes, []timeslot.TimeSlot{mon, fri}) {
		t.Errorf("ClassTimes = %+v", res.Form.Draft.ClassTimes)
	}
}

// TestExecuteFormPost_FileAndSubmit attaches a file and submits in one post.
func TestExecuteFormPost_FileAndSubmit(t *testing.T) {
	env := newTestEnv(t)
	cmd := fullPost(ActionSubmit)
	cmd.File = &PostedFile{Filename: "syllabus.pdf", ContentType: "application/pdf", Body: strings.NewReader("pdf")}

	res, err := ExecuteFormPost(context.Background(), cmd, env.deps)
	if err != nil {
		t.Fatalf("ExecuteFormPost() error = %v", err)
	}
	if res.SubmissionID == "" || len(env.submitter.submissions) != 1 {
		t.Fatalf("res = %+v, submissions = %d", res, len(env.submitter.submissions))
	}
	sub := env.submitter.submissions[0]
	if sub.Draft.File == nil || sub.Draft.File.Filename != "syllabus.pdf" || sub.Draft.CourseName != "Algorithms" {
		t.Errorf("submitted draft = %+v", sub.Draft)
	}
}

// TestExecuteFormPost_Cancel verifies cancel starts over from an empty draft.
func TestExecuteFormPost_Cancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ExecuteFormPost(ctx, fullPost(ActionAddSlot), env.deps)

	res, err := ExecuteFormPost(ctx, fullPost(ActionCancel), env.deps)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Discarded || !reflect.DeepEqual(res.Form.Draft, domain.Draft{}) || !res.Form.Entry.IsEmpty() {
		t.Errorf("res = %+v", res)
	}
}

// TestExecuteFormPost_Errors covers invalid input and unknown actions.
func TestExecuteFormPost_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bad := fullPost(ActionSave)
	bad.Fields[domain.FieldMaxStudents] = "many"
	if _, err := ExecuteFormPost(ctx, bad, env.deps); !errors.Is(err, domain.ErrInvalidMaxStudents) {
		t.Errorf("error = %v, want ErrInvalidMaxStudents", err)
	}
	if form, _ := env.store.Get(ctx, "f1"); form.Draft.CourseName != "" {
		t.Errorf("partial post was saved: %+v", form.Draft)
	}

	if _, err := ExecuteFormPost(ctx, fullPost("publish"), env.deps); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("error = %v, want ErrUnknownAction", err)
	}
}

// TestExecuteFormPost_RejectedPostSavesNothing verifies a rejected post leaves the saved form and the spool as they were.
// PRE: a saved draft named "Saved" and no spooled files
// POST: each rejected post returns its error, the draft is still "Saved" and no file remains spooled
func TestExecuteFormPost_RejectedPostSavesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.deps.Policy = domain.Strict{}
	ctx := context.Background()
	if _, err := ExecuteUpdateField(ctx, UpdateFieldCommand{FormID: "f1", Name: domain.FieldCourseName, Value: "Saved"}, env.deps); err != nil {
		t.Fatal(err)
	}

	inverted := fullPost(ActionSubmit)
	inverted.Fields[domain.FieldStartDate] = "2026-12-20"
	inverted.Fields[domain.FieldEndDate] = "2026-09-01"
	emptyEntry := fullPost(ActionAddSlot)
	emptyEntry.Entry = map[string]string{timeslot.FieldDay: ""}

	tests := []struct {
		name string
		cmd  FormPostCommand
		want error
	}{
		{"unknown action", fullPost("publish"), ErrUnknownAction},
		{"strict add-slot", emptyEntry, ErrSlotRejected},
		{"strict submit", inverted, ErrDraftRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cmd.File = &PostedFile{Filename: "a.pdf", ContentType: "application/pdf", Body: strings.NewReader("pdf")}
			if _, err := ExecuteFormPost(ctx, tt.cmd, env.deps); !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			form, err := env.store.Get(ctx, "f1")
			if err != nil {
				t.Fatal(err)
			}
			if form.Draft.CourseName != "Saved" || form.Draft.File != nil || len(form.Draft.ClassTimes) != 0 || !form.Entry.IsEmpty() {
				t.Errorf("stored form changed: %+v", form)
			}
			if n := env.spoolFiles(t); n != 0 {
				t.Errorf("spool files = %d, want 0", n)
			}
		})
	}
	if len(env.submitter.submissions) != 0 {
		t.Errorf("rejected submit reached the submitter: %+v", env.submitter.submissions)
	}
}

// TestExecuteFormPost_ReplaceReleasesPrevious verifies a second file replaces the first on disk too.
func TestExecuteFormPost_ReplaceReleasesPrevious(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, name := range []string{"a.pdf", "b.docx"} {
		cmd := FormPostCommand{FormID: "f1", File: &PostedFile{Filename: name, Body: strings.NewReader(name)}}
		if _, err := ExecuteFormPost(ctx, cmd, env.deps); err != nil {
			t.Fatal(err)
		}
	}
	form, _ := env.store.Get(ctx, "f1")
	if form.Draft.File == nil || form.Draft.File.Filename != "b.docx" {
		t.Errorf("File = %+v", form.Draft.File)
	}
	if n := env.spoolFiles(t); n != 1 {
		t.Errorf("spool files = %d, want 1", n)
	}
}
