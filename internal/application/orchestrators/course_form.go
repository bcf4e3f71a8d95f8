package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"courseform/internal/adapters/attachment"
	draftStore "courseform/internal/adapters/storage/draft"
	"courseform/internal/adapters/submit"
	domain "courseform/internal/domain/course"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// CourseFormDeps are the external dependencies shared by the course form orchestrators.
type CourseFormDeps struct {
	DraftStore draftStore.Store
	Spool      attachment.Spool
	Submitter  submit.Submitter
	Policy     domain.Policy // nil behaves like domain.Permissive
}

// formLocks serialises events for the same form session inside this process,
// so each event sees the state left by the previous one.
var formLocks [64]sync.Mutex

func lockForm(id string) func() {
	h := fnv.New32a()
	h.Write([]byte(id))
	mu := &formLocks[h.Sum32()%uint32(len(formLocks))]
	mu.Lock()
	return mu.Unlock
}

// load returns the stored form session, or a fresh empty one if none exists.
func load(ctx context.Context, id string, deps CourseFormDeps) (domain.Form, error) {
	form, err := deps.DraftStore.Get(ctx, id)
	if errors.Is(err, draftStore.ErrNotFound) {
		return domain.NewForm(id, timeNow()), nil
	}
	if err != nil {
		return domain.Form{}, fmt.Errorf("load form session: %w", err)
	}
	return form, nil
}

// mutate applies fn to the form session under its lock and saves the result.
// Nothing is saved when fn fails.
func mutate(ctx context.Context, id string, deps CourseFormDeps, fn func(*domain.Form) error) (domain.Form, error) {
	if id == "" {
		return domain.Form{}, fmt.Errorf("form session id is required")
	}
	unlock := lockForm(id)
	defer unlock()

	form, err := load(ctx, id, deps)
	if err != nil {
		return domain.Form{}, err
	}
	if err := fn(&form); err != nil {
		return form, err
	}
	form.UpdatedAt = timeNow()
	if err := deps.DraftStore.Save(ctx, form); err != nil {
		return domain.Form{}, fmt.Errorf("save form session: %w", err)
	}
	if form.Draft.File != nil && deps.Spool != nil {
		if err := deps.Spool.Touch(form.Draft.File.ID); err != nil {
			slog.Warn("course_attachment_touch_failed", "form_id", id, "attachment_id", form.Draft.File.ID, "error", err.Error())
		}
	}
	return form, nil
}

// ExecuteOpenForm returns the form session for id, creating an empty one on first use.
// PRE: id is non-empty
// POST: A form session for id exists in the store
func ExecuteOpenForm(ctx context.Context, id string, deps CourseFormDeps) (domain.Form, error) {
	return mutate(ctx, id, deps, func(*domain.Form) error { return nil })
}

// UpdateFieldCommand replaces one scalar field of the draft.
type UpdateFieldCommand struct {
	FormID string
	Name   string
	Value  string
}

// ExecuteUpdateField applies a single field change.
// PRE: cmd.Name is one of domain.FieldNames
// POST: Only the named field differs from the previous draft
func ExecuteUpdateField(ctx context.Context, cmd UpdateFieldCommand, deps CourseFormDeps) (domain.Form, error) {
	return mutate(ctx, cmd.FormID, deps, func(f *domain.Form) error {
		d, err := domain.WithField(f.Draft, cmd.Name, cmd.Value)
		if err != nil {
			return err
		}
		f.Draft = d
		return nil
	})
}

// UpdateEntryCommand replaces one field of the slot entry being composed.
type UpdateEntryCommand struct {
	FormID string
	Name   string
	Value  string
}

// ExecuteUpdateEntry applies a single entry field change.
// PRE: cmd.Name is one of timeslot.FieldNames
// POST: Only the named entry field differs; the draft is untouched
func ExecuteUpdateEntry(ctx context.Context, cmd UpdateEntryCommand, deps CourseFormDeps) (domain.Form, error) {
	return mutate(ctx, cmd.FormID, deps, func(f *domain.Form) error {
		e, err := f.Entry.With(cmd.Name, cmd.Value)
		if err != nil {
			return err
		}
		f.Entry = e
		return nil
	})
}

// ExecuteAppendSlot appends the current entry to the draft's class times and resets the entry.
// PRE: none; an empty entry is appended unless the policy rejects it
// POST: On success ClassTimes grew by one and Entry is empty
func ExecuteAppendSlot(ctx context.Context, formID string, deps CourseFormDeps) (domain.Form, error) {
	return mutate(ctx, formID, deps, func(f *domain.Form) error {
		return appendSlot(f, deps.Policy)
	})
}

func appendSlot(f *domain.Form, policy domain.Policy) error {
	d, e, err := domain.AppendSlot(f.Draft, f.Entry, policy)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSlotRejected, err)
	}
	f.Draft, f.Entry = d, e
	return nil
}

// ErrSlotRejected wraps policy rejections of an entry.
var ErrSlotRejected = errors.New("time slot rejected")

// RemoveSlotCommand removes the class time at Index.
type RemoveSlotCommand struct {
	FormID string
	Index  int
}

// ExecuteRemoveSlot removes one class time by its current position.
// PRE: none; an out-of-range index removes nothing
// POST: ClassTimes excludes the element at Index, order preserved
func ExecuteRemoveSlot(ctx context.Context, cmd RemoveSlotCommand, deps CourseFormDeps) (domain.Form, error) {
	return mutate(ctx, cmd.FormID, deps, func(f *domain.Form) error {
		f.Draft = domain.RemoveSlot(f.Draft, cmd.Index)
		return nil
	})
}

// AttachFileCommand carries the file chosen in the attachment input.
type AttachFileCommand struct {
	FormID      string
	Filename    string
	ContentType string
	Body        io.Reader
}

// ExecuteAttachFile spools the chosen file and makes it the draft's only attachment.
// The previously attached file, if any, is released.
// PRE: cmd.Body is readable
// POST: Draft.File refers to the new file
func ExecuteAttachFile(ctx context.Context, cmd AttachFileCommand, deps CourseFormDeps) (domain.Form, error) {
	att, err := deps.Spool.Put(ctx, cmd.Filename, cmd.ContentType, cmd.Body)
	if err != nil {
		return domain.Form{}, fmt.Errorf("spool attachment: %w", err)
	}
	var previous *domain.Attachment
	form, err := mutate(ctx, cmd.FormID, deps, func(f *domain.Form) error {
		previous = f.Draft.File
		f.Draft = domain.WithFile(f.Draft, &att)
		return nil
	})
	if err != nil {
		releaseAttachment(deps.Spool, att.ID)
		return domain.Form{}, err
	}
	if previous != nil {
		releaseAttachment(deps.Spool, previous.ID)
	}
	slog.Info("course_attachment_selected", "form_id", cmd.FormID, "filename", att.Filename, "size", att.Size)
	return form, nil
}

func releaseAttachment(spool attachment.Spool, id string) {
	if err := spool.Release(id); err != nil {
		slog.Warn("course_attachment_release_failed", "attachment_id", id, "error", err.Error())
	}
}

// SubmitCourseResult holds the outcome of a submission.
type SubmitCourseResult struct {
	SubmissionID string
	Form         domain.Form
}

// ErrDraftRejected wraps policy rejections of a whole draft.
var ErrDraftRejected = errors.New("course draft rejected")

// ExecuteSubmitCourse hands a snapshot of the draft to the submitter.
// The draft is left as it was; submitting twice submits twice.
// PRE: formID is non-empty
// POST: Submitter received the complete draft
func ExecuteSubmitCourse(ctx context.Context, formID string, deps CourseFormDeps) (SubmitCourseResult, error) {
	form, err := ExecuteOpenForm(ctx, formID, deps)
	if err != nil {
		return SubmitCourseResult{}, err
	}
	if err := checkDraft(form.Draft, deps.Policy); err != nil {
		return SubmitCourseResult{Form: form}, err
	}
	return submitForm(ctx, form, deps)
}

func checkDraft(d domain.Draft, policy domain.Policy) error {
	if policy == nil {
		return nil
	}
	if err := policy.CheckDraft(d); err != nil {
		return fmt.Errorf("%w: %w", ErrDraftRejected, err)
	}
	return nil
}

// submitForm hands an already checked snapshot to the submitter.
func submitForm(ctx context.Context, form domain.Form, deps CourseFormDeps) (SubmitCourseResult, error) {
	sub := submit.Submission{
		ID:          uuid.New().String(),
		FormID:      form.ID,
		Draft:       form.Draft,
		SubmittedAt: timeNow().UTC(),
	}
	res, err := deps.Submitter.Submit(ctx, sub)
	if err != nil {
		slog.Error("course_submit_failed", "form_id", form.ID, "error", err.Error())
		return SubmitCourseResult{Form: form}, fmt.Errorf("submit course: %w", err)
	}
	return SubmitCourseResult{SubmissionID: res.SubmissionID, Form: form}, nil
}

// ExecuteDiscardForm ends the form session and releases its attachment.
// PRE: formID is non-empty
// POST: The next event for formID starts from an empty draft
func ExecuteDiscardForm(ctx context.Context, formID string, deps CourseFormDeps) error {
	unlock := lockForm(formID)
	defer unlock()

	form, err := deps.DraftStore.Get(ctx, formID)
	if errors.Is(err, draftStore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load form session: %w", err)
	}
	if err := deps.DraftStore.Delete(ctx, formID); err != nil {
		return fmt.Errorf("delete form session: %w", err)
	}
	if form.Draft.File != nil {
		releaseAttachment(deps.Spool, form.Draft.File.ID)
	}
	slog.Info("course_form_discarded", "form_id", formID)
	return nil
}

// ExecuteExpireForm releases what an expired form session still holds.
// The store has already dropped the session.
// POST: The session's attachment, if any, is released
func ExecuteExpireForm(form domain.Form, deps CourseFormDeps) {
	if form.Draft.File != nil {
		releaseAttachment(deps.Spool, form.Draft.File.ID)
	}
	slog.Info("course_form_expired", "form_id", form.ID)
}
