package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	domain "courseform/internal/domain/course"
	"courseform/internal/domain/timeslot"
)

// Actions a browser form post can carry.
const (
	ActionSave       = ""
	ActionAddSlot    = "add-slot"
	ActionRemoveSlot = "remove-slot"
	ActionSubmit     = "submit"
	ActionCancel     = "cancel"
)

// ErrUnknownAction is returned for an action value no button carries.
var ErrUnknownAction = errors.New("unknown form action")

// PostedFile is the file from the attachment input, if one was chosen.
type PostedFile struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// FormPostCommand is one full post of the course form.
// Fields and Entry hold only the inputs present in the post.
type FormPostCommand struct {
	FormID      string
	Fields      map[string]string
	Entry       map[string]string
	File        *PostedFile
	Action      string
	RemoveIndex int
}

// FormPostResult reports what the post did.
type FormPostResult struct {
	Form         domain.Form
	SubmissionID string
	Discarded    bool
}

// ExecuteFormPost applies a browser post as one event: field edits, entry edits,
// file selection and the action are saved together or not at all.
// PRE: cmd.FormID is non-empty
// POST: On error the stored form session is unchanged and no new file stays spooled
func ExecuteFormPost(ctx context.Context, cmd FormPostCommand, deps CourseFormDeps) (FormPostResult, error) {
	switch cmd.Action {
	case ActionSave, ActionAddSlot, ActionRemoveSlot, ActionSubmit:
	case ActionCancel:
		if err := ExecuteDiscardForm(ctx, cmd.FormID, deps); err != nil {
			return FormPostResult{}, err
		}
		form, err := ExecuteOpenForm(ctx, cmd.FormID, deps)
		return FormPostResult{Form: form, Discarded: true}, err
	default:
		slog.Warn("course_form_unknown_action", "form_id", cmd.FormID, "action", cmd.Action)
		return FormPostResult{}, fmt.Errorf("%w %q", ErrUnknownAction, cmd.Action)
	}

	var att *domain.Attachment
	if cmd.File != nil {
		a, err := deps.Spool.Put(ctx, cmd.File.Filename, cmd.File.ContentType, cmd.File.Body)
		if err != nil {
			return FormPostResult{}, fmt.Errorf("spool attachment: %w", err)
		}
		att = &a
	}

	var previous *domain.Attachment
	form, err := mutate(ctx, cmd.FormID, deps, func(f *domain.Form) error {
		if err := applyPost(f, cmd); err != nil {
			return err
		}
		if att != nil {
			previous = f.Draft.File
			f.Draft = domain.WithFile(f.Draft, att)
		}
		switch cmd.Action {
		case ActionAddSlot:
			return appendSlot(f, deps.Policy)
		case ActionRemoveSlot:
			f.Draft = domain.RemoveSlot(f.Draft, cmd.RemoveIndex)
		case ActionSubmit:
			return checkDraft(f.Draft, deps.Policy)
		}
		return nil
	})
	if err != nil {
		if att != nil {
			releaseAttachment(deps.Spool, att.ID)
		}
		return FormPostResult{}, err
	}
	if previous != nil {
		releaseAttachment(deps.Spool, previous.ID)
	}
	if att != nil {
		slog.Info("course_attachment_selected", "form_id", cmd.FormID, "filename", att.Filename, "size", att.Size)
	}

	if cmd.Action == ActionSubmit {
		res, err := submitForm(ctx, form, deps)
		return FormPostResult{Form: form, SubmissionID: res.SubmissionID}, err
	}
	return FormPostResult{Form: form}, nil
}

// applyPost copies the posted field and entry inputs onto f.
func applyPost(f *domain.Form, cmd FormPostCommand) error {
	for _, name := range domain.FieldNames {
		value, ok := cmd.Fields[name]
		if !ok {
			continue
		}
		d, err := domain.WithField(f.Draft, name, value)
		if err != nil {
			return err
		}
		f.Draft = d
	}
	for _, name := range timeslot.FieldNames {
		value, ok := cmd.Entry[name]
		if !ok {
			continue
		}
		e, err := f.Entry.With(name, value)
		if err != nil {
			return err
		}
		f.Entry = e
	}
	return nil
}
