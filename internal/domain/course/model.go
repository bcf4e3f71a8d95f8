package course

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"courseform/internal/domain/timeslot"
)

// Scalar field names, matching the form input names.
const (
	FieldCourseName  = "courseName"
	FieldCourseCode  = "courseCode"
	FieldDescription = "description"
	FieldStartDate   = "startDate"
	FieldEndDate     = "endDate"
	FieldLocation    = "location"
	FieldMaxStudents = "maxStudents"
)

// FieldNames lists the scalar fields in form order.
var FieldNames = []string{
	FieldCourseName,
	FieldCourseCode,
	FieldDescription,
	FieldStartDate,
	FieldEndDate,
	FieldLocation,
	FieldMaxStudents,
}

// AcceptHint is the advisory file filter rendered on the attachment input.
const AcceptHint = ".pdf,.doc,.docx"

// Domain errors
var (
	ErrUnknownField       = errors.New("unknown course field")
	ErrInvalidMaxStudents = errors.New("max students must be a whole number")
)

// Attachment is the handle of the single selected file.
// The bytes live in the attachment spool under ID.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Draft is the in-progress, unsaved course record.
// INVARIANT: ClassTimes is never modified in place; every change installs a new slice,
// so copies of a Draft never observe each other's edits.
type Draft struct {
	CourseName  string              `json:"courseName"`
	CourseCode  string              `json:"courseCode"`
	Description string              `json:"description"`
	StartDate   string              `json:"startDate"` // YYYY-MM-DD
	EndDate     string              `json:"endDate"`   // YYYY-MM-DD
	ClassTimes  []timeslot.TimeSlot `json:"classTimes"`
	Location    string              `json:"location"`
	MaxStudents int                 `json:"maxStudents"`
	File        *Attachment         `json:"file,omitempty"`
}

// WithField returns a copy of d with exactly the named scalar field replaced.
// PRE: name is one of FieldNames
// POST: Every other field, including ClassTimes and File, equals its value in d
func WithField(d Draft, name, value string) (Draft, error) {
	switch name {
	case FieldCourseName:
		d.CourseName = value
	case FieldCourseCode:
		d.CourseCode = value
	case FieldDescription:
		d.Description = value
	case FieldStartDate:
		d.StartDate = value
	case FieldEndDate:
		d.EndDate = value
	case FieldLocation:
		d.Location = value
	case FieldMaxStudents:
		n, err := parseCount(value)
		if err != nil {
			return d, err
		}
		d.MaxStudents = n
	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return d, nil
}

// parseCount mirrors a number input: empty is zero, anything else must be an integer.
func parseCount(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMaxStudents, value)
	}
	return n, nil
}

// AppendSlot appends entry to the draft's class times after the policy accepts it.
// The returned entry is the reset (empty) entry on success, or the unchanged entry on rejection.
// PRE: policy may be nil, meaning every entry is accepted
// POST: On success len(ClassTimes) grows by one and entry is last
func AppendSlot(d Draft, entry timeslot.TimeSlot, policy Policy) (Draft, timeslot.TimeSlot, error) {
	if policy != nil {
		if err := policy.CheckSlot(entry); err != nil {
			return d, entry, err
		}
	}
	d.ClassTimes = timeslot.Append(d.ClassTimes, entry)
	return d, timeslot.TimeSlot{}, nil
}

// RemoveSlot removes the class time at index i. Out-of-range indexes leave the list as it was.
func RemoveSlot(d Draft, i int) Draft {
	d.ClassTimes = timeslot.RemoveAt(d.ClassTimes, i)
	return d
}

// WithFile stores att as the draft's only attachment, replacing any previous one.
// A nil att means no file was chosen and leaves the draft as it was.
func WithFile(d Draft, att *Attachment) Draft {
	if att == nil {
		return d
	}
	cp := *att
	d.File = &cp
	return d
}

// LogValue renders the full draft for diagnostic log lines.
func (d Draft) LogValue() slog.Value {
	slots := make([]string, len(d.ClassTimes))
	for i, s := range d.ClassTimes {
		slots[i] = s.Label()
	}
	attrs := []slog.Attr{
		slog.String(FieldCourseName, d.CourseName),
		slog.String(FieldCourseCode, d.CourseCode),
		slog.String(FieldDescription, d.Description),
		slog.String(FieldStartDate, d.StartDate),
		slog.String(FieldEndDate, d.EndDate),
		slog.Any("classTimes", slots),
		slog.String(FieldLocation, d.Location),
		slog.Int(FieldMaxStudents, d.MaxStudents),
	}
	if d.File != nil {
		attrs = append(attrs, slog.String("file", d.File.Filename))
	}
	return slog.GroupValue(attrs...)
}

// Form is one form session: the draft plus the slot entry being composed.
// It lives from the first render until the user cancels or the session expires.
type Form struct {
	ID        string            `json:"id"`
	Draft     Draft             `json:"draft"`
	Entry     timeslot.TimeSlot `json:"entry"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// NewForm returns an empty form session.
// PRE: id is non-empty
// POST: Draft and Entry are zero values
func NewForm(id string, now time.Time) Form {
	return Form{ID: id, CreatedAt: now, UpdatedAt: now}
}
