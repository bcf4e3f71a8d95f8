package course

import (
	"errors"
	"fmt"
	"time"

	"courseform/internal/domain/timeslot"
)

// Policy names accepted by PolicyByName.
const (
	PolicyPermissive = "permissive"
	PolicyStrict     = "strict"
)

// ErrInvertedDates is returned by Strict when the course ends before it starts.
var ErrInvertedDates = errors.New("end date must not be before start date")

const dateLayout = "2006-01-02"

// Policy decides which slot entries may be appended and which drafts may be submitted.
type Policy interface {
	CheckSlot(s timeslot.TimeSlot) error
	CheckDraft(d Draft) error
}

// Permissive accepts everything, including empty entries and inverted ranges.
type Permissive struct{}

// CheckSlot always accepts.
func (Permissive) CheckSlot(timeslot.TimeSlot) error { return nil }

// CheckDraft always accepts.
func (Permissive) CheckDraft(Draft) error { return nil }

// Strict requires complete, forward-running slots and a start date no later than the end date.
type Strict struct{}

// CheckSlot rejects entries without a weekday or times, and entries that do not start before they end.
// PRE: none
// POST: Returns nil only for a complete slot with StartTime < EndTime
func (Strict) CheckSlot(s timeslot.TimeSlot) error {
	if err := s.Complete(); err != nil {
		return err
	}
	return s.Ordered()
}

// CheckDraft checks the date range and every class time.
// Dates that are empty are left to the form's required checks.
// PRE: none
// POST: Returns the first violation found
func (p Strict) CheckDraft(d Draft) error {
	if d.StartDate != "" && d.EndDate != "" {
		start, err := time.Parse(dateLayout, d.StartDate)
		if err != nil {
			return fmt.Errorf("invalid start date %q: %w", d.StartDate, err)
		}
		end, err := time.Parse(dateLayout, d.EndDate)
		if err != nil {
			return fmt.Errorf("invalid end date %q: %w", d.EndDate, err)
		}
		if end.Before(start) {
			return ErrInvertedDates
		}
	}
	for i, s := range d.ClassTimes {
		if err := p.CheckSlot(s); err != nil {
			return fmt.Errorf("class time %d: %w", i+1, err)
		}
	}
	return nil
}

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", PolicyPermissive:
		return Permissive{}, nil
	case PolicyStrict:
		return Strict{}, nil
	}
	return nil, fmt.Errorf("unknown slot policy %q", name)
}
