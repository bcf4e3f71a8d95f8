package timeslot

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Day of week values, as submitted by the weekday select.
const (
	Monday    = "Monday"
	Tuesday   = "Tuesday"
	Wednesday = "Wednesday"
	Thursday  = "Thursday"
	Friday    = "Friday"
	Saturday  = "Saturday"
	Sunday    = "Sunday"
)

// ValidDays contains all valid day values in display order.
var ValidDays = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// DayLabels maps each day value to the label shown in the weekday select.
var DayLabels = map[string]string{
	Monday:    "周一",
	Tuesday:   "周二",
	Wednesday: "周三",
	Thursday:  "周四",
	Friday:    "周五",
	Saturday:  "周六",
	Sunday:    "周日",
}

// Field names accepted by With.
const (
	FieldDay       = "day"
	FieldStartTime = "startTime"
	FieldEndTime   = "endTime"
)

// FieldNames lists the entry fields in form order.
var FieldNames = []string{FieldDay, FieldStartTime, FieldEndTime}

// Domain errors
var (
	ErrUnknownField   = errors.New("unknown time slot field")
	ErrInvalidDay     = errors.New("day must be a valid day of the week")
	ErrEmptyStartTime = errors.New("start time cannot be empty")
	ErrEmptyEndTime   = errors.New("end time cannot be empty")
	ErrInvertedTimes  = errors.New("start time must be before end time")
)

const clockLayout = "15:04"

// TimeSlot is one recurring weekly class meeting.
// The slot currently being composed in the form uses the same type; its zero value is the empty entry.
type TimeSlot struct {
	Day       string `json:"day"`
	StartTime string `json:"startTime"` // HH:MM
	EndTime   string `json:"endTime"`   // HH:MM
}

// With returns a copy of s with the named field replaced.
// PRE: name is one of FieldNames
// POST: Only the named field differs from s; ErrUnknownField leaves s untouched
func (s TimeSlot) With(name, value string) (TimeSlot, error) {
	switch name {
	case FieldDay:
		s.Day = value
	case FieldStartTime:
		s.StartTime = value
	case FieldEndTime:
		s.EndTime = value
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return s, nil
}

// IsEmpty reports whether no field has been chosen.
func (s TimeSlot) IsEmpty() bool {
	return s == TimeSlot{}
}

// Label is the display line for a slot row.
func (s TimeSlot) Label() string {
	return fmt.Sprintf("%s %s - %s", s.Day, s.StartTime, s.EndTime)
}

// Complete checks that a day and both times have been chosen.
// PRE: none
// POST: Returns nil if day is a valid weekday and both times are non-empty
func (s TimeSlot) Complete() error {
	if !slices.Contains(ValidDays, s.Day) {
		return ErrInvalidDay
	}
	if strings.TrimSpace(s.StartTime) == "" {
		return ErrEmptyStartTime
	}
	if strings.TrimSpace(s.EndTime) == "" {
		return ErrEmptyEndTime
	}
	return nil
}

// Ordered checks that the slot starts before it ends.
// PRE: StartTime and EndTime are in HH:MM format
// POST: Returns ErrInvertedTimes when end is not after start, or a parse error
func (s TimeSlot) Ordered() error {
	start, end, err := s.clock()
	if err != nil {
		return err
	}
	if !end.After(start) {
		return ErrInvertedTimes
	}
	return nil
}

// DurationHours returns the meeting length in hours.
// PRE: StartTime and EndTime are in HH:MM format
// POST: Returns duration as float64 hours, or error if times can't be parsed
func (s TimeSlot) DurationHours() (float64, error) {
	start, end, err := s.clock()
	if err != nil {
		return 0, err
	}
	dur := end.Sub(start)
	if dur <= 0 {
		dur += 24 * time.Hour // overnight
	}
	return dur.Hours(), nil
}

func (s TimeSlot) clock() (time.Time, time.Time, error) {
	start, err := time.Parse(clockLayout, s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time %q: %w", s.StartTime, err)
	}
	end, err := time.Parse(clockLayout, s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time %q: %w", s.EndTime, err)
	}
	return start, end, nil
}

// Append returns a new list with s added at the end.
// PRE: none
// POST: len(result) == len(list)+1; list itself is not modified
func Append(list []TimeSlot, s TimeSlot) []TimeSlot {
	return append(slices.Clip(list), s)
}

// RemoveAt returns a new list without the element at index i.
// An index outside [0, len(list)) removes nothing.
// PRE: none
// POST: Relative order of the remaining elements is preserved; list itself is not modified
func RemoveAt(list []TimeSlot, i int) []TimeSlot {
	if i < 0 || i >= len(list) {
		return slices.Clone(list)
	}
	out := make([]TimeSlot, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}
