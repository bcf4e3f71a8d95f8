package projections

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strconv"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	domain "courseform/internal/domain/course"
	"courseform/internal/domain/timeslot"
)

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in the description is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// FormLoader returns the form session to display, creating it on first use.
type FormLoader func(ctx context.Context, id string) (domain.Form, error)

// GetCourseFormQuery selects the form session to render.
type GetCourseFormQuery struct {
	FormID string
}

// GetCourseFormDeps holds dependencies for the course form projection.
type GetCourseFormDeps struct {
	LoadForm FormLoader
}

// SlotRow is one rendered class time.
// Index is the row's position in this render; remove controls post it back as-is.
type SlotRow struct {
	Index    int
	Label    string
	Duration string
}

// DayOption is one entry of the weekday select.
type DayOption struct {
	Value    string
	Label    string
	Selected bool
}

// CourseFormView is everything the course form template needs.
type CourseFormView struct {
	FormID          string
	Draft           domain.Draft
	Entry           timeslot.TimeSlot
	Rows            []SlotRow
	Days            []DayOption
	DescriptionHTML template.HTML
	AcceptHint      string
}

// QueryGetCourseForm builds the view of a form session.
// PRE: query.FormID is non-empty
// POST: Rows are numbered by current position, 0..len(ClassTimes)-1
func QueryGetCourseForm(ctx context.Context, query GetCourseFormQuery, deps GetCourseFormDeps) (CourseFormView, error) {
	form, err := deps.LoadForm(ctx, query.FormID)
	if err != nil {
		return CourseFormView{}, fmt.Errorf("load course form: %w", err)
	}
	return BuildCourseFormView(form), nil
}

// BuildCourseFormView renders a form session that is already in hand.
func BuildCourseFormView(form domain.Form) CourseFormView {
	return CourseFormView{
		FormID:          form.ID,
		Draft:           form.Draft,
		Entry:           form.Entry,
		Rows:            slotRows(form.Draft.ClassTimes),
		Days:            dayOptions(form.Entry.Day),
		DescriptionHTML: renderDescription(form.Draft.Description),
		AcceptHint:      domain.AcceptHint,
	}
}

func slotRows(list []timeslot.TimeSlot) []SlotRow {
	rows := make([]SlotRow, len(list))
	for i, s := range list {
		rows[i] = SlotRow{Index: i, Label: s.Label()}
		if h, err := s.DurationHours(); err == nil {
			rows[i].Duration = strconv.FormatFloat(h, 'f', -1, 64) + "h"
		}
	}
	return rows
}

func dayOptions(selected string) []DayOption {
	opts := make([]DayOption, 0, len(timeslot.ValidDays)+1)
	opts = append(opts, DayOption{Value: "", Label: "选择日期", Selected: selected == ""})
	for _, d := range timeslot.ValidDays {
		opts = append(opts, DayOption{Value: d, Label: timeslot.DayLabels[d], Selected: d == selected})
	}
	return opts
}

func renderDescription(md string) template.HTML {
	if md == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		slog.Warn("description_render_failed", "error", err.Error())
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}
