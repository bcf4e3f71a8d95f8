package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/csrf"

	"courseform/internal/adapters/http/middleware"
	"courseform/internal/application/orchestrators"
	"courseform/internal/application/projections"
	domain "courseform/internal/domain/course"
	"courseform/internal/domain/timeslot"
)

var pages = template.Must(template.ParseFS(assets, "templates/layout.html", "templates/course_form.html"))

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// clientError maps domain and policy errors to a status code.
// ok is false for errors the client could not have caused.
func clientError(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, domain.ErrUnknownField),
		errors.Is(err, domain.ErrInvalidMaxStudents),
		errors.Is(err, timeslot.ErrUnknownField),
		errors.Is(err, orchestrators.ErrUnknownAction):
		return http.StatusBadRequest, true
	case errors.Is(err, orchestrators.ErrSlotRejected),
		errors.Is(err, orchestrators.ErrDraftRejected):
		return http.StatusUnprocessableEntity, true
	}
	return 0, false
}

func formID(r *http.Request) string {
	id, _ := middleware.FormIDFromContext(r.Context())
	return id
}

// coursePage is the data passed to the course form template.
type coursePage struct {
	projections.CourseFormView
	CSRFField    template.HTML
	Error        string
	SubmissionID string
	Discarded    bool
}

func renderCourseForm(w http.ResponseWriter, r *http.Request, status int, page coursePage) {
	page.CSRFField = csrf.TemplateField(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, "layout.html", page); err != nil {
		slog.Error("template_render_failed", "template", "course_form.html", "error", err.Error())
	}
}

// handleGetCourseForm handles GET /.
// PRE: FormSession middleware ran
// POST: Renders the session's draft, creating an empty one on first visit
func handleGetCourseForm(w http.ResponseWriter, r *http.Request) {
	deps := services.courseFormDeps()
	view, err := projections.QueryGetCourseForm(r.Context(), projections.GetCourseFormQuery{FormID: formID(r)}, projections.GetCourseFormDeps{
		LoadForm: func(ctx context.Context, id string) (domain.Form, error) {
			return orchestrators.ExecuteOpenForm(ctx, id, deps)
		},
	})
	if err != nil {
		internalError(w, err)
		return
	}
	q := r.URL.Query()
	renderCourseForm(w, r, http.StatusOK, coursePage{
		CourseFormView: view,
		SubmissionID:   q.Get("submitted"),
		Discarded:      q.Has("discarded"),
	})
}

// handlePostCourseForm handles POST /course, the browser form.
// Accepts multipart form data with any subset of the course and entry inputs,
// an optional file, and the pressed button in action or remove.
// POST: 303 to / on success; the form is re-rendered with 4xx on rejected input
func handlePostCourseForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "request too large or malformed", http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	cmd, err := formPostCommand(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		cmd.File = postedFile(file, header)
	}

	res, err := orchestrators.ExecuteFormPost(r.Context(), cmd, services.courseFormDeps())
	if err != nil {
		status, ok := clientError(err)
		if !ok {
			internalError(w, err)
			return
		}
		slog.Info("course_form_post_rejected", "form_id", cmd.FormID, "action", cmd.Action, "error", err.Error())
		saved, loadErr := orchestrators.ExecuteOpenForm(r.Context(), cmd.FormID, services.courseFormDeps())
		if loadErr != nil {
			internalError(w, loadErr)
			return
		}
		renderCourseForm(w, r, status, coursePage{
			CourseFormView: projections.BuildCourseFormView(saved),
			Error:          err.Error(),
		})
		return
	}

	target := "/"
	switch {
	case res.SubmissionID != "":
		target = "/?submitted=" + url.QueryEscape(res.SubmissionID)
	case res.Discarded:
		target = "/?discarded"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// formPostCommand collects the inputs present in the post.
// Absent inputs are left out so they keep their saved values.
func formPostCommand(r *http.Request) (orchestrators.FormPostCommand, error) {
	cmd := orchestrators.FormPostCommand{
		FormID: formID(r),
		Fields: map[string]string{},
		Entry:  map[string]string{},
		Action: r.PostFormValue("action"),
	}
	for _, name := range domain.FieldNames {
		if vals, ok := r.PostForm[name]; ok && len(vals) > 0 {
			cmd.Fields[name] = vals[0]
		}
	}
	for _, name := range timeslot.FieldNames {
		if vals, ok := r.PostForm[name]; ok && len(vals) > 0 {
			cmd.Entry[name] = vals[0]
		}
	}
	if raw, ok := r.PostForm["remove"]; ok && len(raw) > 0 {
		index, err := strconv.Atoi(strings.TrimSpace(raw[0]))
		if err != nil {
			return cmd, errors.New("remove must be a slot index")
		}
		cmd.Action = orchestrators.ActionRemoveSlot
		cmd.RemoveIndex = index
	}
	return cmd, nil
}

func postedFile(file multipart.File, header *multipart.FileHeader) *orchestrators.PostedFile {
	return &orchestrators.PostedFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}
}
