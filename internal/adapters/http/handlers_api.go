package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/csrf"

	"courseform/internal/adapters/storage/submission"
	"courseform/internal/application/orchestrators"
	domain "courseform/internal/domain/course"
	"courseform/internal/domain/timeslot"
)

// draftResponse is the JSON shape of a form session.
type draftResponse struct {
	FormID    string            `json:"formID"`
	Draft     domain.Draft      `json:"draft"`
	Entry     timeslot.TimeSlot `json:"entry"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func newDraftResponse(form domain.Form) draftResponse {
	d := form.Draft
	if d.ClassTimes == nil {
		d.ClassTimes = []timeslot.TimeSlot{}
	}
	return draftResponse{FormID: form.ID, Draft: d, Entry: form.Entry, UpdatedAt: form.UpdatedAt}
}

// fieldRequest is the body of the field and entry endpoints.
type fieldRequest struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// respondForm writes the form session or maps err to a status.
func respondForm(w http.ResponseWriter, form domain.Form, err error) {
	if err != nil {
		if status, ok := clientError(err); ok {
			http.Error(w, err.Error(), status)
			return
		}
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDraftResponse(form))
}

// handleGetDraft handles GET /api/course/draft.
// The CSRF token for multipart uploads is returned in X-CSRF-Token.
func handleGetDraft(w http.ResponseWriter, r *http.Request) {
	form, err := orchestrators.ExecuteOpenForm(r.Context(), formID(r), services.courseFormDeps())
	if token := csrf.Token(r); token != "" {
		w.Header().Set("X-CSRF-Token", token)
	}
	respondForm(w, form, err)
}

// handleUpdateField handles POST /api/course/draft/field.
// PRE: body is {"name": <course field>, "value": <string>}
// POST: Only the named field changed
func handleUpdateField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	form, err := orchestrators.ExecuteUpdateField(r.Context(), orchestrators.UpdateFieldCommand{
		FormID: formID(r),
		Name:   req.Name,
		Value:  req.Value,
	}, services.courseFormDeps())
	respondForm(w, form, err)
}

// handleUpdateEntry handles POST /api/course/draft/entry.
// PRE: body is {"name": "day"|"startTime"|"endTime", "value": <string>}
func handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if err := strictDecode(r, &req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	form, err := orchestrators.ExecuteUpdateEntry(r.Context(), orchestrators.UpdateEntryCommand{
		FormID: formID(r),
		Name:   req.Name,
		Value:  req.Value,
	}, services.courseFormDeps())
	respondForm(w, form, err)
}

// handleAppendSlot handles POST /api/course/draft/slots.
// POST: The current entry is appended and reset, or 422 if the policy rejects it
func handleAppendSlot(w http.ResponseWriter, r *http.Request) {
	form, err := orchestrators.ExecuteAppendSlot(r.Context(), formID(r), services.courseFormDeps())
	respondForm(w, form, err)
}

// handleRemoveSlot handles DELETE /api/course/draft/slots?index=i.
// An out-of-range index removes nothing; a non-integer index is a 400.
func handleRemoveSlot(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		http.Error(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	form, err := orchestrators.ExecuteRemoveSlot(r.Context(), orchestrators.RemoveSlotCommand{
		FormID: formID(r),
		Index:  index,
	}, services.courseFormDeps())
	respondForm(w, form, err)
}

// handleAttachFile handles POST /api/course/draft/file.
// Accepts multipart form data with a single file part named "file".
// PRE: CSRF token present (X-CSRF-Token header or form field)
func handleAttachFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "request too large or malformed", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "malformed file part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	posted := postedFile(file, header)
	form, err := orchestrators.ExecuteAttachFile(r.Context(), orchestrators.AttachFileCommand{
		FormID:      formID(r),
		Filename:    posted.Filename,
		ContentType: posted.ContentType,
		Body:        posted.Body,
	}, services.courseFormDeps())
	respondForm(w, form, err)
}

// handleSubmitCourse handles POST /api/course/draft/submit.
// POST: Returns {"submissionID": ...}; the draft is kept
func handleSubmitCourse(w http.ResponseWriter, r *http.Request) {
	res, err := orchestrators.ExecuteSubmitCourse(r.Context(), formID(r), services.courseFormDeps())
	if err != nil {
		if status, ok := clientError(err); ok {
			slog.Info("course_submit_rejected", "form_id", formID(r), "error", err.Error())
			http.Error(w, err.Error(), status)
			return
		}
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"submissionID": res.SubmissionID})
}

// handleListSubmissions handles GET /api/course/submissions?limit=n.
// PRE: 1 <= limit <= 100; defaults to 20
// POST: Returns recorded submissions, newest first
func handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}
	list, err := services.Submissions.ListRecent(r.Context(), limit)
	if err != nil {
		internalError(w, err)
		return
	}
	if list == nil {
		list = []submission.Record{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetSubmission handles GET /api/course/submissions/{id}.
// POST: Returns the recorded submission, or 404 if the ledger has none
func handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	rec, err := services.Submissions.GetByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, submission.ErrNotFound) {
		http.Error(w, "submission not found", http.StatusNotFound)
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDiscardDraft handles DELETE /api/course/draft.
func handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	if err := orchestrators.ExecuteDiscardForm(r.Context(), formID(r), services.courseFormDeps()); err != nil {
		internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
