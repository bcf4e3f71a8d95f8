package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"courseform/internal/adapters/http/perf"
	storage "courseform/internal/adapters/storage"
	"courseform/internal/adapters/storage/draft"
	"courseform/internal/adapters/storage/submission"
	"courseform/internal/adapters/submit"
	domain "courseform/internal/domain/course"
	"courseform/internal/domain/timeslot"
)

// apiClient drives the JSON API through the full middleware chain with one form session.
type apiClient struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
	token   string
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := &apiClient{t: t, handler: NewMux(ctx, services, Options{
		CSRFKey:            bytes.Repeat([]byte{2}, 32),
		DraftTTL:           time.Hour,
		RateLimitPerSecond: 1000,
	})}
	rr := c.do("GET", "/api/course/draft", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET draft status = %d", rr.Code)
	}
	c.cookies = rr.Result().Cookies()
	c.token = rr.Header().Get("X-CSRF-Token")
	return c
}

func (c *apiClient) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	return rr
}

func (c *apiClient) json(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	return c.do(method, path, &buf, "application/json")
}

func decodeDraft(t *testing.T, rr *httptest.ResponseRecorder) draftResponse {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp draftResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

// TestAPI_GetDraft returns an empty draft with an empty classTimes array and a CSRF token.
func TestAPI_GetDraft(t *testing.T) {
	setupServices(t, nil)
	c := newAPIClient(t)
	if c.token == "" {
		t.Error("X-CSRF-Token header missing")
	}
	rr := c.json("GET", "/api/course/draft", nil)
	if !strings.Contains(rr.Body.String(), `"classTimes":[]`) {
		t.Errorf("body = %s", rr.Body.String())
	}
	resp := decodeDraft(t, rr)
	if resp.FormID == "" || resp.Draft.CourseName != "" || !resp.Entry.IsEmpty() {
		t.Errorf("resp = %+v", resp)
	}
}

// TestAPI_SlotScenario runs field edits, three appends and a removal.
// POST: Monday and Friday remain, in order; the course name is untouched
func TestAPI_SlotScenario(t *testing.T) {
	setupServices(t, nil)
	c := newAPIClient(t)

	decodeDraft(t, c.json("POST", "/api/course/draft/field", fieldRequest{Name: "courseName", Value: "Algorithms"}))
	for _, s := range []timeslot.TimeSlot{
		{Day: timeslot.Monday, StartTime: "09:00", EndTime: "10:30"},
		{Day: timeslot.Wednesday, StartTime: "09:00", EndTime: "10:30"},
		{Day: timeslot.Friday, StartTime: "13:00", EndTime: "14:00"},
	} {
		decodeDraft(t, c.json("POST", "/api/course/draft/entry", fieldRequest{Name: "day", Value: s.Day}))
		decodeDraft(t, c.json("POST", "/api/course/draft/entry", fieldRequest{Name: "startTime", Value: s.StartTime}))
		decodeDraft(t, c.json("POST", "/api/course/draft/entry", fieldRequest{Name: "endTime", Value: s.EndTime}))
		resp := decodeDraft(t, c.json("POST", "/api/course/draft/slots", nil))
		if !resp.Entry.IsEmpty() {
			t.Fatalf("entry not reset: %+v", resp.Entry)
		}
	}

	resp := decodeDraft(t, c.json("DELETE", "/api/course/draft/slots?index=1", nil))
	got := resp.Draft.ClassTimes
	if len(got) != 2 || got[0].Day != timeslot.Monday || got[1].Day != timeslot.Friday {
		t.Errorf("ClassTimes = %+v", got)
	}
	if resp.Draft.CourseName != "Algorithms" {
		t.Errorf("CourseName = %q", resp.Draft.CourseName)
	}

	resp = decodeDraft(t, c.json("DELETE", "/api/course/draft/slots?index=9", nil))
	if len(resp.Draft.ClassTimes) != 2 {
		t.Errorf("out-of-range removal changed the list: %+v", resp.Draft.ClassTimes)
	}
}

// TestAPI_Errors covers the 400 and 422 responses. Cases run in order on one session.
func TestAPI_Errors(t *testing.T) {
	setupServices(t, domain.Strict{})
	c := newAPIClient(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown field", "POST", "/api/course/draft/field", fieldRequest{Name: "instructor", Value: "x"}, http.StatusBadRequest},
		{"bad max students", "POST", "/api/course/draft/field", fieldRequest{Name: "maxStudents", Value: "many"}, http.StatusBadRequest},
		{"unknown entry field", "POST", "/api/course/draft/entry", fieldRequest{Name: "room", Value: "x"}, http.StatusBadRequest},
		{"unknown JSON key", "POST", "/api/course/draft/field", map[string]string{"name": "courseName", "val": "x"}, http.StatusBadRequest},
		{"non-integer index", "DELETE", "/api/course/draft/slots?index=first", nil, http.StatusBadRequest},
		{"strict empty append", "POST", "/api/course/draft/slots", nil, http.StatusUnprocessableEntity},
		{"start date", "POST", "/api/course/draft/field", fieldRequest{Name: "startDate", Value: "2026-12-20"}, http.StatusOK},
		{"end date", "POST", "/api/course/draft/field", fieldRequest{Name: "endDate", Value: "2026-09-01"}, http.StatusOK},
		{"strict inverted dates submit", "POST", "/api/course/draft/submit", nil, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := c.json(tt.method, tt.path, tt.body); rr.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

// TestAPI_FileSubmitDiscard attaches a file, submits, then discards the draft.
func TestAPI_FileSubmitDiscard(t *testing.T) {
	ts := setupServices(t, nil)
	c := newAPIClient(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "outline.docx")
	fw.Write([]byte("outline"))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/course/draft/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-CSRF-Token", c.token)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	resp := decodeDraft(t, rr)
	if resp.Draft.File == nil || resp.Draft.File.Filename != "outline.docx" {
		t.Fatalf("File = %+v", resp.Draft.File)
	}

	rr = c.json("POST", "/api/course/draft/submit", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit status = %d", rr.Code)
	}
	var sub map[string]string
	json.NewDecoder(rr.Body).Decode(&sub)
	if sub["submissionID"] == "" || len(ts.submitter.submissions) != 1 {
		t.Fatalf("submit response = %v", sub)
	}
	if ts.submitter.submissions[0].Draft.File.Filename != "outline.docx" {
		t.Errorf("submitted draft = %+v", ts.submitter.submissions[0].Draft)
	}

	if rr := c.json("DELETE", "/api/course/draft", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("discard status = %d", rr.Code)
	}
	if _, err := ts.store.Get(context.Background(), resp.FormID); err == nil {
		t.Error("form session should be gone after discard")
	}
	if _, err := ts.spool.Open(resp.Draft.File.ID); err == nil {
		t.Error("attachment should be released after discard")
	}
}

// TestAPI_FileRequiresCSRF verifies multipart uploads are CSRF-checked.
func TestAPI_FileRequiresCSRF(t *testing.T) {
	setupServices(t, nil)
	c := newAPIClient(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "outline.pdf")
	fw.Write([]byte("x"))
	mw.Close()

	if rr := c.do("POST", "/api/course/draft/file", &buf, mw.FormDataContentType()); rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

// TestAPI_DebugPerf verifies the perf endpoint reports requests and store calls when a collector is set.
func TestAPI_DebugPerf(t *testing.T) {
	ts := setupServices(t, nil)
	collector := perf.NewCollector(100)
	services.Collector = collector
	services.DraftStore = draft.NewTimedStore(ts.store, collector, 0)
	c := newAPIClient(t)

	rr := c.json("GET", "/debug/perf", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var snap perf.Snapshot
	if err := json.NewDecoder(rr.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Requests) == 0 || len(snap.StoreCalls) == 0 {
		t.Errorf("snapshot = %+v", snap)
	}
}

// TestAPI_Submissions lists ledger records after a submit through the ledger submitter.
func TestAPI_Submissions(t *testing.T) {
	setupServices(t, nil)
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	ledger := submission.NewSQLiteStore(db)
	services.Submitter = submit.NewLedgerSubmitter(ledger)
	services.Submissions = ledger
	c := newAPIClient(t)

	decodeDraft(t, c.json("POST", "/api/course/draft/field", fieldRequest{Name: "courseName", Value: "Algorithms"}))
	if rr := c.json("POST", "/api/course/draft/submit", nil); rr.Code != http.StatusCreated {
		t.Fatalf("submit status = %d", rr.Code)
	}

	rr := c.json("GET", "/api/course/submissions", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var list []submission.Record
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Draft.CourseName != "Algorithms" {
		t.Errorf("list = %+v", list)
	}

	rr = c.json("GET", "/api/course/submissions/"+list[0].ID, nil)
	var rec submission.Record
	if rr.Code != http.StatusOK || json.NewDecoder(rr.Body).Decode(&rec) != nil || rec.Draft.CourseName != "Algorithms" {
		t.Errorf("get submission status = %d, record = %+v", rr.Code, rec)
	}
	if rr := c.json("GET", "/api/course/submissions/missing", nil); rr.Code != http.StatusNotFound {
		t.Errorf("missing submission status = %d, want 404", rr.Code)
	}

	if rr := c.json("GET", "/api/course/submissions?limit=0", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", rr.Code)
	}
}
