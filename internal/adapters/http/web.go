package web

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"time"

	"courseform/internal/adapters/attachment"
	"courseform/internal/adapters/http/middleware"
	"courseform/internal/adapters/http/perf"
	"courseform/internal/adapters/storage/draft"
	"courseform/internal/adapters/storage/submission"
	"courseform/internal/adapters/submit"
	"courseform/internal/application/orchestrators"
	domain "courseform/internal/domain/course"
)

//go:embed templates/*.html static
var assets embed.FS

// Services holds everything the handlers depend on.
type Services struct {
	DraftStore draft.Store
	Spool      attachment.Spool
	Submitter  submit.Submitter
	Policy     domain.Policy
	// Submissions backs GET /api/course/submissions[/{id}]; nil disables the endpoints.
	Submissions submission.Store
	// Collector backs /debug/perf; nil disables the endpoint.
	Collector *perf.Collector
}

func (s *Services) courseFormDeps() orchestrators.CourseFormDeps {
	return orchestrators.CourseFormDeps{
		DraftStore: s.DraftStore,
		Spool:      s.Spool,
		Submitter:  s.Submitter,
		Policy:     s.Policy,
	}
}

// Options configures the HTTP surface.
type Options struct {
	// CSRFKey must be 32 bytes.
	CSRFKey        []byte
	SecureCookies  bool
	TrustedOrigins []string
	DraftTTL       time.Duration
	// MaxUploadBytes bounds multipart request bodies.
	MaxUploadBytes     int64
	RateLimitPerSecond int
	SlowRequestMs      int
}

// Global services instance (set by NewMux)
var services *Services

// maxUploadBytes bounds multipart bodies (set by NewMux).
var maxUploadBytes int64 = 10 << 20

// NewMux wires HTTP handlers for the app.
// The rate limiter's cleanup goroutine runs until ctx is done.
func NewMux(ctx context.Context, s *Services, opts Options) http.Handler {
	services = s
	if opts.MaxUploadBytes > 0 {
		maxUploadBytes = opts.MaxUploadBytes
	}

	mux := http.NewServeMux()
	registerRoutes(mux, s.Submissions != nil, s.Collector != nil)

	limiter := middleware.NewRateLimiter(opts.RateLimitPerSecond, time.Second)
	limiter.StartCleanup(ctx)

	// Outermost last: Timing -> RateLimit -> FormSession -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(opts.CSRFKey, middleware.CSRFOptions{
			Secure:         opts.SecureCookies,
			TrustedOrigins: opts.TrustedOrigins,
		}),
		middleware.FormSession(middleware.SessionOptions{
			MaxAge: opts.DraftTTL,
			Secure: opts.SecureCookies,
		}),
		middleware.RateLimit(limiter),
		middleware.Timing(s.Collector, opts.SlowRequestMs),
	)
}

func registerRoutes(mux *http.ServeMux, ledger, debugPerf bool) {
	static, _ := fs.Sub(assets, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("GET /healthz", handleHealthz)

	mux.HandleFunc("GET /{$}", handleGetCourseForm)
	mux.HandleFunc("POST /course", handlePostCourseForm)

	mux.HandleFunc("GET /api/course/draft", handleGetDraft)
	mux.HandleFunc("DELETE /api/course/draft", handleDiscardDraft)
	mux.HandleFunc("POST /api/course/draft/field", handleUpdateField)
	mux.HandleFunc("POST /api/course/draft/entry", handleUpdateEntry)
	mux.HandleFunc("POST /api/course/draft/slots", handleAppendSlot)
	mux.HandleFunc("DELETE /api/course/draft/slots", handleRemoveSlot)
	mux.HandleFunc("POST /api/course/draft/file", handleAttachFile)
	mux.HandleFunc("POST /api/course/draft/submit", handleSubmitCourse)

	if ledger {
		mux.HandleFunc("GET /api/course/submissions", handleListSubmissions)
		mux.HandleFunc("GET /api/course/submissions/{id}", handleGetSubmission)
	}
	if debugPerf {
		mux.HandleFunc("GET /debug/perf", handleDebugPerf)
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDebugPerf serves request and draft store timings for the last 15 minutes.
func handleDebugPerf(w http.ResponseWriter, r *http.Request) {
	snap := services.Collector.Snapshot(time.Now().Add(-15*time.Minute), 10)
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
