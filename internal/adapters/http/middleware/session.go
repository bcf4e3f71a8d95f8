package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const formIDContextKey contextKey = "form_id"

// FormCookieName holds the form session ID.
const FormCookieName = "courseform_draft"

// SessionOptions configures the form session cookie.
type SessionOptions struct {
	// MaxAge should match the draft store TTL.
	MaxAge time.Duration
	Secure bool
}

// FormSession returns middleware that gives every client a form session ID.
// A missing or malformed cookie is replaced by a fresh UUID. The cookie is
// re-issued on each request so its lifetime follows the draft's sliding expiry.
// POST: FormIDFromContext(r.Context()) returns a valid UUID string
func FormSession(opts SessionOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if cookie, err := r.Cookie(FormCookieName); err == nil {
				if parsed, err := uuid.Parse(cookie.Value); err == nil {
					id = parsed.String()
				}
			}
			if id == "" {
				id = uuid.NewString()
			}
			setFormCookie(w, id, opts)
			next.ServeHTTP(w, r.WithContext(ContextWithFormID(r.Context(), id)))
		})
	}
}

func setFormCookie(w http.ResponseWriter, id string, opts SessionOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     FormCookieName,
		Value:    id,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   int(opts.MaxAge / time.Second),
	})
}

// FormIDFromContext extracts the form session ID set by FormSession.
func FormIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(formIDContextKey).(string)
	return id, ok && id != ""
}

// ContextWithFormID returns a context carrying the form session ID.
// Intended for use in tests.
func ContextWithFormID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, formIDContextKey, id)
}
