package draft

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domain "courseform/internal/domain/course"
)

// MemoryStore keeps form sessions in process memory.
// Sessions idle for longer than ttl are treated as gone.
type MemoryStore struct {
	mu    sync.RWMutex
	forms map[string]domain.Form
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
// PRE: ttl > 0
// POST: Returns a ready store; call StartSweeper to reclaim expired sessions
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		forms: make(map[string]domain.Form),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a form session by ID.
// PRE: id is non-empty
// POST: Returns the form, or ErrNotFound if missing or expired
func (s *MemoryStore) Get(_ context.Context, id string) (domain.Form, error) {
	s.mu.RLock()
	form, ok := s.forms[id]
	s.mu.RUnlock()
	if !ok || s.expired(form) {
		return domain.Form{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return form, nil
}

// Save stores the form session, replacing any previous value.
// PRE: form.ID is non-empty
// POST: Get(form.ID) returns form
func (s *MemoryStore) Save(_ context.Context, form domain.Form) error {
	if form.ID == "" {
		return fmt.Errorf("save form session: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[form.ID] = form
	return nil
}

// Delete removes a form session. Deleting a missing session is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forms, id)
	return nil
}

// Sweep drops expired sessions and returns them.
func (s *MemoryStore) Sweep() []domain.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []domain.Form
	for id, form := range s.forms {
		if s.expired(form) {
			delete(s.forms, id)
			removed = append(removed, form)
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
// onExpire, if non-nil, is called outside the lock for each swept session.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration, onExpire func(domain.Form)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := s.Sweep()
				if len(removed) > 0 {
					slog.Debug("form_sessions_swept", "removed", len(removed))
				}
				if onExpire != nil {
					for _, form := range removed {
						onExpire(form)
					}
				}
			}
		}
	}()
}

func (s *MemoryStore) expired(form domain.Form) bool {
	return s.now().Sub(form.UpdatedAt) > s.ttl
}
