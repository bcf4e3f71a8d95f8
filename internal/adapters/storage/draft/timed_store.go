package draft

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"courseform/internal/adapters/http/perf"
	domain "courseform/internal/domain/course"
)

// DefaultSlowCallMs is the default threshold for slow store call warnings.
const DefaultSlowCallMs = 50

// TimedStore wraps a Store to log slow calls and record them to a collector.
// ErrNotFound is an expected outcome and is not counted as a failure.
type TimedStore struct {
	next      Store
	collector *perf.Collector
	threshold float64
}

var _ Store = (*TimedStore)(nil)

// NewTimedStore wraps next with timing instrumentation.
// PRE: next is non-nil; collector may be nil
// POST: thresholdMs <= 0 selects DefaultSlowCallMs
func NewTimedStore(next Store, collector *perf.Collector, thresholdMs int) *TimedStore {
	if thresholdMs <= 0 {
		thresholdMs = DefaultSlowCallMs
	}
	return &TimedStore{next: next, collector: collector, threshold: float64(thresholdMs)}
}

func (t *TimedStore) observe(op string, start time.Time, err error) {
	durationMs := float64(time.Since(start).Microseconds()) / 1000.0
	failed := err != nil && !errors.Is(err, ErrNotFound)

	if durationMs >= t.threshold {
		slog.Warn("slow_store_call", "op", op, "duration_ms", durationMs, "failed", failed)
	} else {
		slog.Debug("store_call", "op", op, "duration_ms", durationMs, "failed", failed)
	}

	t.collector.Record(perf.Entry{
		Kind:       perf.KindStore,
		Name:       op,
		Failed:     failed,
		DurationMs: durationMs,
		Timestamp:  start,
	})
}

// Get times the wrapped Get.
func (t *TimedStore) Get(ctx context.Context, id string) (domain.Form, error) {
	start := time.Now()
	form, err := t.next.Get(ctx, id)
	t.observe("draft.Get", start, err)
	return form, err
}

// Save times the wrapped Save.
func (t *TimedStore) Save(ctx context.Context, form domain.Form) error {
	start := time.Now()
	err := t.next.Save(ctx, form)
	t.observe("draft.Save", start, err)
	return err
}

// Delete times the wrapped Delete.
func (t *TimedStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := t.next.Delete(ctx, id)
	t.observe("draft.Delete", start, err)
	return err
}
