package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	domain "courseform/internal/domain/course"
)

// ErrNotFound is returned when no spooled file exists for an ID.
var ErrNotFound = errors.New("attachment not found")

// Spool holds the bytes behind attachment handles until the handle is released.
type Spool interface {
	Put(ctx context.Context, filename, contentType string, src io.Reader) (domain.Attachment, error)
	Open(id string) (io.ReadCloser, error)
	Touch(id string) error
	Release(id string) error
}

// LocalSpool writes each selected file to its own file under dir.
// A file's modification time is the last time a form session used it.
type LocalSpool struct {
	dir string
	now func() time.Time
}

// NewLocalSpool creates the spool directory if needed.
// PRE: dir is a writable path
// POST: dir exists
func NewLocalSpool(dir string) (*LocalSpool, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir spool: %w", err)
	}
	return &LocalSpool{dir: dir, now: time.Now}, nil
}

// Put copies src into a new spool file.
// PRE: src is readable; filename is the name reported by the browser
// POST: Returns a handle whose ID addresses the stored bytes
func (s *LocalSpool) Put(ctx context.Context, filename, contentType string, src io.Reader) (domain.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Attachment{}, err
	}
	id := uuid.New().String()
	f, err := os.OpenFile(s.path(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("create spool file: %w", err)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(s.path(id))
		return domain.Attachment{}, fmt.Errorf("write spool file: %w", err)
	}
	return domain.Attachment{
		ID:          id,
		Filename:    cleanFilename(filename),
		ContentType: contentType,
		Size:        n,
	}, nil
}

// Open returns the stored bytes for id.
// PRE: id was returned by Put and not yet released
// POST: Caller must close the reader
func (s *LocalSpool) Open(id string) (io.ReadCloser, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	f, err := os.Open(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("open spool file: %w", err)
	}
	return f, nil
}

// Touch marks the file for id as in use so Sweep keeps it.
func (s *LocalSpool) Touch(id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := s.now()
	err := os.Chtimes(s.path(id), now, now)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// Release deletes the stored bytes. Releasing an unknown ID is not an error.
func (s *LocalSpool) Release(id string) error {
	if !validID(id) {
		return nil
	}
	err := os.Remove(s.path(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release spool file: %w", err)
	}
	return nil
}

// Sweep deletes spooled files not used for longer than maxAge and returns how many were removed.
// PRE: maxAge > 0
// POST: Files whose form session has expired are gone; other entries in dir are left alone
func (s *LocalSpool) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read spool dir: %w", err)
	}
	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !validID(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := s.Release(e.Name()); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// StartJanitor runs Sweep every interval until ctx is done.
// Used when form sessions expire outside this process, e.g. by a Redis TTL.
func (s *LocalSpool) StartJanitor(ctx context.Context, interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Sweep(maxAge)
				if err != nil {
					slog.Warn("spool_sweep_failed", "error", err.Error())
				}
				if n > 0 {
					slog.Info("spool_files_swept", "removed", n)
				}
			}
		}
	}()
}

func (s *LocalSpool) path(id string) string {
	return filepath.Join(s.dir, id)
}

// validID keeps IDs from escaping the spool directory.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// cleanFilename strips any client-side directory from the reported name.
func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
