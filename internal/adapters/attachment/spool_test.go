package attachment

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestLocalSpool_PutOpenRelease tests the full lifecycle of a spooled file.
func TestLocalSpool_PutOpenRelease(t *testing.T) {
	s, err := NewLocalSpool(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalSpool() error = %v", err)
	}

	att, err := s.Put(context.Background(), "syllabus.pdf", "application/pdf", strings.NewReader("%PDF-1.7 body"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if att.ID == "" || att.Filename != "syllabus.pdf" || att.ContentType != "application/pdf" || att.Size != 13 {
		t.Fatalf("Put() = %+v", att)
	}

	rc, err := s.Open(att.ID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.7 body" {
		t.Errorf("Open() content = %q", data)
	}

	if err := s.Release(att.ID); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := s.Open(att.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(released) error = %v, want ErrNotFound", err)
	}
	if err := s.Release(att.ID); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

// TestLocalSpool_RejectsPathIDs verifies IDs that are not UUIDs never touch the filesystem.
func TestLocalSpool_RejectsPathIDs(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewLocalSpool(dir)
	outside := dir + "/../keep.txt"
	os.WriteFile(outside, []byte("x"), 0o600)
	t.Cleanup(func() { os.Remove(outside) })

	if _, err := s.Open("../keep.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(traversal) error = %v, want ErrNotFound", err)
	}
	if err := s.Release("../keep.txt"); err != nil {
		t.Errorf("Release(traversal) error = %v", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside spool was touched: %v", err)
	}
}

// TestLocalSpool_Put_CanceledContext verifies nothing is written for a canceled request.
func TestLocalSpool_Put_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewLocalSpool(dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Put(ctx, "a.pdf", "", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Put() error = %v, want context.Canceled", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("spool has %d files, want 0", len(entries))
	}
}

// TestLocalSpool_Open_ReadFailure verifies an I/O failure yields a nil reader, not ErrNotFound.
func TestLocalSpool_Open_ReadFailure(t *testing.T) {
	notDir := filepath.Join(t.TempDir(), "spool")
	if err := os.WriteFile(notDir, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := &LocalSpool{dir: notDir, now: time.Now}

	rc, err := s.Open("6f1c8a52-3d4e-4b7a-9c2d-1e5f6a7b8c9d")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("Open() error = %v, want an I/O error", err)
	}
	if rc != nil {
		t.Errorf("Open() reader = %#v, want nil", rc)
	}
}

// TestLocalSpool_Sweep removes files idle past maxAge and keeps touched ones.
func TestLocalSpool_Sweep(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewLocalSpool(dir)
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	stale, _ := s.Put(ctx, "old.pdf", "", strings.NewReader("old"))
	inUse, _ := s.Put(ctx, "kept.pdf", "", strings.NewReader("kept"))
	for _, id := range []string{stale.ID, inUse.ID} {
		os.Chtimes(filepath.Join(dir, id), now.Add(-2*time.Hour), now.Add(-2*time.Hour))
	}
	if err := s.Touch(inUse.ID); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o600)
	os.Chtimes(filepath.Join(dir, "README"), now.Add(-2*time.Hour), now.Add(-2*time.Hour))

	n, err := s.Sweep(time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("Sweep() = %d, %v, want 1", n, err)
	}
	if _, err := s.Open(stale.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(stale) error = %v, want ErrNotFound", err)
	}
	rc, err := s.Open(inUse.ID)
	if err != nil {
		t.Fatalf("Open(touched) error = %v", err)
	}
	rc.Close()
	if _, err := os.Stat(filepath.Join(dir, "README")); err != nil {
		t.Errorf("non-spool entry removed: %v", err)
	}
	if err := s.Touch(stale.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Touch(swept) error = %v, want ErrNotFound", err)
	}
}

// TestLocalSpool_StartJanitor verifies the background sweep runs until canceled.
func TestLocalSpool_StartJanitor(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewLocalSpool(dir)
	att, _ := s.Put(context.Background(), "old.pdf", "", strings.NewReader("old"))
	past := time.Now().Add(-time.Hour)
	os.Chtimes(filepath.Join(dir, att.ID), past, past)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx, 10*time.Millisecond, time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(filepath.Join(dir, att.ID)); errors.Is(err, os.ErrNotExist) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("janitor did not remove the stale file")
}

// TestCleanFilename strips client directories.
func TestCleanFilename(t *testing.T) {
	tests := map[string]string{
		"notes.docx":              "notes.docx",
		`C:\Users\me\outline.doc`: "outline.doc",
		"../../etc/passwd":        "passwd",
		"":                        "",
		"dir/sub/plan.pdf":        "plan.pdf",
	}
	for in, want := range tests {
		if got := cleanFilename(in); got != want {
			t.Errorf("cleanFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
