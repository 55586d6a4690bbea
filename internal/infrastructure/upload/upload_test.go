package upload

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func countEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	return len(entries)
}

func TestStage_ReadsBackAndRemovesOnClose(t *testing.T) {
	dir := t.TempDir()
	s := NewStager(dir, 64)

	f, err := s.Stage(strings.NewReader("image-bytes"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if f.Size() != int64(len("image-bytes")) {
		t.Fatalf("unexpected size %d", f.Size())
	}
	if countEntries(t, dir) != 1 {
		t.Fatalf("expected one staged file")
	}

	got, err := io.ReadAll(f)
	if err != nil || string(got) != "image-bytes" {
		t.Fatalf("read back %q (%v)", got, err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if countEntries(t, dir) != 0 {
		t.Fatalf("staged file not removed")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
}

func TestStage_ExactLimitAccepted(t *testing.T) {
	s := NewStager(t.TempDir(), 4)
	f, err := s.Stage(strings.NewReader("abcd"))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	_ = f.Close()
}

func TestStage_TooLargeLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s := NewStager(dir, 4)

	if _, err := s.Stage(strings.NewReader("abcde")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if countEntries(t, dir) != 0 {
		t.Fatalf("oversized upload left on disk")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestStage_ReadErrorLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s := NewStager(dir, 64)

	if _, err := s.Stage(failingReader{}); err == nil {
		t.Fatalf("expected error")
	}
	if countEntries(t, dir) != 0 {
		t.Fatalf("failed upload left on disk")
	}
}

func TestStage_MissingDir(t *testing.T) {
	s := NewStager(t.TempDir()+"/missing", 64)
	if _, err := s.Stage(strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
