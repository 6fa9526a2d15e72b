package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/inkday/internal/checksum"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("<!-- lastSavedTimestamp: 1 -->\n")
	if err := s.Write("diary.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("diary.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("2024/archive.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("2024/archive.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestReadMissingIsNotExist(t *testing.T) {
	s := tempRoot(t)
	_, err := s.Read("missing.md")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read missing error = %v, want os.ErrNotExist", err)
	}
	if _, err := s.Stat("missing.md"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat missing error = %v, want os.ErrNotExist", err)
	}
}

func TestStat(t *testing.T) {
	s := tempRoot(t)
	content := []byte("3/14/2024\n  - pi day\n")
	_ = s.Write("diary.md", content)

	meta, err := s.Stat("diary.md")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if meta.Size != int64(len(content)) {
		t.Errorf("size = %d, want %d", meta.Size, len(content))
	}
	if meta.Checksum != checksum.Sum(content) {
		t.Errorf("checksum = %q", meta.Checksum)
	}
	if meta.UpdatedAtMillis() <= 0 {
		t.Errorf("updated_at not set: %v", meta.UpdatedAt)
	}
}

func TestList(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("diary.md", []byte("a"))
	_ = s.Write("old/2023.md", []byte("b"))
	_ = s.Write("readme.txt", []byte("not md"))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len = %d, want 2", len(items))
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("diary.md", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("diary.md", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("diary.md")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".inkday-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "inkday-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
