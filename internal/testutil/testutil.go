// Package testutil provides shared test helpers for setting up diary
// directories and databases.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/inkday/internal/diary"
	"github.com/starford/inkday/internal/index"
	"github.com/starford/inkday/internal/storage"
)

// TestDB creates a temporary SQLite database that is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "inkday-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDiaryDir creates a temporary diary directory with a file store.
func TestDiaryDir(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// FixedCodec returns a codec whose clock always reads ms.
func FixedCodec(ms int64) *diary.Codec {
	return diary.NewCodec(diary.WithClock(func() time.Time { return time.UnixMilli(ms) }))
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
