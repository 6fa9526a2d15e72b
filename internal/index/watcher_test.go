package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/inkday/internal/storage"
)

// watcherTestEnv sets up a diary dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, *storage.FS, *DB) {
	t.Helper()
	diaryDir := t.TempDir()
	store, err := storage.NewFS(diaryDir)
	if err != nil {
		t.Fatal(err)
	}
	return diaryDir, store, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(kind, path string) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+path)
	r.mu.Unlock()
}

func (r *recorder) has(want string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == want {
			return true
		}
	}
	return false
}

func TestWatcher_ExternalEditImported(t *testing.T) {
	diaryDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, db, store, "diary.md", quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(diaryDir, "diary.md"), []byte("1/2/2024\n  - edited elsewhere\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		day, _ := db.GetDay("0_2_2024")
		return len(day) == 1 && day[0].Text == "edited elsewhere"
	}, "external edit not imported by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("updated:diary.md")
	}, "expected updated:diary.md callback")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	diaryDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, db, store, "diary.md", quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(diaryDir, "notes.md"), []byte("1/2/2024\n  - not the diary\n"), 0o644)
	time.Sleep(600 * time.Millisecond)

	day, _ := db.GetDay("0_2_2024")
	if len(day) != 0 {
		t.Errorf("unrelated file was imported: %#v", day)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.events) != 0 {
		t.Errorf("unexpected callbacks: %v", rec.events)
	}
}

func TestWatcher_AtomicWriteSeen(t *testing.T) {
	_, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, "diary.md", quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	if err := store.Write("diary.md", []byte("7/4/2024\n  - fireworks\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		day, _ := db.GetDay("6_4_2024")
		return len(day) == 1
	}, "atomic rename into place not picked up")
}

func TestWatcher_DeleteReported(t *testing.T) {
	diaryDir, store, db := watcherTestEnv(t)
	path := filepath.Join(diaryDir, "diary.md")
	_ = os.WriteFile(path, []byte("1/1/2024\n  - x\n"), 0o644)
	if _, err := Sync(db, store, "diary.md", quietLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	go Watch(ctx, db, store, "diary.md", quietLogger(), rec.record)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(path)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("deleted:diary.md")
	}, "expected deleted:diary.md callback")

	day, _ := db.GetDay("0_1_2024")
	if len(day) != 1 {
		t.Error("local copy must survive document removal")
	}
}
