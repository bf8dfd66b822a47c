package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) add(path string) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_Match(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher([]string{root}, []string{"**/*.jsonl", "*.csv"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "a.jsonl"), true},
		{filepath.Join(root, "nested", "deep", "b.jsonl"), true},
		{filepath.Join(root, "c.csv"), true},
		{filepath.Join(root, "nested", "c.csv"), false},
		{filepath.Join(root, "d.txt"), false},
		{filepath.Join(root, ".hidden.jsonl"), false},
		{filepath.Join(root, "a.jsonl"+DoneSuffix), false},
		{filepath.Join(root, "a.jsonl"+FailedSuffix), false},
		{filepath.Join(filepath.Dir(root), "outside.jsonl"), false},
	}
	for _, tt := range tests {
		if got := w.Match(tt.path); got != tt.want {
			t.Errorf("Match(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestNewWatcher_invalidPattern(t *testing.T) {
	if _, err := NewWatcher([]string{t.TempDir()}, []string{"[unclosed"}, nil); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestWatcher_DebouncedHandover(t *testing.T) {
	root := t.TempDir()
	var got collector
	w, err := NewWatcher([]string{root}, []string{"**/*.jsonl"}, got.add, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(root, "batch.jsonl")
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(`{"id":"a","text":"b"}`+"\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(got.snapshot()) >= 1 })
	time.Sleep(150 * time.Millisecond)
	paths := got.snapshot()
	if len(paths) != 1 || paths[0] != path {
		t.Errorf("handed over %v, want exactly [%s]", paths, path)
	}
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	root := t.TempDir()
	var got collector
	w, err := NewWatcher([]string{root}, []string{"**/*.csv"}, got.add, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	sub := filepath.Join(root, "2026-10")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	// let the watcher register the new directory
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "export.csv"), []byte("id,text\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(got.snapshot()) >= 1 })
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "old.jsonl"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "old.jsonl"+DoneSuffix), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	var got collector
	w, err := NewWatcher([]string{root}, nil, got.add)
	if err != nil {
		t.Fatal(err)
	}
	w.SyncExistingFiles()
	if paths := got.snapshot(); len(paths) != 1 || filepath.Base(paths[0]) != "old.jsonl" {
		t.Errorf("synced %v", paths)
	}
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "inbox")
	w, err := NewWatcher([]string{root}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestWatcher_StartStopLoop(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 200; i++ {
		w, err := NewWatcher([]string{root}, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		w.Stop()
	}
}

func TestWatcher_CancelAndStopConcurrently(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 50; i++ {
		w, err := NewWatcher([]string{root}, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		if err := w.Start(ctx); err != nil {
			t.Fatal(err)
		}
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); cancel() }()
		go func() { defer wg.Done(); w.Stop() }()
		wg.Wait()
	}
}

func TestWatcher_RestartAfterStop(t *testing.T) {
	root := t.TempDir()
	var got collector
	w, err := NewWatcher([]string{root}, nil, got.add, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(root, "again.jsonl")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(got.snapshot()) > 0 })
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.csv")
	if err := os.WriteFile(path, []byte("id,text\n"), 0644); err != nil {
		t.Fatal(err)
	}
	dst, err := MarkProcessed(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if dst != path+FailedSuffix {
		t.Errorf("dst=%s", dst)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original should be gone")
	}
	if _, err := MarkProcessed(path, true); err == nil {
		t.Error("expected error for missing file")
	}
}
