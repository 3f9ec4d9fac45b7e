package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeTargets(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTargetsWatcher(t *testing.T, path string, opts ...WatcherOption[[]string]) *Watcher[[]string] {
	t.Helper()
	opts = append([]WatcherOption[[]string]{WithDebounce[[]string](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, LoadTargets, newTestLogger(), opts...)
	return w
}

func run(t *testing.T, w *Watcher[[]string]) {
	t.Helper()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	// Wait for watcher to initialize
	time.Sleep(50 * time.Millisecond)
}

func expectTargets(t *testing.T, ch <-chan []string, want []string) {
	t.Helper()
	select {
	case got := <-ch:
		if !slices.Equal(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.toml")
	writeTargets(t, path, `targets = ["alice"]`)

	received := make(chan []string, 1)
	w := newTargetsWatcher(t, path)
	w.OnReload(func(targets []string) { received <- targets })
	run(t, w)

	writeTargets(t, path, `targets = ["alice", "bob"]`)
	expectTargets(t, received, []string{"alice", "bob"})
}

func TestConfigWatcher_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.toml")
	writeTargets(t, path, `targets = ["alice"]`)

	received := make(chan []string, 1)
	w := newTargetsWatcher(t, path)
	w.OnReload(func(targets []string) { received <- targets })
	run(t, w)

	tmp := filepath.Join(dir, ".targets.toml.swp")
	writeTargets(t, tmp, `targets = ["carol"]`)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
	expectTargets(t, received, []string{"carol"})
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.toml")
	writeTargets(t, path, `targets = ["alice"]`)

	var loads atomic.Int32
	w := NewConfigWatcher(path, func(p string) ([]string, error) {
		loads.Add(1)
		return LoadTargets(p)
	}, newTestLogger(), WithDebounce[[]string](30*time.Millisecond))
	run(t, w)

	writeTargets(t, filepath.Join(dir, "other.toml"), `targets = ["mallory"]`)
	time.Sleep(200 * time.Millisecond)

	if n := loads.Load(); n != 0 {
		t.Errorf("loader called %d times for an unrelated file", n)
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.toml")
	writeTargets(t, path, `targets = []`)

	var loads atomic.Int32
	received := make(chan []string, 10)
	w := NewConfigWatcher(path, func(p string) ([]string, error) {
		loads.Add(1)
		return LoadTargets(p)
	}, newTestLogger(), WithDebounce[[]string](150*time.Millisecond))
	w.OnReload(func(targets []string) { received <- targets })
	run(t, w)

	for _, content := range []string{`targets = ["a"]`, `targets = ["a", "b"]`, `targets = ["a", "b", "c"]`} {
		writeTargets(t, path, content)
		time.Sleep(20 * time.Millisecond)
	}

	expectTargets(t, received, []string{"a", "b", "c"})
	time.Sleep(300 * time.Millisecond)
	if n := loads.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1 after debounce", n)
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.toml")
	writeTargets(t, path, `targets = ["alice"]`)

	errCh := make(chan error, 1)
	reloaded := make(chan []string, 1)
	w := newTargetsWatcher(t, path, WithErrorHandler[[]string](func(err error) { errCh <- err }))
	w.OnReload(func(targets []string) { reloaded <- targets })
	run(t, w)

	writeTargets(t, path, `targets = [unterminated`)

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected non-nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error handler")
	}
	select {
	case got := <-reloaded:
		t.Errorf("handler called with %v despite load error", got)
	default:
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.toml")
	writeTargets(t, path, `targets = []`)

	first := make(chan []string, 1)
	second := make(chan []string, 1)
	w := newTargetsWatcher(t, path)
	unsub := w.OnReload(func(targets []string) { first <- targets })
	w.OnReload(func(targets []string) { second <- targets })
	unsub()
	run(t, w)

	writeTargets(t, path, `targets = ["bob"]`)
	expectTargets(t, second, []string{"bob"})

	select {
	case <-first:
		t.Error("unsubscribed handler was called")
	default:
	}
}

func TestConfigWatcher_Stop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.toml")
	writeTargets(t, path, `targets = []`)

	var loads atomic.Int32
	w := NewConfigWatcher(path, func(p string) ([]string, error) {
		loads.Add(1)
		return LoadTargets(p)
	}, newTestLogger(), WithDebounce[[]string](20*time.Millisecond))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	writeTargets(t, path, `targets = ["late"]`)
	time.Sleep(100 * time.Millisecond)
	if n := loads.Load(); n != 0 {
		t.Errorf("loader called %d times after Stop", n)
	}
}

func TestConfigWatcher_StartMissingDirectory(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "nope", "targets.toml"), LoadTargets, newTestLogger())
	if err := w.Start(); err == nil {
		_ = w.Stop()
		t.Fatal("Start() on a missing directory should fail")
	}
}

func TestLoadTargets(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "targets.toml")
	writeTargets(t, path, `targets = [" alice ", "bob", "", "alice", "carol"]`)
	got, err := LoadTargets(path)
	if err != nil {
		t.Fatalf("LoadTargets() error = %v", err)
	}
	if want := []string{"alice", "bob", "carol"}; !slices.Equal(got, want) {
		t.Errorf("LoadTargets() = %v, want %v", got, want)
	}

	empty := filepath.Join(dir, "empty.toml")
	writeTargets(t, empty, "")
	got, err = LoadTargets(empty)
	if err != nil || len(got) != 0 {
		t.Errorf("LoadTargets(empty) = %v, %v; want empty list", got, err)
	}

	if _, err := LoadTargets(filepath.Join(dir, "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadTargets(missing) error = %v, want ErrNotExist", err)
	}

	bad := filepath.Join(dir, "bad.toml")
	writeTargets(t, bad, `targets = "alice"`)
	if _, err := LoadTargets(bad); err == nil {
		t.Error("LoadTargets() accepted a non-array targets value")
	}
}
