package process

import (
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// spawnShell starts `sh -c script` with a short kill timeout.
func spawnShell(t *testing.T, script string) *Handle {
	t.Helper()
	h, err := Spawn("sh", []string{"-c", script}, testLogger(), WithKillTimeout(time.Second))
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	return h
}

// scanAsync runs Scan in a goroutine and returns the collected lines.
func scanAsync(h *Handle) <-chan []string {
	out := make(chan []string, 1)
	go func() {
		var lines []string
		_ = h.Scan(func(line string) {
			lines = append(lines, line)
		})
		out <- lines
	}()
	return out
}

func waitLines(t *testing.T, ch <-chan []string, timeout time.Duration) []string {
	t.Helper()
	select {
	case lines := <-ch:
		return lines
	case <-time.After(timeout):
		t.Fatal("timeout waiting for Scan to return")
		return nil
	}
}

func TestScanDeliversLinesInOrder(t *testing.T) {
	h := spawnShell(t, `for i in 1 2 3 4 5; do echo "line $i"; done`)
	defer h.Kill()

	lines := waitLines(t, scanAsync(h), 2*time.Second)

	want := []string{"line 1", "line 2", "line 3", "line 4", "line 5"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines %q, want %q", len(lines), lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestExitCode(t *testing.T) {
	h := spawnShell(t, "exit 42")
	defer h.Kill()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("process did not exit")
	}
	if !h.Exited() {
		t.Error("Exited() = false after Done")
	}
	if code := h.ExitCode(); code != 42 {
		t.Errorf("ExitCode() = %d, want 42", code)
	}
}

func TestExitCodeWhileRunning(t *testing.T) {
	h := spawnShell(t, "sleep 10")
	defer h.Kill()

	if h.Exited() {
		t.Fatal("process exited early")
	}
	if code := h.ExitCode(); code != -1 {
		t.Errorf("ExitCode() = %d, want -1 while running", code)
	}
}

func TestKillStopsProcessAndScan(t *testing.T) {
	h := spawnShell(t, `echo ready; while :; do sleep 0.1; done`)
	lines := scanAsync(h)

	time.Sleep(100 * time.Millisecond)
	start := time.Now()
	h.Kill()

	if !h.Exited() {
		t.Error("process still running after Kill")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Kill took %v", elapsed)
	}
	got := waitLines(t, lines, time.Second)
	if len(got) != 1 || got[0] != "ready" {
		t.Errorf("lines = %q, want [ready]", got)
	}
}

func TestKillTakesDownProcessGroup(t *testing.T) {
	// The background sleep inherits stdout; Scan only sees EOF if it dies too.
	h := spawnShell(t, `sleep 30 & echo started; wait`)
	lines := scanAsync(h)

	time.Sleep(100 * time.Millisecond)
	h.Kill()

	got := waitLines(t, lines, 2*time.Second)
	if len(got) != 1 {
		t.Errorf("lines = %q, want one line", got)
	}
}

func TestKillIdempotent(t *testing.T) {
	h := spawnShell(t, "sleep 10")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Kill()
		}()
	}
	wg.Wait()
	h.Kill()

	if !h.Exited() {
		t.Error("process still running after Kill")
	}
}

func TestKillAfterExit(t *testing.T) {
	h := spawnShell(t, "true")
	<-h.Done()

	h.Kill() // must not panic or log an error for an already reaped process
	if code := h.ExitCode(); code != 0 {
		t.Errorf("ExitCode() = %d, want 0", code)
	}
}

func TestKillFromScanCallback(t *testing.T) {
	h := spawnShell(t, `echo stop; echo never-read-after-kill; sleep 10`)

	done := make(chan error, 1)
	go func() {
		done <- h.Scan(func(line string) {
			if line == "stop" {
				h.Kill()
			}
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Scan() error = %v, want nil after Kill", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Scan did not return after Kill from callback")
	}
	if !h.Exited() {
		t.Error("process still running")
	}
}

func TestSpawnMissingBinary(t *testing.T) {
	h, err := Spawn("/nonexistent/capture/binary", nil, testLogger())
	if err == nil {
		h.Kill()
		t.Fatal("Spawn() should fail for a missing binary")
	}
	if !errors.Is(err, ErrSpawn) {
		t.Errorf("errors.Is(err, ErrSpawn) = false for %v", err)
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("error %T is not a *SpawnError", err)
	}
	if spawnErr.Name != "/nonexistent/capture/binary" {
		t.Errorf("SpawnError.Name = %q", spawnErr.Name)
	}
	if spawnErr.Unwrap() == nil {
		t.Error("SpawnError should wrap the OS error")
	}
}

func TestExitCodeFromError(t *testing.T) {
	if code := exitCodeFromError(nil); code != 0 {
		t.Errorf("exitCodeFromError(nil) = %d, want 0", code)
	}
	if code := exitCodeFromError(errors.New("boom")); code != 1 {
		t.Errorf("exitCodeFromError(generic) = %d, want 1", code)
	}
	err := exec.Command("sh", "-c", "exit 3").Run()
	if code := exitCodeFromError(err); code != 3 {
		t.Errorf("exitCodeFromError(exit 3) = %d, want 3", code)
	}
}
