package main

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/streamrec/internal/config"
)

func testOptions(t *testing.T) *config.Options {
	t.Helper()
	dir := t.TempDir()
	opts := &config.Options{}
	if err := config.ApplyDefaults(opts); err != nil {
		t.Fatalf("ApplyDefaults failed: %v", err)
	}
	opts.Port = "127.0.0.1:0"
	opts.TargetsFile = filepath.Join(dir, "targets.toml")
	opts.CaptureBinary = "sh"
	opts.CaptureExtraArgs = "-c 'sleep 10' capture"
	opts.CaptureOutputDir = filepath.Join(dir, "recordings")
	opts.LaunchMinDelayMs = 0
	opts.LaunchMaxDelayMs = 0
	opts.RestartSweepIntervalMs = 20
	opts.ProcessKillTimeoutMs = 1000
	return opts
}

func writeTargets(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write targets: %v", err)
	}
}

func waitActive(t *testing.T, d *daemon, target string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st, err := d.registry.Status(target); err == nil && st.Active {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("target %s never became active", target)
}

func TestNewDaemonRejectsInvalidConfig(t *testing.T) {
	opts := testOptions(t)
	opts.LaunchMinDelayMs = 1000
	opts.LaunchMaxDelayMs = 10

	if _, err := newDaemon(opts); err == nil {
		t.Error("expected error when max delay is below min delay")
	}
}

func TestDaemonStartsTargetsAndStops(t *testing.T) {
	opts := testOptions(t)
	writeTargets(t, opts.TargetsFile, `targets = ["alice"]`)

	d, err := newDaemon(opts)
	if err != nil {
		t.Fatalf("newDaemon failed: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- d.start() }()

	waitActive(t, d, "alice")

	// Reload picks up the new list
	writeTargets(t, opts.TargetsFile, `targets = ["alice", "bob"]`)
	waitActive(t, d, "bob")

	d.stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("start returned %v after stop", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("start did not return after stop")
	}

	for _, st := range d.registry.List() {
		if st.Active {
			t.Errorf("target %s still active after stop", st.Target)
		}
	}
}

func TestDaemonWithoutTargetsFile(t *testing.T) {
	opts := testOptions(t)
	opts.MetricsEnabled = false

	d, err := newDaemon(opts)
	if err != nil {
		t.Fatalf("newDaemon failed: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- d.start() }()

	// The file appearing later is picked up by the watcher
	time.Sleep(100 * time.Millisecond)
	writeTargets(t, opts.TargetsFile, `targets = ["carol"]`)
	waitActive(t, d, "carol")

	d.stop()
	if err := <-errCh; err != nil {
		t.Errorf("start returned %v after stop", err)
	}
}

func TestDaemonBindFailureLaunchesNothing(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to occupy a port: %v", err)
	}
	defer busy.Close()

	opts := testOptions(t)
	opts.MetricsEnabled = false
	opts.Port = busy.Addr().String()
	writeTargets(t, opts.TargetsFile, `targets = ["alice", "bob"]`)

	d, err := newDaemon(opts)
	if err != nil {
		t.Fatalf("newDaemon failed: %v", err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- d.start() }()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("start succeeded on a port already in use")
		}
	case <-time.After(5 * time.Second):
		d.stop()
		t.Fatal("start did not fail on a port already in use")
	}

	if list := d.registry.List(); len(list) != 0 {
		t.Errorf("targets registered after bind failure: %+v", list)
	}
	d.stop()
}
