package metrics

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smazurov/streamrec/internal/events"
)

func waitForValue(t *testing.T, name string, get func() float64, want float64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if get() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s = %v, want %v", name, get(), want)
}

func TestRecorderFollowsBus(t *testing.T) {
	target := "recorder-target"
	DeleteTarget(target)
	defer DeleteTarget(target)

	bus := events.New()
	r := NewRecorder(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Start()
	defer r.Stop()

	bus.Publish(events.TargetStateChangedEvent{Target: target, Active: true})
	waitForValue(t, "starts_total", func() float64 {
		return testutil.ToFloat64(targetStarts.WithLabelValues(target))
	}, 1)
	waitForValue(t, "active", func() float64 {
		return testutil.ToFloat64(targetActive.WithLabelValues(target))
	}, 1)

	bus.Publish(events.TargetSignalEvent{Target: target, Signal: "offline"})
	bus.Publish(events.TargetStateChangedEvent{Target: target, Active: false})
	waitForValue(t, "stops_total", func() float64 {
		return testutil.ToFloat64(targetStops.WithLabelValues(target))
	}, 1)
	waitForValue(t, "signals_total", func() float64 {
		return testutil.ToFloat64(targetSignals.WithLabelValues(target, "offline"))
	}, 1)

	bus.Publish(events.TargetStateChangedEvent{Target: target, Active: false, Error: "spawn streamlink: not found"})
	waitForValue(t, "spawn_failures_total", func() float64 {
		return testutil.ToFloat64(targetSpawnFailures.WithLabelValues(target))
	}, 1)
	if got := testutil.ToFloat64(targetStops.WithLabelValues(target)); got != 1 {
		t.Errorf("spawn failure counted as stop: stops_total = %v", got)
	}
}

func TestRecorderDropsRemovedTarget(t *testing.T) {
	target := "recorder-removed"
	IncTargetStarts(target)

	bus := events.New()
	r := NewRecorder(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.Start()
	defer r.Stop()

	bus.Publish(events.TargetRemovedEvent{Target: target})

	deadline := time.Now().Add(2 * time.Second)
	for GetTargetMetrics(target) != nil {
		if time.Now().After(deadline) {
			t.Fatal("metrics cache still holds removed target")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
