// Package metrics provides Prometheus metrics for capture supervisors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	targetActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "streamrec",
		Subsystem: "supervisor",
		Name:      "active",
		Help:      "Whether a capture process is running for the target (1) or not (0)",
	}, []string{"target"})

	targetStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamrec",
		Subsystem: "supervisor",
		Name:      "starts_total",
		Help:      "Capture processes started",
	}, []string{"target"})

	targetStops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamrec",
		Subsystem: "supervisor",
		Name:      "stops_total",
		Help:      "Capture processes stopped for any reason",
	}, []string{"target"})

	targetSpawnFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamrec",
		Subsystem: "supervisor",
		Name:      "spawn_failures_total",
		Help:      "Launches that failed to start a process",
	}, []string{"target"})

	targetSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamrec",
		Subsystem: "supervisor",
		Name:      "signals_total",
		Help:      "Terminal output signals observed, by kind",
	}, []string{"target", "signal"})

	// Local cache for the status API.
	targetCache   = make(map[string]*TargetMetrics)
	targetCacheMu sync.RWMutex
)

// TargetMetrics holds current metric values for a target.
type TargetMetrics struct {
	Active        bool
	Starts        uint64
	Stops         uint64
	SpawnFailures uint64
	Signals       uint64
}

// SetTargetActive sets the active gauge for a target.
func SetTargetActive(target string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	targetActive.WithLabelValues(target).Set(v)
	updateCache(target, func(m *TargetMetrics) { m.Active = active })
}

// IncTargetStarts counts a started capture process.
func IncTargetStarts(target string) {
	targetStarts.WithLabelValues(target).Inc()
	updateCache(target, func(m *TargetMetrics) { m.Starts++ })
}

// IncTargetStops counts a stopped capture process.
func IncTargetStops(target string) {
	targetStops.WithLabelValues(target).Inc()
	updateCache(target, func(m *TargetMetrics) { m.Stops++ })
}

// IncTargetSpawnFailures counts a launch whose process could not be started.
func IncTargetSpawnFailures(target string) {
	targetSpawnFailures.WithLabelValues(target).Inc()
	updateCache(target, func(m *TargetMetrics) { m.SpawnFailures++ })
}

// IncTargetSignal counts a terminal output signal.
func IncTargetSignal(target, signal string) {
	targetSignals.WithLabelValues(target, signal).Inc()
	updateCache(target, func(m *TargetMetrics) { m.Signals++ })
}

// DeleteTarget removes all series for a target.
func DeleteTarget(target string) {
	labels := prometheus.Labels{"target": target}
	targetActive.DeletePartialMatch(labels)
	targetStarts.DeletePartialMatch(labels)
	targetStops.DeletePartialMatch(labels)
	targetSpawnFailures.DeletePartialMatch(labels)
	targetSignals.DeletePartialMatch(labels)

	targetCacheMu.Lock()
	delete(targetCache, target)
	targetCacheMu.Unlock()
}

// GetTargetMetrics returns current metric values for a target, or nil.
func GetTargetMetrics(target string) *TargetMetrics {
	targetCacheMu.RLock()
	defer targetCacheMu.RUnlock()
	if m, ok := targetCache[target]; ok {
		dup := *m
		return &dup
	}
	return nil
}

func updateCache(target string, update func(*TargetMetrics)) {
	targetCacheMu.Lock()
	defer targetCacheMu.Unlock()
	m, ok := targetCache[target]
	if !ok {
		m = &TargetMetrics{}
		targetCache[target] = m
	}
	update(m)
}
