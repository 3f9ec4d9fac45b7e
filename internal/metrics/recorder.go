package metrics

import (
	"log/slog"

	"github.com/smazurov/streamrec/internal/events"
)

// Recorder keeps the supervisor metrics in step with bus events.
type Recorder struct {
	eventBus     *events.Bus
	logger       *slog.Logger
	unsubscribes []func()
}

// NewRecorder creates a recorder for eventBus. Call Start to subscribe.
func NewRecorder(eventBus *events.Bus, logger *slog.Logger) *Recorder {
	return &Recorder{
		eventBus: eventBus,
		logger:   logger,
	}
}

// Start subscribes to target events.
func (r *Recorder) Start() {
	r.unsubscribes = []func(){
		r.eventBus.Subscribe(r.handleStateChanged),
		r.eventBus.Subscribe(func(e events.TargetSignalEvent) {
			IncTargetSignal(e.Target, e.Signal)
		}),
		r.eventBus.Subscribe(func(e events.TargetRemovedEvent) {
			DeleteTarget(e.Target)
			r.logger.Debug("Dropped metrics for removed target", "target", e.Target)
		}),
	}
	r.logger.Info("Metrics recorder started")
}

// Stop unsubscribes from the bus.
func (r *Recorder) Stop() {
	for _, unsub := range r.unsubscribes {
		unsub()
	}
	r.unsubscribes = nil
	r.logger.Info("Metrics recorder stopped")
}

func (r *Recorder) handleStateChanged(e events.TargetStateChangedEvent) {
	SetTargetActive(e.Target, e.Active)
	switch {
	case e.Active:
		IncTargetStarts(e.Target)
	case e.Error != "":
		IncTargetSpawnFailures(e.Target)
	default:
		IncTargetStops(e.Target)
	}
}
