package registry

import (
	"log/slog"
	"time"

	"github.com/smazurov/streamrec/internal/capture"
	"github.com/smazurov/streamrec/internal/events"
	"github.com/smazurov/streamrec/internal/launch"
)

// DefaultSweepInterval is how often Run looks for targets to restart.
const DefaultSweepInterval = 5 * time.Second

// Options configures a new Registry.
type Options struct {
	// Builder renders capture commands for every target (required).
	Builder *capture.Builder

	// Scheduler draws launch delays. Shared by all supervisors.
	Scheduler *launch.Scheduler

	// Gate limits the global spawn rate (optional).
	Gate *launch.Gate

	// RestartDelay is passed to each supervisor.
	RestartDelay time.Duration

	// KillTimeout is passed to each supervisor.
	KillTimeout time.Duration

	// SweepInterval is the period of Run. Defaults to 5s.
	SweepInterval time.Duration

	// EventBus receives target events (optional).
	EventBus *events.Bus

	// Logger for registry operations. Defaults to the "registry" module logger.
	Logger *slog.Logger
}
