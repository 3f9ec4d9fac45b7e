package supervisor

import (
	"time"

	"github.com/smazurov/streamrec/internal/output"
)

// State is the lifecycle phase of a supervisor.
type State string

// Supervisor states.
const (
	StateIdle      State = "idle"      // no subprocess, no pending launch
	StateScheduled State = "scheduled" // launch delay pending
	StateRunning   State = "running"   // subprocess alive, output monitored
	StateStopping  State = "stopping"  // kill in progress
)

// Condition says whether, and when, a target may be launched again.
type Condition string

// Restart conditions.
const (
	ConditionNeverStarted    Condition = "never_started"
	ConditionHealthy         Condition = "healthy"
	ConditionAwaitingRestart Condition = "awaiting_restart"
	ConditionInvalid         Condition = "invalid"
)

// Eligibility is the restart condition plus, for awaiting_restart, the
// earliest restart time. A zero At means immediately.
type Eligibility struct {
	Condition Condition `json:"condition"`
	At        time.Time `json:"at"`
}

func neverStarted() Eligibility { return Eligibility{Condition: ConditionNeverStarted} }

func healthy() Eligibility { return Eligibility{Condition: ConditionHealthy} }

func invalid() Eligibility { return Eligibility{Condition: ConditionInvalid} }

func awaitingRestart(at time.Time) Eligibility {
	return Eligibility{Condition: ConditionAwaitingRestart, At: at}
}

// RestartRequired is true for every condition except healthy.
func (e Eligibility) RestartRequired() bool {
	return e.Condition != ConditionHealthy
}

// Invalid reports whether the target was found not to exist.
func (e Eligibility) Invalid() bool {
	return e.Condition == ConditionInvalid
}

// ReadyAt reports whether a restart is allowed at now. Invalid targets are
// never ready.
func (e Eligibility) ReadyAt(now time.Time) bool {
	switch e.Condition {
	case ConditionNeverStarted:
		return true
	case ConditionAwaitingRestart:
		return e.At.IsZero() || !now.Before(e.At)
	default:
		return false
	}
}

// Info is a point-in-time snapshot of a supervisor.
type Info struct {
	Target      string
	State       State
	Eligibility Eligibility
	PID         int
	StartedAt   time.Time
	Launches    uint64
	OutputPath  string
	LastSignal  output.Signal
	LastError   error
}
