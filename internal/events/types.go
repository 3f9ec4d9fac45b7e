package events

// Event type constants for kelindar/event.
const (
	TypeTargetStateChanged uint32 = iota + 1
	TypeTargetSignal
	TypeTargetAdded
	TypeTargetRemoved
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// TargetStateChangedEvent reports a capture becoming active or inactive.
type TargetStateChangedEvent struct {
	Target    string `json:"target" example:"alice" doc:"Target name"`
	Active    bool   `json:"active" doc:"Whether a capture process is now running"`
	Error     string `json:"error,omitempty" example:"spawn streamlink: executable file not found in $PATH" doc:"Spawn error, if the launch failed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TargetStateChangedEvent.
func (e TargetStateChangedEvent) Type() uint32 { return TypeTargetStateChanged }

// TargetSignalEvent reports a terminal line observed in capture output.
type TargetSignalEvent struct {
	Target    string `json:"target" example:"alice" doc:"Target name"`
	Signal    string `json:"signal" example:"offline" enum:"terminated,invalid_target,offline" doc:"Classified output signal"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TargetSignalEvent.
func (e TargetSignalEvent) Type() uint32 { return TypeTargetSignal }

// TargetAddedEvent reports a target joining the registry.
type TargetAddedEvent struct {
	Target    string `json:"target" example:"alice" doc:"Target name"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TargetAddedEvent.
func (e TargetAddedEvent) Type() uint32 { return TypeTargetAdded }

// TargetRemovedEvent reports a target leaving the registry.
type TargetRemovedEvent struct {
	Target    string `json:"target" example:"alice" doc:"Target name"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TargetRemovedEvent.
func (e TargetRemovedEvent) Type() uint32 { return TypeTargetRemoved }
