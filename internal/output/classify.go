// Package output interprets lines printed by the capture binary.
package output

import "strings"

// Markers printed by the capture binary. Matching is exact and case-sensitive.
const (
	// TerminatedMarker is the whole line printed when a live stream ends.
	TerminatedMarker = "[cli][info] Stream ended"
	// InvalidTargetMarker appears anywhere in the line when the source does not exist.
	InvalidTargetMarker = "(404 Client Error: NOT FOUND)"
	// OfflineMarker prefixes the line printed when the source exists but is not live.
	OfflineMarker = "error: No streams found on this URL: "
)

// Signal is the meaning of one line of capture output.
type Signal int

// Signals, in no particular order.
const (
	SignalNone Signal = iota
	SignalUnrecognized
	SignalTerminated
	SignalInvalidTarget
	SignalOffline
)

// String returns the snake_case name used in logs, events and metric labels.
func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalUnrecognized:
		return "unrecognized"
	case SignalTerminated:
		return "terminated"
	case SignalInvalidTarget:
		return "invalid_target"
	case SignalOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Terminal reports whether the signal ends the capture process.
func (s Signal) Terminal() bool {
	return s == SignalTerminated || s == SignalInvalidTarget || s == SignalOffline
}

// Classify maps a single output line to a Signal. Blank lines yield
// SignalNone. If a line satisfies more than one marker, terminated wins over
// invalid target, which wins over offline.
func Classify(line string) Signal {
	if strings.TrimSpace(line) == "" {
		return SignalNone
	}

	switch {
	case line == TerminatedMarker:
		return SignalTerminated
	case strings.Contains(line, InvalidTargetMarker):
		return SignalInvalidTarget
	case strings.HasPrefix(line, OfflineMarker):
		return SignalOffline
	default:
		return SignalUnrecognized
	}
}
