package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
	Targets int    `json:"targets" example:"3" doc:"Number of supervised targets"`
	Active  int    `json:"active" example:"2" doc:"Number of targets currently recording"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Target models
type TargetMetricsData struct {
	Starts        uint64 `json:"starts" example:"4" doc:"Capture processes started"`
	Stops         uint64 `json:"stops" example:"3" doc:"Capture processes stopped"`
	SpawnFailures uint64 `json:"spawn_failures" example:"0" doc:"Launches that failed to spawn"`
	Signals       uint64 `json:"signals" example:"3" doc:"Terminal output signals observed"`
}

type TargetData struct {
	Target     string             `json:"target" example:"alice" doc:"Target name"`
	State      string             `json:"state" example:"running" enum:"idle,scheduled,running,stopping" doc:"Supervisor state"`
	Active     bool               `json:"active" doc:"Whether a capture process is running"`
	Condition  string             `json:"condition" example:"healthy" enum:"never_started,healthy,awaiting_restart,invalid" doc:"Restart eligibility"`
	RestartAt  *time.Time         `json:"restart_at,omitempty" doc:"Earliest automatic restart, when delayed"`
	PID        int                `json:"pid,omitempty" example:"4242" doc:"Capture process id"`
	StartedAt  *time.Time         `json:"started_at,omitempty" doc:"When the last capture process started"`
	Launches   uint64             `json:"launches" example:"5" doc:"Launch attempts so far"`
	OutputPath string             `json:"output_path,omitempty" example:"recordings/alice-270125-103000.flv" doc:"Recording file of the last launch"`
	LastSignal string             `json:"last_signal,omitempty" example:"offline" doc:"Last terminal output signal"`
	LastError  string             `json:"last_error,omitempty" doc:"Spawn error of the last launch"`
	Metrics    *TargetMetricsData `json:"metrics,omitempty" doc:"Lifetime counters, when metrics are enabled"`
}

type TargetListData struct {
	Targets []TargetData `json:"targets" doc:"Supervised targets, sorted by name"`
	Count   int          `json:"count" example:"2" doc:"Number of targets"`
}

type TargetListResponse struct {
	Body TargetListData
}

type TargetResponse struct {
	Body TargetData
}

type TargetPath struct {
	Target string `path:"target" example:"alice" doc:"Target name"`
}

// Logging models
type LogLevelRequest struct {
	Module string `path:"module" example:"supervisor" doc:"Logger module name"`
	Body   struct {
		Level string `json:"level" example:"debug" enum:"debug,info,warn,warning,error" doc:"New log level"`
	}
}

type LogLevelData struct {
	Module string `json:"module" example:"supervisor" doc:"Logger module name"`
	Level  string `json:"level" example:"debug" doc:"Applied log level"`
}

type LogLevelResponse struct {
	Body LogLevelData
}

// Event stream models
type ConnectedEvent struct {
	Message   string `json:"message" example:"event stream connected" doc:"Connection confirmation"`
	Timestamp string `json:"timestamp" example:"2025-01-01T12:00:00Z" doc:"Server time in RFC3339"`
}
