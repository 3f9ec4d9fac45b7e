package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/smazurov/streamrec/internal/capture"
	"github.com/smazurov/streamrec/internal/logging"
)

// Options is the daemon configuration - flat structure with toml mapping.
// Struct tags drive CLI flags (humacli), the TOML file and STREAMREC_* env vars.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Targets settings
	TargetsFile string `help:"Target list file, reloaded on change" default:"targets.toml" toml:"targets.file" env:"TARGETS_FILE"`

	// Capture settings
	CaptureBinary         string `help:"Capture program" default:"streamlink" toml:"capture.binary" env:"CAPTURE_BINARY"`
	CaptureExtraArgs      string `help:"Extra arguments placed before the source URL" default:"" toml:"capture.extra_args" env:"CAPTURE_EXTRA_ARGS"`
	CaptureURLTemplate    string `help:"Source URL template, {target} is replaced" default:"{target}" toml:"capture.url_template" env:"CAPTURE_URL_TEMPLATE"`
	CaptureQuality        string `help:"Stream quality argument" default:"best" toml:"capture.quality" env:"CAPTURE_QUALITY"`
	CaptureOutputDir      string `help:"Directory for recordings" default:"." toml:"capture.output_dir" env:"CAPTURE_OUTPUT_DIR"`
	CaptureOutputTemplate string `help:"Recording file name template" default:"{target}-{date}-{time}.{ext}" toml:"capture.output_template" env:"CAPTURE_OUTPUT_TEMPLATE"`
	CaptureExtension      string `help:"Recording file extension" default:"flv" toml:"capture.extension" env:"CAPTURE_EXTENSION"`

	// Launch settings
	LaunchMinDelayMs int `help:"Minimum launch delay in milliseconds" default:"500" toml:"launch.min_delay_ms" env:"LAUNCH_MIN_DELAY_MS"`
	LaunchMaxDelayMs int `help:"Maximum launch delay in milliseconds" default:"30000" toml:"launch.max_delay_ms" env:"LAUNCH_MAX_DELAY_MS"`
	LaunchRatePerMin int `help:"Global launch rate limit per minute (0 = unlimited)" default:"0" toml:"launch.rate_per_min" env:"LAUNCH_RATE_PER_MIN"`
	LaunchBurst      int `help:"Launches allowed back to back under the rate limit" default:"1" toml:"launch.burst" env:"LAUNCH_BURST"`

	// Restart settings
	RestartDelayMs         int `help:"Delay before restarting an offline target in milliseconds" default:"30000" toml:"restart.delay_ms" env:"RESTART_DELAY_MS"`
	RestartSweepIntervalMs int `help:"Restart sweep interval in milliseconds" default:"5000" toml:"restart.sweep_interval_ms" env:"RESTART_SWEEP_INTERVAL_MS"`

	// Process settings
	ProcessKillTimeoutMs int `help:"Wait for a killed capture process in milliseconds" default:"5000" toml:"process.kill_timeout_ms" env:"PROCESS_KILL_TIMEOUT_MS"`

	// Metrics settings
	MetricsEnabled bool `help:"Expose Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingCapture    string `help:"Capture output logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingRegistry   string `help:"Registry logging level" default:"info" toml:"logging.registry" env:"LOGGING_REGISTRY"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

// Validate reports every invalid setting at once.
func (o *Options) Validate() error {
	var errs []error

	if o.LaunchMinDelayMs < 0 || o.LaunchMaxDelayMs < 0 {
		errs = append(errs, errors.New("launch delays must not be negative"))
	} else if o.LaunchMaxDelayMs < o.LaunchMinDelayMs {
		errs = append(errs, fmt.Errorf("launch.max_delay_ms (%d) is less than launch.min_delay_ms (%d)",
			o.LaunchMaxDelayMs, o.LaunchMinDelayMs))
	}
	if o.LaunchRatePerMin < 0 {
		errs = append(errs, errors.New("launch.rate_per_min must not be negative"))
	}
	if o.LaunchRatePerMin > 0 && o.LaunchBurst < 1 {
		errs = append(errs, errors.New("launch.burst must be at least 1"))
	}
	if o.RestartDelayMs <= 0 {
		errs = append(errs, errors.New("restart.delay_ms must be positive"))
	}
	if o.RestartSweepIntervalMs <= 0 {
		errs = append(errs, errors.New("restart.sweep_interval_ms must be positive"))
	}
	if o.ProcessKillTimeoutMs <= 0 {
		errs = append(errs, errors.New("process.kill_timeout_ms must be positive"))
	}

	if spec, err := o.CaptureSpec(); err != nil {
		errs = append(errs, err)
	} else if err := spec.WithDefaults().Validate(); err != nil {
		errs = append(errs, err)
	}

	if o.LoggingFormat != "text" && o.LoggingFormat != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", o.LoggingFormat))
	}
	if !logging.ValidLevel(o.LoggingLevel) {
		errs = append(errs, fmt.Errorf("logging.level %q is not a log level", o.LoggingLevel))
	}
	for module, level := range o.moduleLevels() {
		if level != "" && !logging.ValidLevel(level) {
			errs = append(errs, fmt.Errorf("logging.%s %q is not a log level", module, level))
		}
	}

	return errors.Join(errs...)
}

// CaptureSpec converts the capture settings.
func (o *Options) CaptureSpec() (capture.Spec, error) {
	extra, err := capture.SplitArgs(o.CaptureExtraArgs)
	if err != nil {
		return capture.Spec{}, fmt.Errorf("capture.extra_args: %w", err)
	}
	return capture.Spec{
		Binary:         o.CaptureBinary,
		ExtraArgs:      extra,
		URLTemplate:    o.CaptureURLTemplate,
		Quality:        o.CaptureQuality,
		OutputDir:      o.CaptureOutputDir,
		OutputTemplate: o.CaptureOutputTemplate,
		Extension:      o.CaptureExtension,
	}, nil
}

// LaunchDelays returns the launch delay window.
func (o *Options) LaunchDelays() (minDelay, maxDelay time.Duration) {
	return millis(o.LaunchMinDelayMs), millis(o.LaunchMaxDelayMs)
}

// LaunchRatePerSecond returns the gate rate; zero disables the gate.
func (o *Options) LaunchRatePerSecond() float64 {
	return float64(o.LaunchRatePerMin) / 60
}

// RestartDelay returns the delay applied after offline signals and crashes.
func (o *Options) RestartDelay() time.Duration {
	return millis(o.RestartDelayMs)
}

// SweepInterval returns the period of the restart sweep.
func (o *Options) SweepInterval() time.Duration {
	return millis(o.RestartSweepIntervalMs)
}

// KillTimeout returns how long to wait for a killed process.
func (o *Options) KillTimeout() time.Duration {
	return millis(o.ProcessKillTimeoutMs)
}

// LoggingConfig returns the logging setup with per-module levels.
func (o *Options) LoggingConfig() logging.Config {
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Modules: o.moduleLevels(),
	}
}

func (o *Options) moduleLevels() map[string]string {
	return map[string]string{
		"supervisor": o.LoggingSupervisor,
		"capture":    o.LoggingCapture,
		"registry":   o.LoggingRegistry,
		"api":        o.LoggingAPI,
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
