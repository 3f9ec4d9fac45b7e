package logging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// SyslogIdentifier tags every journal entry written by this process.
const SyslogIdentifier = "streamrec"

var (
	// ErrUnknownModule is returned for a module no logger was created for.
	ErrUnknownModule = errors.New("unknown logging module")
	// ErrInvalidLevel is returned for a level name parseLevel rejects.
	ErrInvalidLevel = errors.New("invalid log level")
)

// moduleLogger is the cached state behind one GetLogger name.
type moduleLogger struct {
	logger  *slog.Logger
	level   *slog.LevelVar
	handler *swapHandler
}

var (
	modules        = make(map[string]*moduleLogger)
	globalConfig   Config
	globalLevelVar = &slog.LevelVar{}
	isInitialized  bool
	mutex          sync.RWMutex
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Initialize sets up the logging system. Loggers handed out earlier by
// GetLogger keep their identity and pick up the new levels and format.
// Modules named in config.Modules become known even before first use.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true
	globalLevelVar.Set(levelOrDefault(config.Level, slog.LevelInfo))

	for module := range config.Modules {
		if _, exists := modules[module]; !exists {
			modules[module] = newModuleLogger(module, config.Format)
		}
	}
	for module, m := range modules {
		m.level.Set(moduleLevel(config, module))
		m.handler.swap(createHandler(config.Format, m.level))
	}

	slog.SetDefault(slog.New(createHandler(config.Format, globalLevelVar)))
}

// GetLogger returns a logger for the specified module, creating it if needed.
// The same *slog.Logger is returned for a module for the process lifetime.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	if m, exists := modules[module]; exists {
		mutex.RUnlock()
		return m.logger
	}
	mutex.RUnlock()

	mutex.Lock()
	defer mutex.Unlock()

	if m, exists := modules[module]; exists {
		return m.logger
	}
	format := "text"
	if isInitialized {
		format = globalConfig.Format
	}
	m := newModuleLogger(module, format)
	modules[module] = m
	return m.logger
}

// newModuleLogger builds the entry for module. Callers hold mutex.
func newModuleLogger(module, format string) *moduleLogger {
	level := &slog.LevelVar{}
	if isInitialized {
		level.Set(moduleLevel(globalConfig, module))
	} else {
		level.Set(slog.LevelInfo)
	}
	handler := newSwapHandler(createHandler(format, level))
	return &moduleLogger{
		logger:  slog.New(handler).With("module", module),
		level:   level,
		handler: handler,
	}
}

// SetModuleLevel changes the level of an existing module logger at runtime.
// It never creates modules.
func SetModuleLevel(module, level string) error {
	parsed := parseLevel(level)
	if parsed == nil {
		return fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}

	mutex.RLock()
	defer mutex.RUnlock()
	m, exists := modules[module]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}
	m.level.Set(*parsed)
	return nil
}

// moduleLevel resolves the effective level for a module: the module override
// when present and valid, the global level otherwise.
func moduleLevel(config Config, module string) slog.Level {
	level := levelOrDefault(config.Level, slog.LevelInfo)
	if levelStr, exists := config.Modules[module]; exists {
		level = levelOrDefault(levelStr, level)
	}
	return level
}

func levelOrDefault(level string, fallback slog.Level) slog.Level {
	if parsed := parseLevel(level); parsed != nil {
		return *parsed
	}
	return fallback
}

// createHandler creates a slog handler with the specified format and level.
// Logs to stdout and, when available, to the systemd journal.
func createHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdoutHandler slog.Handler
	if format == "json" {
		stdoutHandler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdoutHandler = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdoutHandler)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	switch len(handlers) {
	case 0:
		return stdoutHandler
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable checks if stdout is connected to a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	// /dev/null is a ModeDevice without ModeCharDevice semantics we care about
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	return parseLevel(level) != nil
}
