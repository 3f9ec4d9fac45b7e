// Package supervisor runs one capture process per target and decides, from
// the process output, whether and when it may be restarted.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/smazurov/streamrec/internal/capture"
	"github.com/smazurov/streamrec/internal/launch"
	"github.com/smazurov/streamrec/internal/logging"
	"github.com/smazurov/streamrec/internal/output"
	"github.com/smazurov/streamrec/internal/process"
)

// DefaultRestartDelay is how long an offline target waits before it may be
// launched again.
const DefaultRestartDelay = 30 * time.Second

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("supervisor closed")

// Notifier is told whenever a supervisor's capture becomes active or inactive.
// err is non-nil only when a launch failed to spawn. It is called from the
// supervisor's goroutine: implementations must not block and must not call
// Terminate synchronously.
type Notifier interface {
	TargetStateChanged(target string, active bool, err error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(target string, active bool, err error)

// TargetStateChanged implements Notifier.
func (f NotifierFunc) TargetStateChanged(target string, active bool, err error) {
	f(target, active, err)
}

// Options configures a Supervisor.
type Options struct {
	// Builder renders the capture command (required).
	Builder *capture.Builder

	// Scheduler draws the launch delay. Defaults to 500ms..30s.
	Scheduler *launch.Scheduler

	// Gate limits the global spawn rate (optional).
	Gate *launch.Gate

	// RestartDelay applies after an offline signal or an unexpected exit.
	RestartDelay time.Duration

	// KillTimeout bounds the wait for a killed process to exit.
	KillTimeout time.Duration

	// Notifier receives active/inactive transitions (optional).
	Notifier Notifier

	// OnSignal is called with every terminal signal observed (optional).
	OnSignal func(target string, sig output.Signal)

	// Logger for lifecycle events. Defaults to the "supervisor" module logger.
	Logger *slog.Logger

	// OutputLogger receives unrecognized capture output at debug level.
	// Defaults to the "capture" module logger.
	OutputLogger *slog.Logger

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Supervisor owns the capture process of a single target.
type Supervisor struct {
	target       string
	opts         Options
	logger       *slog.Logger
	outputLogger *slog.Logger

	mu          sync.Mutex
	state       State
	eligibility Eligibility
	cancel      context.CancelFunc
	done        chan struct{} // closed when the current launch goroutine returns
	handle      *process.Handle
	active      bool // reported active and not yet reported inactive
	closed      bool
	launches    uint64
	startedAt   time.Time
	outputPath  string
	lastSignal  output.Signal
	lastErr     error
}

// New creates an idle supervisor for target.
func New(target string, opts Options) *Supervisor {
	if opts.Builder == nil {
		panic("supervisor: Options.Builder is required")
	}
	if opts.Scheduler == nil {
		opts.Scheduler = launch.DefaultScheduler()
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("supervisor")
	}
	if opts.OutputLogger == nil {
		opts.OutputLogger = logging.GetLogger("capture")
	}

	return &Supervisor{
		target:       target,
		opts:         opts,
		logger:       opts.Logger.With("target", target),
		outputLogger: opts.OutputLogger.With("target", target),
		state:        StateIdle,
		eligibility:  neverStarted(),
	}
}

// Target returns the supervised target name.
func (s *Supervisor) Target() string {
	return s.target
}

// Start schedules a launch after a randomized delay. It does nothing unless
// the supervisor is idle. The invalid flag does not prevent a start; callers
// decide whether to honor it.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != StateIdle {
		return nil
	}

	cmd := s.opts.Builder.Build(s.target, s.opts.Now(), s.launches+1)
	if err := os.MkdirAll(filepath.Dir(cmd.OutputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory for %s: %w", s.target, err)
	}

	delay := s.opts.Scheduler.NextDelay()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.launches++
	s.state = StateScheduled
	s.cancel = cancel
	s.done = done
	s.outputPath = cmd.OutputPath
	s.lastErr = nil

	s.logger.Info("Capture scheduled", "delay", delay, "output", cmd.OutputPath)
	go s.run(ctx, cmd, delay, done)
	return nil
}

// Terminate cancels a pending launch, kills a running capture and returns
// once the supervisor is idle. The target is then healthy, so the sweep
// leaves it alone; an invalid mark is kept. Calling it on an idle
// supervisor does nothing.
func (s *Supervisor) Terminate() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	if !s.eligibility.Invalid() {
		s.eligibility = healthy()
	}
	s.state = StateStopping
	s.cancel()
	h := s.handle
	done := s.done
	s.mu.Unlock()

	if h != nil {
		h.Kill()
	}
	<-done
}

// Close terminates the supervisor for good: later Start calls return
// ErrClosed and EligibleForRestart is always false.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.Terminate()
}

// run is the goroutine of one launch attempt.
func (s *Supervisor) run(ctx context.Context, cmd capture.Command, delay time.Duration, done chan struct{}) {
	defer close(done)
	defer s.finish()

	timer := time.NewTimer(delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		s.logger.Debug("Launch cancelled before spawn")
		return
	case <-timer.C:
	}

	if err := s.opts.Gate.Wait(ctx); err != nil {
		s.logger.Debug("Launch cancelled while waiting for launch gate")
		return
	}

	h := s.spawn(ctx, cmd)
	if h == nil {
		return
	}
	defer h.Kill()

	if err := h.Scan(s.handleLine); err != nil {
		s.logger.Warn("Error reading capture output", "error", err)
	}
	h.Kill()
	s.exited(h)
}

// spawn starts the process unless the launch was cancelled. The lock is held
// across the spawn so Terminate either prevents it or sees the handle.
func (s *Supervisor) spawn(ctx context.Context, cmd capture.Command) *process.Handle {
	s.mu.Lock()
	if s.state != StateScheduled || ctx.Err() != nil {
		s.mu.Unlock()
		return nil
	}

	s.eligibility = healthy()
	h, err := process.Spawn(cmd.Name, cmd.Args, s.logger, process.WithKillTimeout(s.opts.KillTimeout))
	now := s.opts.Now()
	if err != nil {
		s.eligibility = awaitingRestart(time.Time{})
		s.lastErr = err
		s.mu.Unlock()

		s.logger.Error("Failed to start capture", "command", cmd.String(), "error", err)
		s.notify(false, err)
		return nil
	}

	s.handle = h
	s.state = StateRunning
	s.startedAt = now
	s.active = true
	s.mu.Unlock()

	s.logger.Info("Capture started", "pid", h.PID(), "command", cmd.String())
	s.notify(true, nil)
	return h
}

// handleLine reacts to one line of capture output. It runs on the launch
// goroutine, so lines are handled strictly in order.
func (s *Supervisor) handleLine(line string) {
	sig := output.Classify(line)
	if !sig.Terminal() {
		if sig == output.SignalUnrecognized {
			s.outputLogger.Debug(line)
		}
		return
	}

	now := s.opts.Now()

	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	switch sig {
	case output.SignalTerminated:
		s.eligibility = awaitingRestart(time.Time{})
	case output.SignalInvalidTarget:
		s.eligibility = invalid()
	case output.SignalOffline:
		s.eligibility = awaitingRestart(now.Add(s.opts.RestartDelay))
	}
	s.lastSignal = sig
	s.state = StateStopping
	s.active = false
	s.cancel()
	h := s.handle
	eligibility := s.eligibility
	s.mu.Unlock()

	s.logger.Info("Capture stopping on output signal",
		"signal", sig.String(),
		"condition", eligibility.Condition,
		"restart_at", eligibility.At)

	if s.opts.OnSignal != nil {
		s.opts.OnSignal(s.target, sig)
	}
	s.notify(false, nil)
	h.Kill()
}

// exited records a process that ended without a signal or Terminate.
func (s *Supervisor) exited(h *process.Handle) {
	now := s.opts.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}
	s.eligibility = awaitingRestart(now.Add(s.opts.RestartDelay))
	s.logger.Warn("Capture exited unexpectedly",
		"exit_code", h.ExitCode(),
		"restart_at", s.eligibility.At)
}

// finish returns the supervisor to idle once a launch attempt is over.
func (s *Supervisor) finish() {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	s.state = StateIdle
	s.handle = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	if wasActive {
		s.notify(false, nil)
	}
	s.logger.Debug("Supervisor idle")
}

func (s *Supervisor) notify(active bool, err error) {
	if s.opts.Notifier != nil {
		s.opts.Notifier.TargetStateChanged(s.target, active, err)
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning reports whether a launched capture process is alive.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning && s.handle != nil && !s.handle.Exited()
}

// RestartRequired is true before the first start and after any stop caused
// by output, exit or spawn failure.
func (s *Supervisor) RestartRequired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eligibility.RestartRequired()
}

// InvalidTargetDetected reports the sticky invalid-target flag. It is
// cleared only when a later launch actually spawns.
func (s *Supervisor) InvalidTargetDetected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eligibility.Invalid()
}

// NextEligibleRestartTime returns the earliest restart time. ok is false when
// there is no such time, i.e. a restart may happen immediately.
func (s *Supervisor) NextEligibleRestartTime() (at time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eligibility.Condition != ConditionAwaitingRestart || s.eligibility.At.IsZero() {
		return time.Time{}, false
	}
	return s.eligibility.At, true
}

// EligibleForRestart reports whether an automatic restart sweep should call
// Start at now.
func (s *Supervisor) EligibleForRestart(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.state == StateIdle && s.eligibility.ReadyAt(now)
}

// LastError returns the spawn error of the most recent launch, if any.
func (s *Supervisor) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Info returns a snapshot of the supervisor.
func (s *Supervisor) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		Target:      s.target,
		State:       s.state,
		Eligibility: s.eligibility,
		StartedAt:   s.startedAt,
		Launches:    s.launches,
		OutputPath:  s.outputPath,
		LastSignal:  s.lastSignal,
		LastError:   s.lastErr,
	}
	if s.handle != nil {
		info.PID = s.handle.PID()
	}
	return info
}
