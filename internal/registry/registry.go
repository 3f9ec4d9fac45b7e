// Package registry keeps the set of supervised targets and restarts the ones
// whose supervisors report they are eligible.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/streamrec/internal/events"
	"github.com/smazurov/streamrec/internal/launch"
	"github.com/smazurov/streamrec/internal/logging"
	"github.com/smazurov/streamrec/internal/output"
	"github.com/smazurov/streamrec/internal/supervisor"
)

// Registry errors.
var (
	ErrTargetExists      = errors.New("target already exists")
	ErrTargetNotFound    = errors.New("target not found")
	ErrTargetInvalid     = errors.New("target was reported as invalid")
	ErrInvalidTargetName = errors.New("invalid target name")
)

const maxTargetNameLength = 128

// Status is a snapshot of one target.
type Status struct {
	Target     string
	State      supervisor.State
	Active     bool
	Condition  supervisor.Condition
	RestartAt  time.Time
	PID        int
	StartedAt  time.Time
	Launches   uint64
	OutputPath string
	LastSignal string
	LastError  string
}

// Registry owns one supervisor per target.
type Registry struct {
	opts   Options
	logger *slog.Logger

	mu          sync.RWMutex
	supervisors map[string]*supervisor.Supervisor

	activeMu sync.Mutex
	active   map[string]bool
}

// New creates an empty registry.
func New(opts Options) *Registry {
	if opts.Builder == nil {
		panic("registry: Options.Builder is required")
	}
	if opts.Scheduler == nil {
		opts.Scheduler = launch.DefaultScheduler()
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("registry")
	}

	return &Registry{
		opts:        opts,
		logger:      opts.Logger,
		supervisors: make(map[string]*supervisor.Supervisor),
		active:      make(map[string]bool),
	}
}

// ValidateName rejects names that cannot safely appear in a URL or a file
// name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidTargetName)
	case len(name) > maxTargetNameLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidTargetName, maxTargetNameLength)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidTargetName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidTargetName, name)
	case strings.IndexFunc(name, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0:
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidTargetName, name)
	}
	return nil
}

// Add registers target and schedules its first launch.
func (r *Registry) Add(target string) error {
	if err := ValidateName(target); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.supervisors[target]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTargetExists, target)
	}
	sup := supervisor.New(target, supervisor.Options{
		Builder:      r.opts.Builder,
		Scheduler:    r.opts.Scheduler,
		Gate:         r.opts.Gate,
		RestartDelay: r.opts.RestartDelay,
		KillTimeout:  r.opts.KillTimeout,
		Notifier:     r,
		OnSignal:     r.onSignal,
	})
	r.supervisors[target] = sup
	r.mu.Unlock()

	r.logger.Info("Target added", "target", target)
	r.publish(events.TargetAddedEvent{Target: target, Timestamp: timestamp()})

	// A failed first start leaves the target never_started; the sweep retries.
	if err := sup.Start(); err != nil && !errors.Is(err, supervisor.ErrClosed) {
		r.logger.Warn("Initial start failed", "target", target, "error", err)
	}
	return nil
}

// Remove terminates the target's capture and forgets it.
func (r *Registry) Remove(target string) error {
	r.mu.Lock()
	sup, exists := r.supervisors[target]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTargetNotFound, target)
	}
	delete(r.supervisors, target)
	r.mu.Unlock()

	// Closed supervisors refuse Start, including from a sweep holding a snapshot.
	sup.Close()
	r.opts.Builder.Forget(target)

	r.activeMu.Lock()
	delete(r.active, target)
	r.activeMu.Unlock()

	r.logger.Info("Target removed", "target", target)
	r.publish(events.TargetRemovedEvent{Target: target, Timestamp: timestamp()})
	return nil
}

// Start requests a launch for target. Targets reported invalid are refused.
func (r *Registry) Start(target string) error {
	sup, err := r.get(target)
	if err != nil {
		return err
	}
	if sup.InvalidTargetDetected() {
		return fmt.Errorf("%w: %s", ErrTargetInvalid, target)
	}
	if err := sup.Start(); err != nil {
		if errors.Is(err, supervisor.ErrClosed) {
			return fmt.Errorf("%w: %s", ErrTargetNotFound, target)
		}
		return err
	}
	return nil
}

// Status returns a snapshot of target.
func (r *Registry) Status(target string) (Status, error) {
	sup, err := r.get(target)
	if err != nil {
		return Status{}, err
	}
	return r.status(sup), nil
}

// List returns all targets sorted by name.
func (r *Registry) List() []Status {
	sups := r.snapshot()
	result := make([]Status, 0, len(sups))
	for _, sup := range sups {
		result = append(result, r.status(sup))
	}
	slices.SortFunc(result, func(a, b Status) int { return strings.Compare(a.Target, b.Target) })
	return result
}

// Targets returns the registered target names, sorted.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.supervisors))
	for name := range r.supervisors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Sync makes the registered set equal to targets. Invalid names are skipped
// and reported in the returned error.
func (r *Registry) Sync(targets []string) error {
	want := make(map[string]struct{}, len(targets))
	var errs []error
	for _, target := range targets {
		if err := ValidateName(target); err != nil {
			errs = append(errs, err)
			continue
		}
		want[target] = struct{}{}
	}

	var added, removed int
	for _, target := range r.Targets() {
		if _, ok := want[target]; ok {
			delete(want, target)
			continue
		}
		if err := r.Remove(target); err == nil {
			removed++
		}
	}
	for target := range want {
		if err := r.Add(target); err != nil {
			if !errors.Is(err, ErrTargetExists) {
				errs = append(errs, err)
			}
			continue
		}
		added++
	}

	r.logger.Info("Targets synchronized", "added", added, "removed", removed, "total", len(r.Targets()))
	return errors.Join(errs...)
}

// Sweep starts every supervisor eligible for restart at now and returns how
// many were started.
func (r *Registry) Sweep(now time.Time) int {
	started := 0
	for _, sup := range r.snapshot() {
		if !sup.EligibleForRestart(now) {
			continue
		}
		if err := sup.Start(); err != nil {
			if !errors.Is(err, supervisor.ErrClosed) {
				r.logger.Warn("Restart failed", "target", sup.Target(), "error", err)
			}
			continue
		}
		r.logger.Debug("Restart scheduled", "target", sup.Target())
		started++
	}
	return started
}

// Run sweeps every SweepInterval until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()

	r.logger.Info("Restart sweep started", "interval", r.opts.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Restart sweep stopped")
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.logger.Info("Restarted targets", "count", n)
			}
		}
	}
}

// StopAll terminates every supervisor in parallel. It returns ctx.Err() if
// ctx ends first; termination continues in the background.
func (r *Registry) StopAll(ctx context.Context) error {
	sups := r.snapshot()
	r.logger.Info("Stopping all captures", "count", len(sups))

	var g errgroup.Group
	for _, sup := range sups {
		g.Go(func() error {
			sup.Terminate()
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		r.logger.Info("All captures stopped")
		return err
	case <-ctx.Done():
		return fmt.Errorf("stop all captures: %w", ctx.Err())
	}
}

// TargetStateChanged implements supervisor.Notifier.
func (r *Registry) TargetStateChanged(target string, active bool, err error) {
	r.activeMu.Lock()
	r.active[target] = active
	r.activeMu.Unlock()

	ev := events.TargetStateChangedEvent{
		Target:    target,
		Active:    active,
		Timestamp: timestamp(),
	}
	if err != nil {
		ev.Error = err.Error()
		r.logger.Warn("Target launch failed", "target", target, "error", err)
	} else {
		r.logger.Info("Target state changed", "target", target, "active", active)
	}
	r.publish(ev)
}

func (r *Registry) onSignal(target string, sig output.Signal) {
	r.publish(events.TargetSignalEvent{
		Target:    target,
		Signal:    sig.String(),
		Timestamp: timestamp(),
	})
}

func (r *Registry) get(target string) (*supervisor.Supervisor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sup, exists := r.supervisors[target]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, target)
	}
	return sup, nil
}

func (r *Registry) snapshot() []*supervisor.Supervisor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sups := make([]*supervisor.Supervisor, 0, len(r.supervisors))
	for _, sup := range r.supervisors {
		sups = append(sups, sup)
	}
	return sups
}

func (r *Registry) status(sup *supervisor.Supervisor) Status {
	info := sup.Info()

	r.activeMu.Lock()
	active := r.active[info.Target]
	r.activeMu.Unlock()

	st := Status{
		Target:     info.Target,
		State:      info.State,
		Active:     active,
		Condition:  info.Eligibility.Condition,
		RestartAt:  info.Eligibility.At,
		PID:        info.PID,
		StartedAt:  info.StartedAt,
		Launches:   info.Launches,
		OutputPath: info.OutputPath,
	}
	if info.LastSignal != output.SignalNone {
		st.LastSignal = info.LastSignal.String()
	}
	if info.LastError != nil {
		st.LastError = info.LastError.Error()
	}
	return st
}

func (r *Registry) publish(ev events.Event) {
	if r.opts.EventBus != nil {
		r.opts.EventBus.Publish(ev)
	}
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
