package process

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultKillTimeout = 5 * time.Second
	maxLineSize        = 1024 * 1024
)

// ErrSpawn matches every *SpawnError.
var ErrSpawn = errors.New("process spawn failed")

// SpawnError reports that the operating system refused to start a process,
// e.g. because the binary does not exist.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSpawn) true for any SpawnError.
func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawn
}

// Handle is exclusive ownership of one running subprocess.
type Handle struct {
	cmd         *exec.Cmd
	stdout      *os.File
	logger      *slog.Logger
	killTimeout time.Duration

	done    chan struct{}
	waitErr error // valid once done is closed

	killOnce sync.Once
	killed   atomic.Bool
}

// Option configures a Handle.
type Option func(*Handle)

// WithKillTimeout bounds how long Kill waits for the process to exit.
// Default is 5s.
func WithKillTimeout(d time.Duration) Option {
	return func(h *Handle) {
		if d > 0 {
			h.killTimeout = d
		}
	}
}

// Spawn starts name with args. No shell is involved. Standard input and
// standard error are connected to the null device.
func Spawn(name string, args []string, logger *slog.Logger, opts ...Option) (*Handle, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Name: name, Err: err}
	}

	cmd := exec.Command(name, args...)
	cmd.Stdout = pw
	configureProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &SpawnError{Name: name, Err: err}
	}
	// The child holds its own copy of the write end; EOF arrives when it exits.
	pw.Close()

	h := &Handle{
		cmd:         cmd,
		stdout:      pr,
		logger:      logger,
		killTimeout: defaultKillTimeout,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	return h, nil
}

// PID returns the operating system process id.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the process has exited.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code of the process. It is -1 while the process
// is running and when it was terminated by a signal.
func (h *Handle) ExitCode() int {
	if !h.Exited() {
		return -1
	}
	return exitCodeFromError(h.waitErr)
}

// Scan calls fn for every line written to standard output, in order, until
// EOF or Kill. Reads interrupted by Kill are not reported as errors.
func (h *Handle) Scan(fn func(line string)) error {
	scanner := bufio.NewScanner(h.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		fn(scanner.Text())
	}

	err := scanner.Err()
	if err != nil && (h.killed.Load() || errors.Is(err, os.ErrClosed)) {
		return nil
	}
	return err
}

// Kill force-kills the process group, waits for the exit and releases the
// output pipe. Only the first call does any work; concurrent callers block
// until it has finished.
func (h *Handle) Kill() {
	h.killOnce.Do(func() {
		h.killed.Store(true)

		if !h.Exited() {
			if err := killProcess(h.cmd.Process); err != nil && !isProcessGone(err) {
				h.logger.Warn("Failed to kill process", "pid", h.PID(), "error", err)
			}

			select {
			case <-h.done:
			case <-time.After(h.killTimeout):
				h.logger.Error("Process did not exit after kill signal", "pid", h.PID(), "timeout", h.killTimeout)
			}
		}

		if err := h.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			h.logger.Debug("Failed to close output pipe", "error", err)
		}
	})
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
