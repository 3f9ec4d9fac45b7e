package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/streamrec/internal/capture"
	"github.com/smazurov/streamrec/internal/config"
	"github.com/smazurov/streamrec/internal/launch"
	"github.com/smazurov/streamrec/internal/logging"
	"github.com/smazurov/streamrec/internal/output"
	"github.com/smazurov/streamrec/internal/registry"
	"github.com/smazurov/streamrec/internal/supervisor"
	"github.com/spf13/cobra"
)

// ErrTargetInvalid is returned by watch when the capture program reports the
// target does not exist.
var ErrTargetInvalid = errors.New("target reported as invalid")

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch TARGET",
		Short: "Supervise a single target in the foreground",
		Long: `Records one target without the HTTP API or targets file. The capture is restarted ` +
			`whenever the target becomes eligible again, until interrupted or the target is reported invalid. ` +
			`Uses the same configuration file, environment and flags as the daemon.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &config.Options{}
			if err := config.ApplyDefaults(opts); err != nil {
				return err
			}
			if err := config.LoadConfig(opts, cmd.Root()); err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			logging.Initialize(opts.LoggingConfig())

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, args[0], opts, cmd.OutOrStdout())
		},
	}
}

// runWatch supervises target until ctx is done. State changes and signals
// are written to out, one per line.
func runWatch(ctx context.Context, target string, opts *config.Options, out io.Writer) error {
	if err := registry.ValidateName(target); err != nil {
		return err
	}

	spec, err := opts.CaptureSpec()
	if err != nil {
		return err
	}
	builder, err := capture.NewBuilder(spec)
	if err != nil {
		return err
	}
	minDelay, maxDelay := opts.LaunchDelays()
	scheduler, err := launch.NewScheduler(minDelay, maxDelay)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	printf := func(format string, a ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format+"\n", a...)
	}

	sup := supervisor.New(target, supervisor.Options{
		Builder:      builder,
		Scheduler:    scheduler,
		Gate:         launch.NewGate(opts.LaunchRatePerSecond(), opts.LaunchBurst),
		RestartDelay: opts.RestartDelay(),
		KillTimeout:  opts.KillTimeout(),
		Notifier: supervisor.NotifierFunc(func(target string, active bool, err error) {
			switch {
			case err != nil:
				printf("%s\tfailed\t%v", target, err)
			case active:
				printf("%s\tactive", target)
			default:
				printf("%s\tinactive", target)
			}
		}),
		OnSignal: func(target string, sig output.Signal) {
			printf("%s\tsignal\t%s", target, sig)
		},
	})
	defer sup.Terminate()

	if err := sup.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(opts.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if sup.InvalidTargetDetected() {
				return fmt.Errorf("%w: %s", ErrTargetInvalid, target)
			}
			if sup.EligibleForRestart(now) {
				if err := sup.Start(); err != nil {
					return err
				}
			}
		}
	}
}
