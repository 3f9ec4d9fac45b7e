package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/streamrec/internal/api"
	"github.com/smazurov/streamrec/internal/capture"
	"github.com/smazurov/streamrec/internal/config"
	"github.com/smazurov/streamrec/internal/events"
	"github.com/smazurov/streamrec/internal/launch"
	"github.com/smazurov/streamrec/internal/logging"
	"github.com/smazurov/streamrec/internal/metrics"
	"github.com/smazurov/streamrec/internal/registry"
)

// shutdownTimeout bounds how long stopping all capture processes may take.
const shutdownTimeout = 15 * time.Second

// daemon wires the registry, targets watcher, metrics and API together.
type daemon struct {
	opts        *config.Options
	logger      *slog.Logger
	registry    *registry.Registry
	server      *api.Server
	watcher     *config.Watcher[[]string]
	recorder    *metrics.Recorder
	sweepCtx    context.Context
	cancelSweep context.CancelFunc
}

func newDaemon(opts *config.Options) (*daemon, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	spec, err := opts.CaptureSpec()
	if err != nil {
		return nil, err
	}
	builder, err := capture.NewBuilder(spec)
	if err != nil {
		return nil, err
	}
	minDelay, maxDelay := opts.LaunchDelays()
	scheduler, err := launch.NewScheduler(minDelay, maxDelay)
	if err != nil {
		return nil, err
	}

	d := &daemon{
		opts:   opts,
		logger: logging.GetLogger("main"),
	}
	d.sweepCtx, d.cancelSweep = context.WithCancel(context.Background())

	// Create event bus for in-process event handling
	eventBus := events.New()
	apiOpts := &api.Options{EventBus: eventBus}
	if opts.MetricsEnabled {
		d.recorder = metrics.NewRecorder(eventBus, logging.GetLogger("metrics"))
		apiOpts.PrometheusHandler = promhttp.Handler()
	}

	d.registry = registry.New(registry.Options{
		Builder:       builder,
		Scheduler:     scheduler,
		Gate:          launch.NewGate(opts.LaunchRatePerSecond(), opts.LaunchBurst),
		RestartDelay:  opts.RestartDelay(),
		KillTimeout:   opts.KillTimeout(),
		SweepInterval: opts.SweepInterval(),
		EventBus:      eventBus,
	})
	apiOpts.Registry = d.registry
	d.server = api.NewServer(apiOpts)

	d.watcher = config.NewConfigWatcher(opts.TargetsFile, config.LoadTargets, logging.GetLogger("config"))
	d.watcher.OnReload(d.syncTargets)
	return d, nil
}

// start binds the API listener, loads the targets, starts background work
// and serves the API until stop is called. Nothing is launched when the
// listener cannot bind.
func (d *daemon) start() error {
	ln, err := d.server.Listen(d.opts.Port)
	if err != nil {
		return err
	}

	// Subscribe before any supervisor can publish
	if d.recorder != nil {
		d.recorder.Start()
	}

	targets, err := config.LoadTargets(d.opts.TargetsFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		d.logger.Info("No targets file, starting with no targets", "path", d.opts.TargetsFile)
	case err != nil:
		ln.Close()
		return err
	}
	d.syncTargets(targets)

	// A broken file on reload keeps the current set
	if err := d.watcher.Start(); err != nil {
		d.logger.Warn("Targets file will not be reloaded", "error", err)
	}

	go d.registry.Run(d.sweepCtx)

	// No-op unless started by systemd with Type=notify
	if _, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		d.logger.Warn("Failed to notify systemd", "error", err)
	}

	if err := d.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (d *daemon) stop() {
	d.logger.Info("Shutting down server")
	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	if err := d.server.Stop(); err != nil {
		d.logger.Error("Error stopping HTTP server", "error", err)
	}
	if err := d.watcher.Stop(); err != nil {
		d.logger.Warn("Error stopping targets watcher", "error", err)
	}

	// Stop the sweep first so nothing restarts while captures are stopped
	d.cancelSweep()

	d.logger.Info("Stopping all capture processes")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.registry.StopAll(ctx); err != nil {
		d.logger.Error("Error stopping capture processes", "error", err)
	}

	if d.recorder != nil {
		d.recorder.Stop()
	}
}

func (d *daemon) syncTargets(targets []string) {
	if err := d.registry.Sync(targets); err != nil {
		d.logger.Warn("Some targets were not added", "error", err)
	}
}
