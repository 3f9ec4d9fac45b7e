package main

import (
	"os"
	"sync/atomic"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/streamrec/cmd"
	"github.com/smazurov/streamrec/internal/config"
	"github.com/smazurov/streamrec/internal/logging"
)

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			logging.GetLogger("main").Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(opts.LoggingConfig())
		logger := logging.GetLogger("main")

		// OnStart runs on its own goroutine; OnStop may fire before it finishes wiring
		var running atomic.Pointer[daemon]

		hooks.OnStart(func() {
			d, err := newDaemon(opts)
			if err != nil {
				logger.Error("Invalid configuration", "error", err)
				os.Exit(1)
			}
			running.Store(d)

			if err := d.start(); err != nil {
				logger.Error("Failed to start", "error", err)
				d.stop()
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if d := running.Load(); d != nil {
				d.stop()
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateClassifyCmd())
	cli.Root().AddCommand(cmd.CreateWatchCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	// Run the CLI
	cli.Run()
}
