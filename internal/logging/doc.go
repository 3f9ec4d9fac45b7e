// Package logging provides structured logging with per-module log level configuration.
//
// Loggers are plain *slog.Logger values tagged with a "module" attribute.
// Output goes to stdout when it is connected to a terminal, pipe, socket or
// file, and to the systemd journal when journald is reachable; both when both
// are available.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"supervisor": "debug",
//			"capture":    "warn",
//		},
//	})
//
// and obtain module loggers anywhere:
//
//	logger := logging.GetLogger("supervisor").With("target", name)
//	logger.Info("Capture started", "pid", pid)
//
// Loggers obtained before Initialize are cached. Initialize updates their
// level and swaps their output format in place, so package-level loggers
// stay valid.
//
// Journal entries carry SYSLOG_IDENTIFIER=streamrec and upper-cased attribute
// keys, which allows filtering such as:
//
//	journalctl -t streamrec MODULE=supervisor TARGET=alice
package logging
