// Package process owns capture subprocesses.
//
// Spawn starts a binary with its standard output connected to a pipe and, on
// unix, in its own process group. The returned Handle is the only way to
// reach the process:
//   - Scan delivers stdout one line at a time, in order, until EOF or Kill
//   - Kill force-kills the whole process group, tolerates processes that
//     already exited, waits for the exit and releases the pipe; it is
//     idempotent and safe to call from any goroutine, including from inside
//     the Scan callback
//   - Exited, Done and ExitCode report the process outcome
//
// Typical use keeps the kill on every exit path:
//
//	h, err := process.Spawn("streamlink", args, logger)
//	if err != nil {
//	    return err // errors.Is(err, process.ErrSpawn)
//	}
//	defer h.Kill()
//	h.Scan(func(line string) { ... })
package process
