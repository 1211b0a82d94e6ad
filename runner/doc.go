// Package runner executes a single subprocess invocation.
//
// The runner package wraps one shell command execution: it launches the
// process through a Spawner, optionally feeds input lines to its standard
// input, aggregates stdout and stderr chunks in arrival order, measures
// wall-clock time, and enforces a timeout by forcibly terminating the
// process.
//
// The Spawner and Clock interfaces exist so tests can substitute a fake
// process and a deterministic clock.
//
// Usage:
//
//	run := runner.New(logger)
//	result, err := run.Run(ctx, "python3 main.py", "./", 5*time.Second, []string{"5", "6"})
package runner
