package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrMissingCommand is returned when Run is called with an empty command.
	ErrMissingCommand = errors.New("missing command")
	// ErrTimeout is returned when the subprocess does not terminate within
	// the allotted duration. The subprocess is killed before Run returns.
	ErrTimeout = errors.New("execution timed out")
)

// Result is the terminal outcome of one subprocess invocation.
type Result struct {
	// ExitCode is the subprocess's exit code.
	ExitCode int
	// Output is the combined stdout and stderr text, interleaved in the
	// order the chunks were delivered.
	Output string
	// Elapsed is the wall-clock time from just after launch until the
	// subprocess terminated.
	Elapsed time.Duration
}

// Runner executes shell commands one subprocess at a time.
type Runner struct {
	logger  *zap.Logger
	spawner Spawner
	clock   Clock
}

// Option defines a functional option for Runner.
type Option func(*Runner)

// WithSpawner sets the Spawner for the Runner.
func WithSpawner(s Spawner) Option {
	return func(r *Runner) {
		r.spawner = s
	}
}

// WithClock sets the Clock for the Runner.
func WithClock(c Clock) Option {
	return func(r *Runner) {
		r.clock = c
	}
}

// New creates a Runner with default implementations and optional overrides.
func New(logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		logger:  logger,
		spawner: ExecSpawner{},
		clock:   SystemClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run launches command with workdir as its working directory, writes the
// input lines to its stdin before observing output, and aggregates stdout
// and stderr chunks in arrival order.
//
// It returns the subprocess's exit code, combined output, and elapsed time
// when the process terminates on its own. If timeout elapses first, the
// process is killed and Run returns ErrTimeout with no result. A
// non-positive timeout disables the deadline.
func (r *Runner) Run(ctx context.Context, command, workdir string, timeout time.Duration, inputs []string) (Result, error) {
	if strings.TrimSpace(command) == "" {
		return Result{}, ErrMissingCommand
	}

	proc, err := r.spawner.Spawn(ctx, command, workdir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to spawn %q: %w", command, err)
	}
	started := r.clock.Now()

	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = r.clock.After(timeout)
	}

	// Inputs go in before any output is read so a subprocess that blocks
	// reading stdin before writing cannot deadlock the runner. The write
	// runs concurrently so a subprocess that never reads stdin cannot
	// stall it past the deadline: a pipe write blocked at timeout is
	// unblocked by the kill below.
	inputDone := make(chan error, 1)
	go func() {
		inputDone <- proc.WriteInput(inputs)
	}()

	var output bytes.Buffer
	stdout, stderr := proc.Stdout(), proc.Stderr()
	for stdout != nil || stderr != nil {
		select {
		case err := <-inputDone:
			if err != nil {
				_ = proc.Kill()
				return Result{}, fmt.Errorf("failed to write inputs: %w", err)
			}
			inputDone = nil
		case chunk, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			output.Write(chunk)
		case chunk, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			output.Write(chunk)
		case <-deadline:
			return Result{}, r.kill(proc, command, timeout)
		}
	}

	select {
	case exitCode := <-proc.Done():
		elapsed := r.clock.Now().Sub(started)
		r.logger.Debug("subprocess terminated",
			zap.String("command", command),
			zap.Int("exit_code", exitCode),
			zap.Duration("elapsed", elapsed))
		return Result{
			ExitCode: exitCode,
			Output:   output.String(),
			Elapsed:  elapsed,
		}, nil
	case <-deadline:
		return Result{}, r.kill(proc, command, timeout)
	}
}

func (r *Runner) kill(proc Process, command string, timeout time.Duration) error {
	if err := proc.Kill(); err != nil {
		r.logger.Warn("failed to kill timed-out subprocess",
			zap.String("command", command),
			zap.Error(err))
	}
	r.logger.Warn("subprocess timed out",
		zap.String("command", command),
		zap.Duration("timeout", timeout))
	return fmt.Errorf("%w after %s", ErrTimeout, timeout)
}
