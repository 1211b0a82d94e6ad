package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/runbox/runner"
	"github.com/isdmx/runbox/template"
	"github.com/isdmx/runbox/toolchain"
)

// exitSuccess is the exit code that lets the run phase proceed after a
// compile phase.
const exitSuccess = 0

// defaultWorkingDirectory is applied when neither the caller nor the
// toolchain specifies a working directory.
const defaultWorkingDirectory = "./"

var (
	// ErrMissingRunCommand is returned when the descriptor still has no run
	// command after toolchain resolution.
	ErrMissingRunCommand = errors.New("missing run command")
	// ErrCompilationFailed guards against an inconsistent compile outcome.
	// It is unreachable while the Execute branches stay exhaustive.
	ErrCompilationFailed = errors.New("Failed to compile.")
	// ErrAlreadyExecuted is returned when Execute is called more than once
	// on the same Executor.
	ErrAlreadyExecuted = errors.New("executor already executed")
)

// execution states, in the order they are entered on the success path.
type state string

const (
	stateIdle      state = "idle"
	stateResolving state = "resolving_toolchain"
	stateCompiling state = "compiling"
	stateRunning   state = "running"
	stateDone      state = "done"
	stateFailed    state = "failed"
)

// PhaseRunner executes one phase's subprocess invocation. *runner.Runner
// implements it.
type PhaseRunner interface {
	Run(ctx context.Context, command, workdir string, timeout time.Duration, inputs []string) (runner.Result, error)
}

// Executor drives one compile/run execution of a user program.
type Executor struct {
	logger   *zap.Logger
	registry toolchain.Registry
	runner   PhaseRunner

	desc            descriptor
	timeoutSet      bool
	fallbackTimeout time.Duration
	state           state
}

// Option defines a functional option for Executor.
type Option func(*Executor)

// WithRunner sets the PhaseRunner for the Executor.
func WithRunner(r PhaseRunner) Option {
	return func(e *Executor) {
		e.runner = r
	}
}

// WithDefaultTimeout sets the timeout applied when neither the caller nor
// the toolchain provides one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.fallbackTimeout = d
	}
}

// New creates an Executor from typed options.
func New(logger *zap.Logger, registry toolchain.Registry, opts Options, eopts ...Option) (*Executor, error) {
	desc, timeoutSet, err := newDescriptor(opts)
	if err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	e := &Executor{
		logger:     logger,
		registry:   registry,
		runner:     runner.New(logger),
		desc:       desc,
		timeoutSet: timeoutSet,
		state:      stateIdle,
	}
	for _, opt := range eopts {
		opt(e)
	}
	return e, nil
}

// NewFromRaw creates an Executor from a raw YAML or JSON options document.
// Both entry forms produce descriptors with identical invariants.
func NewFromRaw(logger *zap.Logger, registry toolchain.Registry, raw string, eopts ...Option) (*Executor, error) {
	opts, err := parseOptions(raw)
	if err != nil {
		return nil, err
	}
	return New(logger, registry, opts, eopts...)
}

// SetExecutionTimeout overrides the descriptor's timeout with the given
// duration in milliseconds. The caller's value takes precedence over the
// toolchain default. Non-positive values are ignored.
func (e *Executor) SetExecutionTimeout(ms int64) {
	if ms <= 0 {
		return
	}
	e.desc.timeout = time.Duration(ms) * time.Millisecond
	e.timeoutSet = true
}

// PutVariable stores the trimmed name mapped to the stringified value for
// command template substitution. A name that trims to the empty string is
// a no-op.
func (e *Executor) PutVariable(name string, value any) {
	e.desc.putVariable(name, value)
}

// SetInputs replaces the pending stdin inputs wholesale. They are consumed
// exactly once, by the run phase.
func (e *Executor) SetInputs(lines ...string) {
	e.desc.setInputs(lines)
}

// Execute runs the full orchestration: toolchain resolution, the optional
// compile phase, and the run phase. It yields exactly one terminal result
// or one error, and may be called only once.
func (e *Executor) Execute(ctx context.Context) (runner.Result, error) {
	if e.state != stateIdle {
		return runner.Result{}, ErrAlreadyExecuted
	}

	e.state = stateResolving
	if e.desc.workingDir == "" {
		e.desc.workingDir = defaultWorkingDirectory
	}

	resolved, err := e.registry.Resolve(ctx, e.desc.language)
	if err != nil {
		return runner.Result{}, e.fail(fmt.Errorf("failed to resolve toolchain for %q: %w", e.desc.language, err))
	}
	e.mergeToolchain(resolved)

	e.state = stateCompiling
	compileResult, err := e.compilePhase(ctx)
	if err != nil {
		return runner.Result{}, e.fail(err)
	}

	switch {
	case e.desc.runCommand == "":
		return runner.Result{}, e.fail(ErrMissingRunCommand)
	case compileResult.ExitCode != exitSuccess:
		// Terminal outcome carrying the compiler's diagnostics; the run
		// phase is never attempted.
		e.logger.Info("compile phase failed",
			zap.String("language", e.desc.language),
			zap.Int("exit_code", compileResult.ExitCode))
		e.state = stateDone
		return compileResult, nil
	case compileResult.ExitCode == exitSuccess:
		e.state = stateRunning
		result, err := e.runPhase(ctx)
		if err != nil {
			return runner.Result{}, e.fail(err)
		}
		e.state = stateDone
		return result, nil
	default:
		return runner.Result{}, e.fail(ErrCompilationFailed)
	}
}

// mergeToolchain overwrites the descriptor's commands and working directory
// with the resolved toolchain values; the toolchain is authoritative for
// commands. The timeout is only filled in if the caller never set one.
func (e *Executor) mergeToolchain(resolved toolchain.Descriptor) {
	e.desc.compileCommand = resolved.CompileCommand
	e.desc.runCommand = resolved.RunCommand
	if resolved.WorkingDirectory != "" {
		e.desc.workingDir = resolved.WorkingDirectory
	}
	if !e.timeoutSet {
		e.desc.timeout = resolved.Timeout
	}
	if e.desc.timeout <= 0 {
		e.desc.timeout = e.fallbackTimeout
	}
}

// compilePhase runs the compile command if the descriptor has one, with no
// stdin inputs. Without a compile command it synthesizes an immediate
// success so interpreted languages skip straight to the run phase.
func (e *Executor) compilePhase(ctx context.Context) (runner.Result, error) {
	if e.desc.compileCommand == "" {
		return runner.Result{ExitCode: exitSuccess}, nil
	}

	command := template.Build(e.desc.compileCommand, e.desc.variables)
	e.logger.Debug("compiling",
		zap.String("language", e.desc.language),
		zap.String("command", command),
		zap.String("workdir", e.desc.workingDir))

	return e.runner.Run(ctx, command, e.desc.workingDir, e.desc.timeout, nil)
}

// runPhase runs the program, consuming the pending inputs.
func (e *Executor) runPhase(ctx context.Context) (runner.Result, error) {
	command := template.Build(e.desc.runCommand, e.desc.variables)
	e.logger.Debug("running",
		zap.String("language", e.desc.language),
		zap.String("command", command),
		zap.String("workdir", e.desc.workingDir),
		zap.Int("inputs", len(e.desc.inputs)))

	result, err := e.runner.Run(ctx, command, e.desc.workingDir, e.desc.timeout, e.desc.inputs)
	if err != nil {
		return runner.Result{}, err
	}

	e.logger.Info("execution finished",
		zap.String("language", e.desc.language),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (e *Executor) fail(err error) error {
	e.state = stateFailed
	e.logger.Error("execution failed",
		zap.String("language", e.desc.language),
		zap.Error(err))
	return err
}
