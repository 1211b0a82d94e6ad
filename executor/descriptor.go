package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Options is the typed entry form for constructing an Executor. All fields
// except Language are optional; command templates and the working directory
// are normally filled in from the toolchain during execution.
type Options struct {
	Language       string            `yaml:"language" json:"language"`
	CompileCommand string            `yaml:"compile_cmd" json:"compile_cmd"`
	RunCommand     string            `yaml:"run_cmd" json:"run_cmd"`
	WorkingDir     string            `yaml:"workdir" json:"workdir"`
	TimeoutMs      int64             `yaml:"timeout_ms" json:"timeout_ms"`
	Variables      map[string]string `yaml:"variables" json:"variables"`
	Inputs         []string          `yaml:"inputs" json:"inputs"`
}

// parseOptions is the raw-string entry form. The raw configuration is YAML,
// which also accepts JSON documents.
func parseOptions(raw string) (Options, error) {
	var opts Options
	if err := yaml.Unmarshal([]byte(raw), &opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse raw options: %w", err)
	}
	return opts, nil
}

// descriptor is the resolved configuration for one execution. It is mutated
// by the Executor's setters and once more when toolchain defaults are merged
// in, then read-only for the rest of the execution.
type descriptor struct {
	language       string
	compileCommand string
	runCommand     string
	workingDir     string
	timeout        time.Duration
	variables      map[string]string
	inputs         []string
}

func newDescriptor(opts Options) (descriptor, bool, error) {
	language := strings.TrimSpace(opts.Language)
	if language == "" {
		return descriptor{}, false, fmt.Errorf("language must not be empty")
	}
	if opts.TimeoutMs < 0 {
		return descriptor{}, false, fmt.Errorf("timeout_ms must not be negative, got: %d", opts.TimeoutMs)
	}

	d := descriptor{
		language:       language,
		compileCommand: opts.CompileCommand,
		runCommand:     opts.RunCommand,
		workingDir:     opts.WorkingDir,
		timeout:        time.Duration(opts.TimeoutMs) * time.Millisecond,
		variables:      make(map[string]string, len(opts.Variables)),
	}
	for name, value := range opts.Variables {
		d.putVariable(name, value)
	}
	d.setInputs(opts.Inputs)

	return d, opts.TimeoutMs > 0, nil
}

// putVariable stores the trimmed name mapped to the stringified value.
// An empty trimmed name is a no-op.
func (d *descriptor) putVariable(name string, value any) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if d.variables == nil {
		d.variables = make(map[string]string)
	}
	d.variables[name] = cast.ToString(value)
}

// setInputs replaces the pending inputs wholesale.
func (d *descriptor) setInputs(lines []string) {
	d.inputs = append([]string(nil), lines...)
}
