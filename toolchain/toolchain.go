package toolchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
)

// ErrUnknownLanguage is returned when no toolchain is registered for the
// requested language identifier.
var ErrUnknownLanguage = errors.New("unknown language")

// Descriptor holds the resolved toolchain defaults for one language.
type Descriptor struct {
	// WorkingDirectory is the directory commands run in. Never empty.
	WorkingDirectory string
	// CompileCommand is the compile command template. Empty means the
	// language has no compile phase.
	CompileCommand string
	// RunCommand is the run command template.
	RunCommand string
	// Timeout is the default execution timeout per phase.
	Timeout time.Duration
}

// Registry looks up toolchain descriptors by language identifier.
type Registry interface {
	Resolve(ctx context.Context, language string) (Descriptor, error)
}

// ConfigRegistry implements Registry from the application configuration's
// toolchains section.
type ConfigRegistry struct {
	logger      *zap.Logger
	descriptors map[string]Descriptor
}

// NewRegistry builds a ConfigRegistry from the configured toolchains.
func NewRegistry(logger *zap.Logger, cfg *config.Config) (Registry, error) {
	if len(cfg.Toolchains) == 0 {
		return nil, errors.New("no toolchains configured")
	}

	defaultWorkdir := cfg.Execution.WorkingDir
	if defaultWorkdir == "" {
		defaultWorkdir = "./"
	}

	descriptors := make(map[string]Descriptor, len(cfg.Toolchains))
	for language, tc := range cfg.Toolchains {
		workdir := tc.Workdir
		if workdir == "" {
			workdir = defaultWorkdir
		}
		descriptors[strings.ToLower(language)] = Descriptor{
			WorkingDirectory: workdir,
			CompileCommand:   tc.CompileCmd,
			RunCommand:       tc.RunCmd,
			Timeout:          time.Duration(tc.TimeoutMs) * time.Millisecond,
		}
	}

	logger.Info("toolchain registry loaded", zap.Int("toolchains", len(descriptors)))

	return &ConfigRegistry{logger: logger, descriptors: descriptors}, nil
}

// Resolve returns the descriptor registered for language, matched
// case-insensitively.
func (r *ConfigRegistry) Resolve(ctx context.Context, language string) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, err
	}

	descriptor, ok := r.descriptors[strings.ToLower(language)]
	if !ok {
		r.logger.Warn("toolchain lookup failed", zap.String("language", language))
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownLanguage, language)
	}
	return descriptor, nil
}
