package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig         `mapstructure:"server"`
	Logging    LoggingConfig        `mapstructure:"logging"`
	Execution  ExecutionConfig      `mapstructure:"execution"`
	Toolchains map[string]Toolchain `mapstructure:"toolchains"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// ExecutionConfig holds execution defaults applied when neither the caller
// nor the toolchain specifies a value
type ExecutionConfig struct {
	DefaultTimeoutMs int64  `mapstructure:"default_timeout_ms"`
	WorkingDir       string `mapstructure:"working_dir"`
}

// Toolchain holds the per-language compile/run defaults
type Toolchain struct {
	CompileCmd string `mapstructure:"compile_cmd"`
	RunCmd     string `mapstructure:"run_cmd"`
	Workdir    string `mapstructure:"workdir"`
	TimeoutMs  int64  `mapstructure:"timeout_ms"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("execution.default_timeout_ms", 10000)
	viper.SetDefault("execution.working_dir", "./")

	// Python defaults
	viper.SetDefault("toolchains.python.run_cmd", "python3 {file}")
	viper.SetDefault("toolchains.python.timeout_ms", 10000)

	// Node.js defaults
	viper.SetDefault("toolchains.nodejs.run_cmd", "node {file}")
	viper.SetDefault("toolchains.nodejs.timeout_ms", 10000)

	// Go defaults
	viper.SetDefault("toolchains.go.compile_cmd", "go build -o {output} {file}")
	viper.SetDefault("toolchains.go.run_cmd", "./{output}")
	viper.SetDefault("toolchains.go.timeout_ms", 20000)

	// C++ defaults
	viper.SetDefault("toolchains.cpp.compile_cmd", "g++ -std=c++17 -O2 -o {output} {file}")
	viper.SetDefault("toolchains.cpp.run_cmd", "./{output}")
	viper.SetDefault("toolchains.cpp.timeout_ms", 20000)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Execution.DefaultTimeoutMs <= 0 {
		return fmt.Errorf("execution.default_timeout_ms must be positive, got: %d", c.Execution.DefaultTimeoutMs)
	}

	for language, tc := range c.Toolchains {
		if tc.RunCmd == "" {
			return fmt.Errorf("toolchains.%s.run_cmd must not be empty", language)
		}
		if tc.TimeoutMs < 0 {
			return fmt.Errorf("toolchains.%s.timeout_ms must not be negative, got: %d", language, tc.TimeoutMs)
		}
	}

	return nil
}

// DefaultTimeout returns the fallback execution timeout as a duration
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Execution.DefaultTimeoutMs) * time.Millisecond
}
