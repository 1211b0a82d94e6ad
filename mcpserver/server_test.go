package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/toolchain"
)

// MockRegistry implements toolchain.Registry for testing
type MockRegistry struct {
	desc toolchain.Descriptor
	err  error
}

func (m *MockRegistry) Resolve(_ context.Context, _ string) (toolchain.Descriptor, error) {
	if m.err != nil {
		return toolchain.Descriptor{}, m.err
	}
	return m.desc, nil
}

func testServerConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Logging: config.LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
		Execution: config.ExecutionConfig{
			DefaultTimeoutMs: 10000,
			WorkingDir:       "./",
		},
		Toolchains: map[string]config.Toolchain{
			"python": {RunCmd: "python3 {file}", TimeoutMs: 10000},
		},
	}
}

func TestNewMCPServer(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := testServerConfig()
	registry := &MockRegistry{}

	server, err := New(cfg, logger, registry)
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Equal(t, cfg, server.config)
	assert.Equal(t, logger, server.logger)
	assert.Equal(t, registry, server.registry)
	assert.NotNil(t, server.runner)
	assert.NotNil(t, server.GetMCPServer())
}

func TestHandleExecuteCodeEncodesControlCharacters(t *testing.T) {
	logger := zaptest.NewLogger(t)
	registry := &MockRegistry{
		desc: toolchain.Descriptor{
			WorkingDirectory: t.TempDir(),
			RunCommand:       `printf 'a\033[31mb'`,
			Timeout:          10 * time.Second,
		},
	}

	server, err := New(testServerConfig(), logger, registry)
	require.NoError(t, err)

	req := mcp.CallToolRequest{}
	req.Params.Name = "execute_code"
	req.Params.Arguments = map[string]any{"language": "shell"}

	result, err := server.handleExecuteCode(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	// The terminal escape in the output must survive a round trip through
	// a strict JSON decoder.
	var payload struct {
		ReturnCode int     `json:"return_code"`
		Output     string  `json:"output"`
		ElapsedMs  float64 `json:"elapsed_ms"`
	}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	assert.Equal(t, 0, payload.ReturnCode)
	assert.Equal(t, "a\x1b[31mb", payload.Output)
	assert.Greater(t, payload.ElapsedMs, 0.0)
}
