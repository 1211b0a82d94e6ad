package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/executor"
	"github.com/isdmx/runbox/runner"
	"github.com/isdmx/runbox/toolchain"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	registry  toolchain.Registry
	runner    *runner.Runner
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, registry toolchain.Registry) (*MCPServer, error) {
	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		registry: registry,
		runner:   runner.New(logger),
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.Int64("execution.default_timeout_ms", s.config.Execution.DefaultTimeoutMs),
		zap.String("execution.working_dir", s.config.Execution.WorkingDir),
		zap.Int("toolchains", len(s.config.Toolchains)),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("runbox-executor", "A compile-and-run code execution server")

	// Register the execute_code tool
	s.registerExecuteCodeTool()

	return s, nil
}

// registerExecuteCodeTool registers the execute_code tool
func (s *MCPServer) registerExecuteCodeTool() {
	tool := mcp.Tool{
		Name:        "execute_code",
		Description: "Compile and run a program with a registered toolchain",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Language identifier of a registered toolchain",
				},
				"variables": map[string]any{
					"type":        "object",
					"description": "Named values substituted into the toolchain's command templates (optional)",
				},
				"inputs": map[string]any{
					"type":        "array",
					"description": "Lines written to the program's standard input (optional)",
					"items":       map[string]any{"type": "string"},
				},
				"timeout_ms": map[string]any{
					"type":        "number",
					"description": "Per-phase execution timeout in milliseconds (optional)",
				},
			},
			Required: []string{"language"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

// handleExecuteCode handles the execute_code tool
func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	language, err := request.RequireString("language")
	if err != nil {
		return nil, fmt.Errorf("language parameter is required: %w", err)
	}

	args := request.GetArguments()

	exec, err := executor.New(s.logger, s.registry, executor.Options{Language: language},
		executor.WithRunner(s.runner),
		executor.WithDefaultTimeout(s.config.DefaultTimeout()))
	if err != nil {
		return nil, fmt.Errorf("invalid execution options: %w", err)
	}

	for name, value := range cast.ToStringMap(args["variables"]) {
		exec.PutVariable(name, value)
	}
	if rawInputs, ok := args["inputs"]; ok {
		exec.SetInputs(cast.ToStringSlice(rawInputs)...)
	}
	if rawTimeout, ok := args["timeout_ms"]; ok {
		exec.SetExecutionTimeout(cast.ToInt64(rawTimeout))
	}

	s.logger.Info("executing code",
		zap.String("language", language))

	result, err := exec.Execute(ctx)
	if err != nil {
		s.logger.Error("execution failed",
			zap.Error(err),
			zap.String("language", language))
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Execution failed: %v", err),
				},
			},
			IsError: true,
		}, nil
	}

	// Log execution result
	s.logger.Info("execution completed",
		zap.String("language", language),
		zap.Int("return_code", result.ExitCode),
		zap.Duration("elapsed", result.Elapsed))

	elapsedMs := float64(result.Elapsed) / float64(time.Millisecond)

	// Convert result to JSON string for content. The output must go through
	// json.Marshal: %q produces Go escapes that are not valid JSON.
	outputJSON, err := json.Marshal(result.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	resultJSON := fmt.Sprintf(`{"return_code":%d,"output":%s,"elapsed_ms":%g}`,
		result.ExitCode, outputJSON, elapsedMs)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: resultJSON,
			},
		},
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
