// Package main is the entry point for the Runbox MCP server.
//
// The Runbox server implements a configurable Model Context Protocol (MCP)
// server that compiles and runs user programs with the toolchains registered
// in its configuration. The server supports both stdio and HTTP transports.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
