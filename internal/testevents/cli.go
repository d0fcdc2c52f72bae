package testevents

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/arena/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging initializes the global logger, teeing output to logFile when
// one is given. The returned func closes the file.
func SetupLogging(logFile string, verbose bool) (func(), error) {
	var out io.Writer = os.Stdout
	closeFn := func() {}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, file)
		closeFn = func() { _ = file.Close() }
	}

	if err := logger.Init(logger.WithOutput(out), logger.WithFormat("text")); err != nil {
		closeFn()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closeFn, nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Arena Load Tool
===============

Creates competitions against a running arena service, submits their winner
events concurrently, and checks that every simulated user converges to the
achievements the local rules predict.

Usage:
  go run ./cmd/test-events [options]

Options:
  -url string          Base URL of the service (default "http://localhost:8080")
  -users int           Simulated user population (default 200)
  -competitions int    Competitions to create and settle (default 1000)
  -winners int         Max winners per event (default 5)
  -duplicates float    Share of events replayed to exercise dedupe (default 0.1)
  -workers int         Concurrent workers (default CPU cores * 2)
  -timeout duration    HTTP request timeout (default 30s)
  -settle duration     Time allowed for achievements to converge (default 30s)
  -jwt-secret string   Secret the service verifies tokens with (env ARENA_JWT_SECRET)
  -jwt-issuer string   Issuer the service expects (env ARENA_JWT_ISSUER)
  -output string       Write the generated plan to this JSON file
  -log string          Also write logs to this file
  -verbose             Enable debug logging
  -help                Show this help message

Examples:
  go run ./cmd/test-events -competitions 5000 -workers 16
  go run ./cmd/test-events -duplicates 0.5 -output plan.json
`)
}
