// Package debug provides diagnostic logging. In MCP mode nothing may be
// written to stdout or stderr (the protocol owns stdio), so all output goes
// to a log file under the system temp directory.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MCPMode tracks if we're running in MCP mode (set by main)
var MCPMode = false

var (
	mu      sync.Mutex
	logger  = zerolog.Nop()
	logFile *os.File
)

// SetMCPMode enables MCP mode which suppresses all output to stdio.
// Call before Init.
func SetMCPMode(enabled bool) {
	MCPMode = enabled
}

// Init configures logging. In MCP mode output goes to a timestamped file
// under os.TempDir(); otherwise to stderr via the console writer. Returns
// the log file path when one was created. Call Close when done.
func Init(verbose bool) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.InfoLevel
	if verbose || os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true" {
		level = zerolog.DebugLevel
	}

	var w io.Writer
	path := ""
	if MCPMode {
		logDir := filepath.Join(os.TempDir(), "sci-logs")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create log directory: %w", err)
		}
		timestamp := time.Now().Format("2006-01-02T150405")
		path = filepath.Join(logDir, fmt.Sprintf("sci-%s.log", timestamp))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return "", fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = file
		w = file
	} else {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	logger = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return path, nil
}

// Close closes the log file if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	logger = zerolog.Nop()
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

// Logger returns the configured logger. Before Init it is a no-op logger,
// so packages can log unconditionally.
func Logger() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Log provides debug logging with a component name
func Log(component, format string, args ...interface{}) {
	l := Logger()
	l.Debug().Str("component", component).Msgf(format, args...)
}

// LogExtraction provides debug logging for dialect extraction
func LogExtraction(format string, args ...interface{}) {
	Log("extract", format, args...)
}

// LogIndexing provides debug logging for index builds
func LogIndexing(format string, args ...interface{}) {
	Log("index", format, args...)
}

// LogQuery provides debug logging for query operations
func LogQuery(format string, args ...interface{}) {
	Log("query", format, args...)
}

// LogMCP provides debug logging for MCP operations
func LogMCP(format string, args ...interface{}) {
	Log("mcp", format, args...)
}

// Error logs an error with a component name, independent of debug level.
func Error(component string, err error, format string, args ...interface{}) {
	l := Logger()
	l.Error().Str("component", component).Err(err).Msgf(format, args...)
}
