package debug

import (
	"os"
	"strings"
	"testing"
)

func TestInitMCPModeWritesToFile(t *testing.T) {
	SetMCPMode(true)
	defer SetMCPMode(false)

	path, err := Init(true)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	if path == "" {
		t.Fatalf("Expected a log file path in MCP mode")
	}

	LogMCP("hello %s", "world")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Errorf("Expected log file to contain message, got %q", string(data))
	}
}

func TestInitConsoleModeNoFile(t *testing.T) {
	SetMCPMode(false)

	path, err := Init(false)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	if path != "" {
		t.Errorf("Expected no log file path in console mode, got %q", path)
	}
}

func TestErrorLoggedWithoutVerbose(t *testing.T) {
	SetMCPMode(true)
	defer SetMCPMode(false)

	path, err := Init(false)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	Error("test", os.ErrNotExist, "lookup of %s failed", "index.json")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "lookup of index.json failed") {
		t.Errorf("Expected error message in log file, got %q", string(data))
	}
}

func TestLoggerBeforeInitIsNoop(t *testing.T) {
	// Must not panic or write anywhere.
	Close()
	LogExtraction("ignored %d", 42)
}
