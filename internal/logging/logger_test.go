package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileLoggerAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sensei.log")
	logger, err := New(Options{File: path, Quiet: true})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Printf("generated %d files\n", 3)
	logger.With("variant", "hard").Warn("drift detected", "path", "maxGates")
	logger.Debug("hidden at info level")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], "generated 3 files") {
		t.Fatalf("missing printf line: %s", lines[0])
	}
	if !strings.Contains(lines[1], "drift detected") || !strings.Contains(lines[1], `"variant": "hard"`) {
		t.Fatalf("missing structured fields: %s", lines[1])
	}
}

func TestDebugOption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	logger, err := New(Options{File: path, Quiet: true, Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("visible")
	logger.Close()
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "visible") {
		t.Fatalf("debug line missing: %q", data)
	}
}

func TestNopAndNilSafety(t *testing.T) {
	Nop().Printf("discarded %s", "line")
	var nilLogger *Logger
	nilLogger.Printf("no panic")
	if err := nilLogger.Close(); err != nil {
		t.Fatalf("nil Close returned error: %v", err)
	}
	quiet, err := New(Options{Quiet: true})
	if err != nil {
		t.Fatal(err)
	}
	quiet.Info("nothing configured")
}
