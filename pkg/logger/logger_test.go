package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pixdown/pkg/config"
)

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("Expected an error for an unknown log level")
	}
}

func TestParseLogLevel(t *testing.T) {
	valid := []string{"debug", "info", "warn", "warning", "error", "fatal", "disabled", "DEBUG", "Info"}
	for _, level := range valid {
		if _, err := parseLogLevel(level); err != nil {
			t.Errorf("Level %q: unexpected error %v", level, err)
		}
	}
	if _, err := parseLogLevel("verbose"); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "pixdown.log")
	log, err := New(&config.LoggingConfig{Level: "info", File: logFile})
	if err != nil {
		t.Fatal(err)
	}

	log.WithField("illust_id", uint64(42)).Info("test message")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "test message") {
		t.Errorf("Expected the message in the log file, got %q", content)
	}
	if !strings.Contains(string(content), "42") {
		t.Errorf("Expected the field in the log file, got %q", content)
	}
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	base, err := New(&config.LoggingConfig{Level: "info"})
	if err != nil {
		t.Fatal(err)
	}

	child := base.WithField("key", "value")
	if child == base {
		t.Error("WithField must return a derived logger")
	}

	// Deriving twice from the same parent must not leak fields across.
	a := base.WithField("a", 1)
	b := base.WithField("b", 2)
	if a == b {
		t.Error("Derived loggers must be independent")
	}
}

func TestGlobalLogger(t *testing.T) {
	if GetLogger() == nil {
		t.Fatal("GetLogger must lazily provide a logger")
	}

	if err := Initialize(&config.LoggingConfig{Level: "warn"}); err != nil {
		t.Fatal(err)
	}
	if GetLogger() == nil {
		t.Fatal("Expected the initialized global logger")
	}
}
