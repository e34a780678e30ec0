package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsole(ConsoleOptions{
		MinimumLevel:     LogLevelDebug,
		IncludeTimestamp: false,
		Output:           &buf,
	})

	logger.Info("Hello", Field{Key: "key", Value: "val"})

	str := buf.String()
	if !strings.Contains(str, "[INFO]") {
		t.Error("Expected level INFO")
	}
	if !strings.Contains(str, "Hello") {
		t.Error("Expected message Hello")
	}
	if !strings.Contains(str, "key=val") {
		t.Error("Expected field key=val")
	}
}

func TestConsoleLoggerMinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsole(ConsoleOptions{
		MinimumLevel:     LogLevelWarn,
		IncludeTimestamp: false,
		Output:           &buf,
	})

	logger.Debug("hidden")
	logger.Info("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("below-threshold entries must be dropped, got %q", buf.String())
	}

	logger.Error("visible")
	if !strings.Contains(buf.String(), "[ERROR] visible") {
		t.Fatalf("expected error entry, got %q", buf.String())
	}
}

func TestConsoleLoggerCategory(t *testing.T) {
	var buf bytes.Buffer
	logger := NewConsole(ConsoleOptions{
		MinimumLevel:     LogLevelDebug,
		IncludeTimestamp: false,
		Output:           &buf,
	})

	logger.WithCategory("Web").Info("started")
	if !strings.Contains(buf.String(), "(Web)") {
		t.Fatalf("expected category marker, got %q", buf.String())
	}

	// 派生带类别的日志器不影响原日志器
	buf.Reset()
	logger.Info("plain")
	if strings.Contains(buf.String(), "(Web)") {
		t.Fatalf("base logger must stay category free, got %q", buf.String())
	}
}

func TestLogLevelString(t *testing.T) {
	cases := map[LogLevel]string{
		LogLevelDebug: "DEBUG",
		LogLevelInfo:  "INFO",
		LogLevelWarn:  "WARN",
		LogLevelError: "ERROR",
	}
	for level, want := range cases {
		if level.String() != want {
			t.Fatalf("expected %s, got %s", want, level.String())
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNop()
	// 任何调用都不应 panic
	logger.Debug("x")
	logger.Info("x", Field{Key: "k", Value: 1})
	logger.Warn("x")
	logger.Error("x")
	logger.Log(LogLevelInfo, "x")
	if logger.WithCategory("c") == nil {
		t.Fatal("WithCategory must return a logger")
	}
}
