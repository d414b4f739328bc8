package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.String())
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.SlogLevel())
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestInit_WritesSubsystemAndError(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, &buf)

	Info("test-subsystem", "hello %s", "world")
	Error("Store", errors.New("disk full"), "save failed")

	output := buf.String()
	assert.Contains(t, output, "hello world")
	assert.Contains(t, output, "subsystem=test-subsystem")
	assert.Contains(t, output, "disk full")
}

func TestInit_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelWarn, &buf)

	Debug("x", "debug line")
	Info("x", "info line")
	Warn("x", "warn line")

	output := buf.String()
	assert.NotContains(t, output, "debug line")
	assert.NotContains(t, output, "info line")
	assert.Contains(t, output, "warn line")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", TruncateID("short"))
	assert.Equal(t, "12345678", TruncateID("12345678"))
	assert.Equal(t, "65f1a2b3...", TruncateID("65f1a2b3c4d5e6f7"))
}

func TestAudit(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo, &buf)

	Audit(AuditEvent{Action: "login", Outcome: "failure", UserID: "user1234...", Detail: "bad password"})

	output := buf.String()
	assert.True(t, strings.Contains(output, "[AUDIT] login"))
	assert.Contains(t, output, "outcome=failure")
	assert.Contains(t, output, "user=user1234...")
}
