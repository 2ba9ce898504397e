package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerRespectsLevel(t *testing.T) {
	var buffer bytes.Buffer
	logger := NewLogger(&buffer, LevelWarn)

	logger.Debugf("should not appear")
	if buffer.Len() != 0 {
		t.Fatalf("expected no output below configured level, got %q", buffer.String())
	}

	logger.Warnf("disk at %d%%", 90)
	if !strings.Contains(buffer.String(), "disk at 90%") {
		t.Errorf("expected warning to be logged, got %q", buffer.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Debugf("nil logger should not panic")
	logger.Errorf("nor should this")
	if sub := logger.Sublogger("child"); sub != nil {
		t.Error("expected sublogger of nil logger to be nil")
	}
}

func TestSubloggerPrefixes(t *testing.T) {
	var buffer bytes.Buffer
	logger := NewLogger(&buffer, LevelDebug).Sublogger("index").Sublogger("scan")

	logger.Debugf("hello")
	if !strings.Contains(buffer.String(), "[index.scan] hello") {
		t.Errorf("expected dotted sublogger prefix, got %q", buffer.String())
	}
}

func TestNameToLevel(t *testing.T) {
	if level, ok := NameToLevel("trace"); !ok || level != LevelTrace {
		t.Errorf("expected trace to map to LevelTrace, got %v, %v", level, ok)
	}
	if _, ok := NameToLevel("bogus"); ok {
		t.Error("expected unknown level name to be rejected")
	}
}
