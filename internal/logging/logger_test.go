package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerFoldsComponent(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	WithComponent(logger, "ingest").Info("stored raw upload", String(FieldWorkID, "w1"))

	line := buf.String()
	if !strings.Contains(line, "INFO ingest: stored raw upload") {
		t.Fatalf("unexpected console line %q", line)
	}
	if !strings.Contains(line, "work_id=w1") {
		t.Fatalf("expected work_id attr in %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("suppressed")
	logger.Warn("kept")

	if strings.Contains(buf.String(), "suppressed") {
		t.Fatalf("info record should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestFormatValueQuoting(t *testing.T) {
	if got := formatValue(slog.StringValue("a b")); got != `"a b"` {
		t.Fatalf("unexpected quoted value %q", got)
	}
	if got := formatValue(slog.StringValue("plain")); got != "plain" {
		t.Fatalf("unexpected value %q", got)
	}
}
