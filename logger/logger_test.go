package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "warn", Format: "json"})

	log.Info("dropped")
	log.Warn("kept", "component", "recorder")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if entry["msg"] != "kept" || entry["component"] != "recorder" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewWritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "voicecap.log")
	log := New(Config{Level: "debug", Outputs: []string{path}, MaxSizeMB: 1})
	log.Debug("hello file")

	matches, _ := filepath.Glob(path)
	if len(matches) != 1 {
		t.Fatalf("expected log file at %s", path)
	}
}

func TestLoggerFallsBackToDefault(t *testing.T) {
	if Logger() == nil {
		t.Fatal("Logger must never return nil")
	}
}

func TestPackageHelpersUseGlobalLogger(t *testing.T) {
	prev := globalLogger
	t.Cleanup(func() { globalLogger = prev })

	var buf bytes.Buffer
	globalLogger = NewWithWriter(&buf, Config{Level: "info"})

	Debug("hidden")
	Info("started", "backend", "malgo")
	Warn("slow sink")
	Error("stopped")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at info level: %q", out)
	}
	for _, want := range []string{"msg=started backend=malgo", "level=WARN", "level=ERROR"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}
}
