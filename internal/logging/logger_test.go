package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"stream": "debug",
			"api":    "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"stream", true, true, true},
		{"api", false, false, true},
		{"relay", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()

			gotDebug := handler.Enabled(context.Background(), slog.LevelDebug)
			gotInfo := handler.Enabled(context.Background(), slog.LevelInfo)
			gotWarn := handler.Enabled(context.Background(), slog.LevelWarn)

			if gotDebug != tt.wantDebug {
				t.Errorf("module %q: Debug enabled = %v, want %v", tt.module, gotDebug, tt.wantDebug)
			}
			if gotInfo != tt.wantInfo {
				t.Errorf("module %q: Info enabled = %v, want %v", tt.module, gotInfo, tt.wantInfo)
			}
			if gotWarn != tt.wantWarn {
				t.Errorf("module %q: Warn enabled = %v, want %v", tt.module, gotWarn, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetState()

	logger := GetLogger("stream")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled before Initialize")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"stream": "debug"}})

	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("logger obtained before Initialize should pick up the module override")
	}
}

func TestApplyLevels(t *testing.T) {
	resetState()

	Initialize(Config{Level: "info", Format: "text"})
	logger := GetLogger("publisher")

	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled at info level")
	}

	ApplyLevels(Config{Level: "info", Modules: map[string]string{"publisher": "debug"}})
	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after ApplyLevels")
	}

	ApplyLevels(Config{Level: "error"})
	if logger.Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled after raising global level to error")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		got := parseLevel(tt.in)
		if (got != nil) != tt.ok {
			t.Errorf("parseLevel(%q) ok = %v, want %v", tt.in, got != nil, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, *got, tt.want)
		}
	}
}

type failingSink struct{ slog.Handler }

func (failingSink) Handle(context.Context, slog.Record) error { return errors.New("journal gone") }

func TestFanoutSharesModuleLevel(t *testing.T) {
	var textBuf bytes.Buffer
	buffer := NewRingBuffer(10)
	level := &slog.LevelVar{}
	level.Set(slog.LevelInfo)

	h := &fanout{level: level, sinks: []slog.Handler{
		slog.NewTextHandler(&textBuf, &slog.HandlerOptions{Level: level}),
		NewBufferHandler(buffer, level),
	}}
	logger := slog.New(h).With("module", "publisher")

	logger.Debug("frame repeated", "seq", 1)
	if textBuf.Len() != 0 || buffer.Count() != 0 {
		t.Fatalf("debug record leaked at info level: text=%q buffered=%d", textBuf.String(), buffer.Count())
	}

	level.Set(slog.LevelDebug)
	logger.Debug("frame repeated", "seq", 2)
	if !strings.Contains(textBuf.String(), "seq=2") {
		t.Errorf("text sink missed record after level change, got %q", textBuf.String())
	}
	entries := buffer.ReadAll()
	if len(entries) != 1 || entries[0].Module != "publisher" {
		t.Errorf("buffer sink entries = %+v, want one publisher entry", entries)
	}
}

func TestFanoutContinuesPastFailingSink(t *testing.T) {
	var textBuf bytes.Buffer
	level := &slog.LevelVar{}

	h := &fanout{level: level, sinks: []slog.Handler{
		failingSink{slog.NewTextHandler(&textBuf, nil)},
		slog.NewTextHandler(&textBuf, nil),
	}}

	r := slog.NewRecord(time.Now(), slog.LevelWarn, "device write failed", 0)
	if err := h.Handle(context.Background(), r); err == nil {
		t.Error("expected the sink error to be reported")
	}
	if !strings.Contains(textBuf.String(), "device write failed") {
		t.Errorf("healthy sink did not receive the record, got %q", textBuf.String())
	}
}

func TestBufferHandlerRecordsEntries(t *testing.T) {
	buffer := NewRingBuffer(10)
	level := &slog.LevelVar{}
	level.Set(slog.LevelInfo)

	logger := slog.New(NewBufferHandler(buffer, level)).With("module", "stream")
	logger.Debug("hidden")
	logger.Warn("connection failed", "error", errors.New("refused"), "backoff", 2*time.Second)
	logger.WithGroup("frame").Info("decoded", "seq", 7)

	entries := buffer.ReadAll()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Module != "stream" || first.Level != "warn" {
		t.Errorf("unexpected entry %+v", first)
	}
	if first.Attributes["error"] != "refused" {
		t.Errorf("error attribute = %v, want refused", first.Attributes["error"])
	}
	if first.Attributes["backoff"] != "2s" {
		t.Errorf("backoff attribute = %v, want 2s", first.Attributes["backoff"])
	}

	if _, ok := entries[1].Attributes["frame.seq"]; !ok {
		t.Errorf("grouped attribute missing: %+v", entries[1].Attributes)
	}
}

func TestFormatLogLine(t *testing.T) {
	entry := LogEntry{
		Timestamp:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:      "info",
		Module:     "publisher",
		Message:    "observed rate",
		Attributes: map[string]any{"fps": 29.5, "frames": 30},
	}

	got := FormatLogLine(entry)
	want := "2025-01-02T03:04:05Z [INFO] [publisher] observed rate fps=29.5 frames=30"
	if got != want {
		t.Errorf("FormatLogLine() = %q, want %q", got, want)
	}
}
