package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, level, format string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: format, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	l, buf := newBufferLogger(t, "debug", "json")

	tests := []struct {
		level   string
		logFunc func(string, ...any)
	}{
		{"DEBUG", l.Debug},
		{"INFO", l.Info},
		{"WARN", l.Warn},
		{"ERROR", l.Error},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("counter created", "counter_id", "daily-visits")

			entry := decodeLine(t, buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry["msg"] != "counter created" {
				t.Errorf("msg = %v", entry["msg"])
			}
			if entry["counter_id"] != "daily-visits" {
				t.Errorf("counter_id = %v", entry["counter_id"])
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	l.With("component", "storage").Info("recovered")

	if entry := decodeLine(t, buf); entry["component"] != "storage" {
		t.Errorf("component = %v, want storage", entry["component"])
	}
}

func TestSetLevel(t *testing.T) {
	l, buf := newBufferLogger(t, "error", "json")

	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatal("info logged at error level")
	}

	SetLevel("debug")
	l.Info("kept")
	if buf.Len() == 0 {
		t.Error("info not logged after SetLevel(debug)")
	}
	if got := GetLevel(); got != "debug" {
		t.Errorf("GetLevel() = %q, want debug", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"debug", "debug"},
		{"INFO", "info"},
		{"warning", "warn"},
		{"error", "error"},
		{"bogus", "info"},
		{"", "info"},
	}

	for _, tt := range tests {
		SetLevel(tt.in)
		if got := GetLevel(); got != tt.want {
			t.Errorf("SetLevel(%q) -> GetLevel() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogger_TextFormat(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "text")

	l.Info("hello", "backend", "wal")

	out := buf.String()
	if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "backend=wal") {
		t.Errorf("text output = %q", out)
	}
}

func TestSlog(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	Slog(l).Info("via slog", "token", strings.Repeat("ab", 32))

	entry := decodeLine(t, buf)
	if v, _ := entry["token"].(string); !strings.HasPrefix(v, fingerprintPrefix) {
		t.Errorf("token through Slog() = %v, want fingerprint", entry["token"])
	}
	if Slog(NewNop()) == nil {
		t.Error("Slog(NewNop()) = nil")
	}
}

func TestDefaultLogger(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() = nil")
	}
	l, _ := newBufferLogger(t, "info", "json")
	SetDefault(l)
	if Default() != l {
		t.Error("SetDefault() did not replace the default logger")
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("New() accepted format xml")
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "warning", "error"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false", s)
		}
	}
	if ValidLevel("trace") {
		t.Error("ValidLevel(trace) = true")
	}
}

func TestContextHandler_WithGroup(t *testing.T) {
	l, buf := newBufferLogger(t, "info", "json")

	ctx := WithRequestID(context.Background(), "req-7")
	Slog(l).WithGroup("http").InfoContext(ctx, "served", "status", 200)

	entry := decodeLine(t, buf)
	group, _ := entry["http"].(map[string]any)
	if group["request_id"] != "req-7" || group["status"] != float64(200) {
		t.Errorf("entry = %v", entry)
	}
}
