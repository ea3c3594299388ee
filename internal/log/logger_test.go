package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf}).WithComponent(ComponentMasking)

	logger.Debug("Reveal toggled", FieldRevealed, true)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if record[FieldComponent] != ComponentMasking {
		t.Errorf("expected component %q, got %v", ComponentMasking, record[FieldComponent])
	}
	if record[FieldRevealed] != true {
		t.Errorf("expected revealed=true, got %v", record[FieldRevealed])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %q", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("expected warn to be written")
	}
}

func TestStructuredLoggerError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))

	sl.LogError(context.Background(), "List rejected", errors.New("bad rating"), ComponentMasking, OpList, ErrorTypeDataIntegrity, nil)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if record[FieldErrorType] != ErrorTypeDataIntegrity || record[FieldError] != "bad rating" {
		t.Errorf("unexpected record %v", record)
	}
}

func TestFromContextFallback(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}
	logger := Discard().WithComponent(ComponentHTTP)
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(IntoContext(req.Context(), logger))
	if FromContext(req.Context()) != logger {
		t.Fatal("expected logger from context")
	}
}
