package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestWithContext_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, slog.LevelInfo, true)

	ctx := ContextWithInvocationID(context.Background(), "abc")
	ctx = ContextWithNixFile(ctx, "/src/shell.nix")
	l.WithContext(ctx).WithComponent("builder").Info("instantiated")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v: %s", err, buf.String())
	}
	if entry["invocation_id"] != "abc" {
		t.Errorf("invocation_id = %v", entry["invocation_id"])
	}
	if entry["nix_file"] != "/src/shell.nix" {
		t.Errorf("nix_file = %v", entry["nix_file"])
	}
	if entry["component"] != "builder" {
		t.Errorf("component = %v", entry["component"])
	}
}

func TestInvocationIDFromContext(t *testing.T) {
	if got := InvocationIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context gave %q", got)
	}
	ctx := ContextWithInvocationID(context.Background(), "xyz")
	if got := InvocationIDFromContext(ctx); got != "xyz" {
		t.Errorf("InvocationIDFromContext() = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
