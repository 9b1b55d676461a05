package util

import (
	"context"
	"log/slog"
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
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerFromContextFallsBackToDefault(t *testing.T) {
	if LoggerFromContext(context.Background()) != slog.Default() {
		t.Fatalf("expected default logger for empty context")
	}
	child := slog.Default().With("request_id", "abc")
	ctx := ContextWithLogger(context.Background(), child)
	if LoggerFromContext(ctx) != child {
		t.Fatalf("expected stored logger")
	}
}
