package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Fatalf("parseLevel(%q): got %v, want %v", raw, got, want)
		}
	}
}

func TestRenameCoreAttrs(t *testing.T) {
	level := renameCoreAttrs(nil, slog.Any(slog.LevelKey, slog.LevelWarn))
	if level.Key != "severity" || level.Value.String() != "WARN" {
		t.Fatalf("level attr: got %v=%v", level.Key, level.Value)
	}
	msg := renameCoreAttrs(nil, slog.String(slog.MessageKey, "listing settled"))
	if msg.Key != "message" || msg.Value.String() != "listing settled" {
		t.Fatalf("message attr: got %v=%v", msg.Key, msg.Value)
	}
	other := renameCoreAttrs(nil, slog.String("listingId", "0xabc"))
	if other.Key != "listingId" {
		t.Fatalf("custom attr renamed: got %v", other.Key)
	}
}
