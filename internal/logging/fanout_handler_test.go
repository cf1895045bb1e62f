package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevel(t *testing.T) {
	var info, debug bytes.Buffer
	h := TeeHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout enabled when any handler accepts the level")
	}

	logger := slog.New(h).With("kind", "order")
	logger.Debug("lane running")
	logger.Info("phase advanced")

	if strings.Contains(info.String(), "lane running") {
		t.Fatalf("info handler received debug record: %q", info.String())
	}
	for _, want := range []string{"lane running", "phase advanced", "kind=order"} {
		if !strings.Contains(debug.String(), want) {
			t.Fatalf("debug handler missing %q: %q", want, debug.String())
		}
	}
	if !strings.Contains(info.String(), "kind=order") {
		t.Fatalf("WithAttrs not propagated: %q", info.String())
	}
}
