package daemonrun_test

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"datamart/internal/daemonrun"
	"datamart/internal/testsupport"
)

func TestRunWritesPIDAndStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLogDir())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- daemonrun.Run(ctx, cfg, daemonrun.Options{LogLevel: "error"}) }()

	pidPath := daemonrun.PIDPath(cfg)
	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(pidPath)
		if err == nil {
			if pid, _ := strconv.Atoi(strings.TrimSpace(string(data))); pid != os.Getpid() {
				t.Fatalf("pid file holds %q", data)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pid file never written: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(pidPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
	if _, err := os.Stat(cfg.LogPath()); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := daemonrun.Run(context.Background(), nil, daemonrun.Options{}); err == nil {
		t.Fatal("expected error without config")
	}
}
