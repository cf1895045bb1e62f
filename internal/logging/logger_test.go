package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"datamart/internal/config"
	"datamart/internal/fulfillment"
	"datamart/internal/logging"
	"datamart/internal/services"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestConsoleLoggerRendersSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithTransaction(context.Background(), "order", 42)
	ctx = services.WithPhase(ctx, "upload query")
	ctx = services.WithLane(ctx, "runtime")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "tracker")).Info("lane done", logging.Int("lane_index", 1))

	content := readLog(t, logPath)
	for _, want := range []string{"INFO [tracker]", "Runtime · Order #42 (upload query)", "- lane done", "lane_index=1"} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")
	if content := readLog(t, logPath); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestJSONLoggerFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("phase failed", logging.Phase("submit on-chain"))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record["level"] != "warn" || record["msg"] != "phase failed" || record["phase"] != "submit on-chain" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts field: %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Level = "info"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon started")

	content := readLog(t, cfg.LogPath())
	if !strings.Contains(content, `"msg":"daemon started"`) {
		t.Fatalf("expected JSON record in log file, got %q", content)
	}
}

func TestContextFieldsEmpty(t *testing.T) {
	if fields := logging.ContextFields(context.Background()); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
	if logging.WithContext(context.Background(), nil) == nil {
		t.Fatal("expected nop logger")
	}
}

func TestTransactionAttrs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tx.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.ErrorWithContext(logging.WithTransaction(logger, fulfillment.KindOrder, 7), "lane failed", "fulfillment_failed",
		logging.Phase("upload query"),
		logging.Lane(0),
		logging.Percent(42),
	)

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, logPath))), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	want := map[string]any{
		"kind":             "order",
		"tx_id":            float64(7),
		"phase":            "upload query",
		"lane":             fulfillment.SlotName(0),
		"progress_percent": float64(42),
		"event_type":       "fulfillment_failed",
		"error_hint":       "check logs for details",
	}
	for key, value := range want {
		if record[key] != value {
			t.Fatalf("%s = %v, want %v (record %v)", key, record[key], value, record)
		}
	}
}

func TestErrorWithContextKeepsExplicitFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "err.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
		logging.Event("custom_event"),
		logging.Hint("restart the daemon"),
	)
	content := readLog(t, logPath)
	if strings.Count(content, `"event_type"`) != 1 || !strings.Contains(content, `"event_type":"custom_event"`) {
		t.Fatalf("expected single explicit event_type, got %q", content)
	}
	if !strings.Contains(content, `"error_hint":"restart the daemon"`) {
		t.Fatalf("expected explicit hint, got %q", content)
	}
	logging.ErrorWithContext(nil, "ignored", "ignored")
}

func TestConsoleLoggerFormatsProgressFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "fields.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("fulfillment complete",
		logging.Percent(100),
		logging.Duration("elapsed", 1534*time.Millisecond),
		logging.String("note", "two words"),
	)
	content := readLog(t, logPath)
	for _, want := range []string{"progress_percent=100%", "elapsed=1.53s", `note="two words"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
}
