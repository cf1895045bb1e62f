package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"datamart/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "datamart", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".local", "share", "datamart"); cfg.Paths.DataDir != want {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, want)
	}
	if cfg.LedgerPath() != filepath.Join(cfg.Paths.DataDir, "ledger.db") {
		t.Fatalf("unexpected ledger path: %q", cfg.LedgerPath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if !cfg.Tracker.Persist || !cfg.Tracker.ResumeInterrupted {
		t.Fatal("expected tracker persistence and resume enabled by default")
	}
	if cfg.TimeUnit() != 100*time.Millisecond {
		t.Fatalf("unexpected time unit: %s", cfg.TimeUnit())
	}
	timing := cfg.Timing()
	if timing.ChainTime != 5 || timing.ReviewTime != 30 || timing.Jitter != 0.1 {
		t.Fatalf("unexpected timing: %+v", timing)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "datamart.toml")
	contents := `
[paths]
data_dir = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"
api_bind = "127.0.0.1:9000"

[simulation]
time_unit_ms = 1
jitter = 0

[notifications]
ntfy_topic = " https://ntfy.example/datamart "
notify_completed = false

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected %q to be loaded, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.TimeUnit() != time.Millisecond || cfg.Simulation.Jitter != 0 {
		t.Fatalf("unexpected simulation: %+v", cfg.Simulation)
	}
	if cfg.Simulation.ChainTime != 5 {
		t.Fatalf("expected chain time default, got %v", cfg.Simulation.ChainTime)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/datamart" || cfg.Notifications.NotifyCompleted {
		t.Fatalf("unexpected notifications: %+v", cfg.Notifications)
	}
	if cfg.Notifications.RequestTimeout != 10 {
		t.Fatalf("expected default request timeout, got %d", cfg.Notifications.RequestTimeout)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("DATAMART_API_BIND", "0.0.0.0:8123")
	t.Setenv("DATAMART_LOG_LEVEL", "warn")
	t.Setenv("DATAMART_API_TOKEN", "secret")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIBind != "0.0.0.0:8123" {
		t.Fatalf("expected env api bind, got %q", cfg.Paths.APIBind)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Fatalf("expected env api token, got %q", cfg.Paths.APIToken)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bind", func(c *config.Config) { c.Paths.APIBind = "nope" }, "paths.api_bind"},
		{"jitter", func(c *config.Config) { c.Simulation.Jitter = 2 }, "simulation.jitter"},
		{"unit", func(c *config.Config) { c.Simulation.TimeUnitMS = -1 }, "simulation.time_unit_ms"},
		{"bucket", func(c *config.Config) { c.Tracker.ProgressBucket = 150 }, "tracker.progress_bucket"},
		{"ntfy", func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/topic" }, "notifications.ntfy_topic"},
		{"level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %s error, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	def := config.Default()
	if decoded.Simulation != def.Simulation {
		t.Fatalf("sample simulation %+v differs from defaults %+v", decoded.Simulation, def.Simulation)
	}
	if decoded.Paths.APIBind != def.Paths.APIBind {
		t.Fatalf("sample api bind %q differs from default %q", decoded.Paths.APIBind, def.Paths.APIBind)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
