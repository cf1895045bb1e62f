package testsupport

import (
	"path/filepath"
	"testing"

	"datamart/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Simulated lanes run with a 1ms time unit and no jitter so drives finish
// quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = ""
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Simulation.TimeUnitMS = 1
	cfgVal.Simulation.Jitter = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTimeUnit overrides the simulated lane time unit in milliseconds.
func WithTimeUnit(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Simulation.TimeUnitMS = ms
	}
}

// WithAPIToken requires bearer authentication on the daemon API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithoutPersistence disables ledger writes from the tracker.
func WithoutPersistence() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tracker.Persist = false
	}
}

// WithLogDir enables file logging under the test's temp directory.
func WithLogDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.LogDir = filepath.Join(b.baseDir, "logs")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
