package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"datamart/internal/fulfillment"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Simulation controls the jittered delays standing in for lane work.
type Simulation struct {
	TimeUnitMS int     `toml:"time_unit_ms"`
	Jitter     float64 `toml:"jitter"`
	ChainTime  float64 `toml:"chain_time"`
	ReviewTime float64 `toml:"review_time"`
}

// Tracker contains session management settings.
type Tracker struct {
	// Persist records fulfillment progress in the ledger database.
	Persist bool `toml:"persist"`
	// ResumeInterrupted resumes pending records at their stored phase when
	// reopened instead of starting over.
	ResumeInterrupted bool `toml:"resume_interrupted"`
	// ProgressBucket is the percent step between progress log lines.
	ProgressBucket float64 `toml:"progress_bucket"`
}

// Notifications configures ntfy delivery of fulfillment outcomes.
type Notifications struct {
	// NtfyTopic is the full topic URL. Empty disables notifications.
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	// NotifyCompleted also announces successful transactions, not just
	// failures.
	NotifyCompleted bool `toml:"notify_completed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for datamart.
//
// Configuration sections by subsystem:
//   - Paths: ledger/log directories, API bind address and token
//   - Simulation: lane timing for the reference pipelines
//   - Tracker: persistence and resume behaviour
//   - Notifications: ntfy topic for transaction outcomes
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Simulation    Simulation    `toml:"simulation"`
	Tracker       Tracker       `toml:"tracker"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(defaultProjectConfigFile)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath is the SQLite database holding fulfillment records.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.DataDir, "ledger.db")
}

// LockPath is the single-instance daemon lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "datamart.lock")
}

// LogPath is the daemon log file, or empty when file logging is disabled.
func (c *Config) LogPath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "datamart.log")
}

// APIBaseURL is the URL clients use to reach the daemon API.
func (c *Config) APIBaseURL() string {
	return "http://" + c.Paths.APIBind
}

// TimeUnit is the simulated duration of one nominal lane unit.
func (c *Config) TimeUnit() time.Duration {
	return time.Duration(c.Simulation.TimeUnitMS) * time.Millisecond
}

// Timing converts the simulation section into builder timing.
func (c *Config) Timing() fulfillment.Timing {
	timing := fulfillment.DefaultTiming()
	timing.Unit = c.TimeUnit()
	timing.Jitter = c.Simulation.Jitter
	timing.ChainTime = c.Simulation.ChainTime
	timing.ReviewTime = c.Simulation.ReviewTime
	return timing
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
