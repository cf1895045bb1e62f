package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSimulation(); err != nil {
		return err
	}
	if err := c.validateTracker(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q must be host:port: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateSimulation() error {
	if c.Simulation.TimeUnitMS < 0 {
		return errors.New("simulation.time_unit_ms must not be negative")
	}
	if c.Simulation.Jitter < 0 || c.Simulation.Jitter > 1 {
		return errors.New("simulation.jitter must be between 0 and 1")
	}
	if c.Simulation.ChainTime < 0 {
		return errors.New("simulation.chain_time must be positive")
	}
	if c.Simulation.ReviewTime < 0 {
		return errors.New("simulation.review_time must be positive")
	}
	return nil
}

func (c *Config) validateTracker() error {
	if c.Tracker.ProgressBucket < 0 || c.Tracker.ProgressBucket > 100 {
		return errors.New("tracker.progress_bucket must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		u, err := url.Parse(topic)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) URL", topic)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}
