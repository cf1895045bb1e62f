// Package daemonrun hosts the foreground daemon process used by the
// `datamart daemon` command.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"datamart/internal/config"
	"datamart/internal/daemon"
	"datamart/internal/ledger"
	"datamart/internal/logging"
	"datamart/internal/tracker"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// PIDPath returns where the daemon records its process id.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "datamart.pid")
}

// Run starts the datamart daemon and blocks until cmdCtx is done or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := ledger.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open ledger store", "ledger_open_failed",
			logging.Error(err),
			logging.Hint("check data_dir permissions or remove an incompatible ledger.db"),
		)
		return err
	}

	tr := tracker.New(cfg, store, logger)
	d, err := daemon.New(cfg, store, tr, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.Hint("check configuration and ledger database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("datamart daemon shutting down", logging.Event("daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
