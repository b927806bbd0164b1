package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/alvmarrod/site-mirror/internal/config"
	"github.com/alvmarrod/site-mirror/internal/logging"
	"github.com/alvmarrod/site-mirror/internal/storage"
	"github.com/alvmarrod/site-mirror/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Config files looked up in the working directory when --config is not given
var localConfigFiles = []string{"config.yaml", "config.yml", "config.json"}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemirror",
		Short: "Mirror websites into a normalized, git-tracked directory tree",
		Long: `sitemirror crawls every configured origin from its root page, normalizes the HTML,
downloads referenced static assets and writes only files whose content changed.
After each run the mirror directory is committed and pushed to a git repository.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file (default: ./config.{yaml,json} or $XDG_CONFIG_HOME/site-mirror/config.yaml)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewScheduleCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configPath picks the --config flag, then a config file in the working directory, then the XDG config dirs
func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	for _, name := range localConfigFiles {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to check %s: %w", name, err)
		}
	}
	return config.FindConfig()
}

// environment holds what every command that touches the mirror needs
type environment struct {
	cfg   *config.Config
	store *storage.Storage
	logs  io.Closer
}

func (e *environment) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logrus.Warnf("Failed to close database: %v", err)
		}
	}
	if e.logs != nil {
		e.logs.Close()
	}
}

// setup loads the configuration, configures logging and opens the run history
func setup(cmd *cobra.Command) (*environment, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logs, err := logging.Setup(cfg.Log, verbose)
	if err != nil {
		return nil, err
	}

	logrus.Infof("Site Mirror v%s starting...", version.Version)
	logrus.Infof("Configuration loaded from %s: origins=%v, mirror=%s, workers=%d",
		path, cfg.Origins, cfg.MirrorDir, cfg.ConcurrentWorkers)

	store, err := storage.NewStorage(cfg.DBPath)
	if err != nil {
		logs.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logrus.Debugf("Database initialized: %s", cfg.DBPath)

	return &environment{cfg: cfg, store: store, logs: logs}, nil
}

// signalContext is cancelled on the first SIGINT/SIGTERM so the current run can wind down.
// A second signal exits immediately.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		logrus.Infof("Received signal: %v, finishing in-flight pages...", sig)
		cancel()

		sig, ok = <-sigChan
		if !ok {
			return
		}
		logrus.Warnf("Received second signal (%v) - forcing immediate exit!", sig)
		os.Exit(1)
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
