package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/gulpwatch/internal/config"
	"github.com/ayusman/gulpwatch/internal/logging"
	"github.com/ayusman/gulpwatch/internal/store"
)

// Version is the application version.
const Version = "0.3.0"

var (
	configPath string
	logLevel   string

	cfg        *config.Config
	logger     = zap.NewNop()
	logCleanup = func() {}
)

var rootCmd = &cobra.Command{
	Use:           "gulpwatch",
	Short:         "Counts gulps from a water bottle using the webcam",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		l, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		logger, logCleanup = l, cleanup
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logCleanup()
		logCleanup = func() {}
	},
}

// Execute runs the root command with a context cancelled on Ctrl+C or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.gulpwatch/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}

// openStore opens the configured database, creating its directory.
func openStore(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}
