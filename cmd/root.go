// Package cmd wires the clawdash command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"clawdash/config"
	"clawdash/internal/metrics"
	"clawdash/logger"
)

// Version is overridden at build time with -ldflags "-X clawdash/cmd.Version=...".
var Version = "dev"

var configPath string

// loadConfigFn is swapped in tests.
var loadConfigFn = config.Load

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clawdash",
		Short:         "Assemble and serve the agent operations dashboard snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to configuration file")
	root.AddCommand(newRunCmd(), newServeCmd(), newVersionCmd())
	return root
}

// Execute runs the root command until it returns or a signal arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// setup loads the configuration and applies its logging section.
func setup(ctx context.Context) (*config.Config, *logger.Log, error) {
	log := logger.GetLogger()

	cfg, err := loadConfigFn(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		return nil, nil, fmt.Errorf("configure logger: %w", err)
	}

	if cw := cfg.Metrics.CloudWatch; cw.Enabled {
		metrics.InitCloudWatch(ctx, cw.Region, cw.Namespace, cfg.App.Name)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.App.Name,
		"version":     versionString(cfg),
		"environment": config.CurrentEnvironment(),
	}).Debug("configuration loaded")
	return cfg, log, nil
}

func versionString(cfg *config.Config) string {
	if Version != "dev" || cfg == nil || cfg.App.Version == "" {
		return Version
	}
	return cfg.App.Version
}
