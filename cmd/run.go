package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"clawdash/internal/metrics"
	"clawdash/internal/pipeline"
	"clawdash/logger"
	"clawdash/writer"
)

func newRunCmd() *cobra.Command {
	var (
		dryRun bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect every input once and publish the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}
			if output != "" {
				cfg.Output.Path = output
				cfg.Output.LockPath = ""
			}

			p := pipeline.FromConfig(ctx, cfg, versionString(cfg))
			defer func() {
				if err := p.Close(); err != nil {
					log.WithComponent("cli").WithError(err).Warn("failed to close publishers")
				}
			}()

			if dryRun {
				snap, err := p.Build(ctx)
				if err != nil {
					return err
				}
				payload, err := writer.Encode(snap)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(payload)
				return err
			}

			if cfg.Metrics.Textfile != "" {
				id := metrics.RegisterMetricHandler(metrics.Observe)
				defer metrics.UnregisterMetricHandler(id)
			}

			_, err = p.Run(ctx)
			if errors.Is(err, pipeline.ErrRunInProgress) {
				log.WithComponent("cli").WithFields(logger.Fields{"lock": cfg.LockPath()}).Warn("previous run still in progress; skipping")
				return nil
			}
			if err != nil {
				return fmt.Errorf("snapshot run: %w", err)
			}

			if path := cfg.Metrics.Textfile; path != "" {
				if err := metrics.WriteTextfile(path); err != nil {
					log.WithComponent("cli").WithError(err).WithFields(logger.Fields{"path": path}).Warn("failed to write metrics textfile")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the snapshot to stdout instead of publishing")
	cmd.Flags().StringVar(&output, "output", "", "override output.path")
	return cmd
}
