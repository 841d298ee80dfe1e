package cmd

import (
	"github.com/spf13/cobra"

	"clawdash/internal/dashboard"
	"clawdash/reader/machine"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the published snapshot read-only over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			m := cfg.Collectors.Machine
			live := machine.NewCollector(m.DiskPath, m.CPUInterval, m.ProcessMatch)
			srv := dashboard.NewServer(cfg.Server, cfg.Output.Path, log, live)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
