package main

import (
	"github.com/spf13/cobra"

	"healthrec/internal/api"
	"healthrec/internal/config"
)

func newSweepCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	var req api.SweepRequest

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Report and optionally remove data files without a record",
		Long: "Compare records with the data directory. Without --apply nothing is changed. " +
			"With --apply, orphan data files older than sweep.grace_period are deleted. " +
			"Records whose data file is missing are reported but never removed. " +
			"--verify also recomputes every data file digest.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				report, err := client.Sweep(cmd.Context(), req)
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(report)
				}
				return writeSweepReport(report)
			})
		},
	}

	cmd.Flags().BoolVar(&req.Apply, "apply", false, "delete orphan data files past the grace period")
	cmd.Flags().BoolVar(&req.Verify, "verify", false, "recompute and compare data file digests")
	return cmd
}
