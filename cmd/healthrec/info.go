package main

import (
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"healthrec/internal/api"
	"healthrec/internal/config"
)

func newInfoCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show database and data directory info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(resp)
				}
				return writeInfo(resp)
			})
		},
	}
	return cmd
}

func writeInfo(resp api.InfoResponse) error {
	_ = writePlain("db_path: %s\n", resp.DBPath)
	_ = writePlain("data_dir: %s\n", resp.DataDir)
	_ = writePlain("schema_version: %d\n", resp.SchemaVersion)
	_ = writePlain("total_records: %s\n", humanize.Comma(int64(resp.TotalRecords)))

	genders := make([]string, 0, len(resp.GenderCounts))
	for gender := range resp.GenderCounts {
		genders = append(genders, gender)
	}
	sort.Strings(genders)
	for _, gender := range genders {
		_ = writePlain("  %s: %d\n", gender, resp.GenderCounts[gender])
	}

	return writePlain("blobs: %d (%s)\n", resp.BlobCount, humanize.IBytes(uint64(max(resp.BlobBytes, 0))))
}
