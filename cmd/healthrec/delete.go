package main

import (
	"github.com/spf13/cobra"

	"healthrec/internal/api"
	"healthrec/internal/config"
)

func newDeleteCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record and its data file",
		Args:  requireRecordID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := parseRecordIDArg(args[0])
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.DeleteRecord(cmd.Context(), id)
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(resp)
				}
				if !resp.BlobRemoved {
					return writePlain("deleted %d (data file %s was not removed; run healthrec sweep --apply)\n", resp.ID, resp.BlobID)
				}
				return writePlain("deleted %d\n", resp.ID)
			})
		},
	}
}
