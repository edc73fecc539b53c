package main

import (
	"os"

	"github.com/spf13/cobra"

	"healthrec/internal/api"
	"healthrec/internal/config"
)

const emptyRecordsMessage = "no records registered"

func newListCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				records, err := client.ListRecords(cmd.Context())
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(records)
				}
				if len(records) == 0 {
					return writePlain("%s\n", emptyRecordsMessage)
				}
				return writeRecordTable(os.Stdout, records)
			})
		},
	}
}

func newShowCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record",
		Args:  requireRecordID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := parseRecordIDArg(args[0])
			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				record, err := client.GetRecord(cmd.Context(), id)
				if err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(record)
				}
				return writeRecordDetail(record)
			})
		},
	}
}
