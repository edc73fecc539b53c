package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"healthrec/internal/api"
	"healthrec/internal/config"
)

type setCmdOptions struct {
	name   string
	age    int
	gender string
}

func newSetCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	opts := &setCmdOptions{}
	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Change the name, age or gender of one record",
		Args:  requireRecordID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := parseRecordIDArg(args[0])
			return runSet(cmd, cfg, opts, out, id)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "new name")
	cmd.Flags().IntVar(&opts.age, "age", 0, ageFlagUsage("new age"))
	cmd.Flags().StringVar(&opts.gender, "gender", "", genderFlagUsage("new gender"))
	return cmd
}

func runSet(cmd *cobra.Command, cfg *config.Config, opts *setCmdOptions, out *outputOptions, id int64) error {
	flags := cmd.Flags()
	if !flags.Changed("name") && !flags.Changed("age") && !flags.Changed("gender") {
		return errors.New("at least one of --name, --age or --gender is required")
	}

	return withClient(cmd.Context(), cfg, func(client *api.Client) error {
		current, err := client.GetRecord(cmd.Context(), id)
		if err != nil {
			return err
		}
		row := api.RecordEditRow{ID: id, Name: current.Name, Age: current.Age, Gender: string(current.Gender)}
		if flags.Changed("name") {
			row.Name = opts.name
		}
		if flags.Changed("age") {
			row.Age = opts.age
		}
		if flags.Changed("gender") {
			row.Gender = opts.gender
		}

		resp, err := client.SaveEdits(cmd.Context(), api.SaveEditsRequest{Rows: []api.RecordEditRow{row}})
		if err != nil {
			return err
		}
		if len(resp.Failed) > 0 {
			return failureError(resp.Failed[0])
		}
		if out.structured() {
			return writeStructured(resp)
		}
		return writeSaveResult(resp)
	})
}

func newEditCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <snapshot>",
		Short: "Save edited rows from a YAML or JSON snapshot",
		Long: "Save edited rows from a snapshot file. A snapshot is the output of " +
			"'healthrec list --yaml' (or --json) with names, ages or genders changed. " +
			"Each row is validated and saved on its own.",
		Args: requireExactlyArgs(1, "snapshot file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rows, err := parseSnapshot(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			return withClient(cmd.Context(), cfg, func(client *api.Client) error {
				resp, err := client.SaveEdits(cmd.Context(), api.SaveEditsRequest{Rows: rows})
				if err != nil {
					return err
				}
				if out.structured() {
					if err := writeStructured(resp); err != nil {
						return err
					}
				} else if err := writeSaveResult(resp); err != nil {
					return err
				}
				if len(resp.Failed) > 0 {
					return fmt.Errorf("%d of %d rows were not saved", len(resp.Failed), len(rows))
				}
				return nil
			})
		},
	}
}

// parseSnapshot accepts either a bare list of rows or a mapping with a rows
// key. JSON input parses as YAML.
func parseSnapshot(data []byte) ([]api.RecordEditRow, error) {
	var rows []api.RecordEditRow
	if err := yaml.Unmarshal(data, &rows); err != nil {
		var req api.SaveEditsRequest
		if err2 := yaml.Unmarshal(data, &req); err2 != nil {
			return nil, fmt.Errorf("parse snapshot: %w", err)
		}
		rows = req.Rows
	}
	if len(rows) == 0 {
		return nil, errors.New("snapshot has no rows")
	}
	for i, row := range rows {
		if row.ID <= 0 {
			return nil, fmt.Errorf("row %d: missing id", i+1)
		}
	}
	return rows, nil
}

func failureError(failure api.SaveEditFailure) error {
	return &api.APIError{Code: failure.Code, ErrorCode: failure.ErrorCode, Message: failure.Error}
}
