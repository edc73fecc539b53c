package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"healthrec/internal/config"
	"healthrec/internal/format"
)

// outputOptions holds the global structured-output flags.
type outputOptions struct {
	json bool
	yaml bool
}

func (o *outputOptions) structured() bool {
	return o != nil && (o.json || o.yaml)
}

func (o *outputOptions) formatter() format.Formatter {
	if o != nil && o.yaml {
		return format.YAMLFormatter{}
	}
	return format.JSONFormatter{}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	out := &outputOptions{}
	var logLevel string

	cmd := &cobra.Command{
		Use:           "healthrec",
		Short:         "Healthrec registers health data files with their submitter metadata",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if out.json && out.yaml {
				return errors.New("--json and --yaml are mutually exclusive")
			}
			outputFormatter = out.formatter()

			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&out.json, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&out.yaml, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newRegisterCmd(cfg, out),
		newListCmd(cfg, out),
		newShowCmd(cfg, out),
		newSetCmd(cfg, out),
		newEditCmd(cfg, out),
		newDeleteCmd(cfg, out),
		newViewCmd(cfg),
		newSweepCmd(cfg, out),
		newInfoCmd(cfg, out),
		newMigrateCmd(cfg, out),
		newConfigCmd(cfg),
	)

	return cmd
}
