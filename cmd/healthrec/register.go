package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"healthrec/internal/api"
	"healthrec/internal/config"
	"healthrec/internal/models"
)

type registerCmdOptions struct {
	name   string
	age    int
	gender string
}

func newRegisterCmd(cfg *config.Config, out *outputOptions) *cobra.Command {
	opts := &registerCmdOptions{}
	cmd := &cobra.Command{
		Use:   "register <file>",
		Short: "Register a health data file with its submitter",
		Args:  requireExactlyArgs(1, "data file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, cfg, opts, out, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "submitter name")
	cmd.Flags().IntVar(&opts.age, "age", 0, ageFlagUsage("submitter age"))
	cmd.Flags().StringVar(&opts.gender, "gender", "", genderFlagUsage("submitter gender"))
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("age")
	_ = cmd.MarkFlagRequired("gender")
	return cmd
}

func runRegister(cmd *cobra.Command, cfg *config.Config, opts *registerCmdOptions, out *outputOptions, path string) error {
	if !hasExtension(path, cfg.Uploads.FileExtension) {
		return fmt.Errorf("%s: only %s files can be registered", path, cfg.Uploads.FileExtension)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return withClient(cmd.Context(), cfg, func(client *api.Client) error {
		resp, err := client.Register(cmd.Context(), api.RegisterRequest{
			Name:     opts.name,
			Age:      opts.age,
			Gender:   opts.gender,
			Filename: filepath.Base(path),
		}, f)
		if err != nil {
			return err
		}
		if out.structured() {
			return writeStructured(resp)
		}
		return writePlain("registered %d\n", resp.ID)
	})
}

func hasExtension(path, ext string) bool {
	if ext == "" {
		ext = config.DefaultFileExtension
	}
	return strings.HasSuffix(strings.ToLower(path), strings.ToLower(ext))
}

func ageFlagUsage(label string) string {
	return fmt.Sprintf("%s (%d-%d)", label, models.AgeMin, models.AgeMax)
}

func genderFlagUsage(label string) string {
	return fmt.Sprintf("%s (%s)", label, strings.Join(models.GenderStrings(), " or "))
}
