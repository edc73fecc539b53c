package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"healthrec/internal/blobstore"
	"healthrec/internal/config"
	"healthrec/internal/server"
	"healthrec/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the healthrec API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}
			if cfg.DataDir == "" {
				return fmt.Errorf("data dir is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default().With("component", "srv")

	addr, err := server.ListenAddr(cfg.APIURL)
	if err != nil {
		return err
	}

	logger.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	bs, err := blobstore.NewLocal(cfg.DataDir, cfg.Uploads.FileExtension)
	if err != nil {
		return err
	}
	logger.Info("data dir ready", "path", bs.Root(), "extension", cfg.Uploads.FileExtension)

	srv := server.New(addr, st, bs, slog.Default())
	srv.SetStorePaths(cfg.DBPath, cfg.DataDir)
	srv.ConfigureUploads(server.UploadOptions{
		MaxBytes:        cfg.Uploads.MaxUploadBytes,
		MultipartMemory: cfg.Uploads.MultipartMaxMemory,
		Extension:       cfg.Uploads.FileExtension,
	})
	srv.ConfigureSweep(cfg.Sweep.GracePeriod.Duration)
	return srv.ListenAndServe(ctx)
}
