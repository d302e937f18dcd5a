package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solidqa/partboard/internal/compiler"
	"github.com/solidqa/partboard/internal/server"
	"github.com/solidqa/partboard/internal/storage"
	"github.com/solidqa/partboard/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the statement-compiler HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := storage.Open(ctx, cfg.StorageConfig())
			if err != nil {
				return err
			}
			defer db.Close()

			if addr == "" {
				addr = cfg.Server.Addr
			}
			transport := telemetry.WrapTransport(compiler.New(db))
			srv := server.New(transport, addr, cfg.Server.RequestTimeout)
			fmt.Printf("partboard server listening on %s (database %s)\n", addr, cfg.Database.Name)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :3001)")
	return cmd
}
