package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mypocket/mypocket/pkg/mypocket/database"
	"github.com/mypocket/mypocket/pkg/mypocket/logging"
	"github.com/mypocket/mypocket/pkg/mypocket/server"
	"github.com/spf13/cobra"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			logger := logging.New(cfg.Log.Level, cfg.Log.Format)
			gin.SetMode(cfg.Server.Mode)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)
			logger.Info(ctx, "database ready", "type", cfg.Database.Type)

			srv, err := server.New(ctx, cfg, db, logger)
			if err != nil {
				return err
			}
			defer srv.Close()

			return srv.Run(ctx)
		},
	}
}
