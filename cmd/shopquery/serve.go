package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shopquery/shopquery/api"
	"github.com/shopquery/shopquery/config"
)

func newServeCmd() *cobra.Command {
	var initSchema bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, initSchema)
			if err != nil {
				return err
			}
			defer a.close()

			var pinger api.Pinger
			if a.pool != nil {
				pinger = a.pool
			}
			srv, err := api.NewServer(api.ServerConfig{
				Assistant: a.assistant,
				Addr:      cfg.Addr,
				Pinger:    pinger,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().BoolVar(&initSchema, "init-schema", false, "create database tables on startup")
	return cmd
}
