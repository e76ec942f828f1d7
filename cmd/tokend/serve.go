package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hellojohn-tokens/internal/app"
	"github.com/dropDatabas3/hellojohn-tokens/internal/config"
	httpx "github.com/dropDatabas3/hellojohn-tokens/internal/http"
	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
)

func serveCmd(get func() (*config.Config, *zap.Logger)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migra el store y levanta HTTP + sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := get()
			ctx := cmd.Context()

			c, err := app.Build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := c.Close(); err != nil {
					log.Warn("store close", logger.Err(err))
				}
			}()

			srv := httpx.NewServer(cfg.Server.Addr, c.Handler, cfg.Server.ShutdownTimeout, log.Named("server"))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx) })
			g.Go(func() error { return c.Sweeper.Run(gctx) })
			return g.Wait()
		},
	}
}
