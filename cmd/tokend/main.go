package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/config"
	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
)

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load() // .env opcional

	var (
		cfgPath = envOr("CONFIG_PATH", "")
		cfg     *config.Config
		log     *zap.Logger
	)

	root := &cobra.Command{
		Use:           "tokend",
		Short:         "Servicio de tokens de un solo uso y validation codes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			cfg = c
			env := "dev"
			if c.IsProd() {
				env = "prod"
			}
			log = logger.Init(logger.Config{Env: env, Level: c.Log.Level, ServiceName: "tokend"})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "Ruta al config.yaml (env CONFIG_PATH)")

	get := func() (*config.Config, *zap.Logger) { return cfg, log }
	root.AddCommand(serveCmd(get), migrateCmd(get), sweepCmd(get))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
