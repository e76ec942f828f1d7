package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/app"
	"github.com/dropDatabas3/hellojohn-tokens/internal/config"
)

func sweepCmd(get func() (*config.Config, *zap.Logger)) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Borra una vez los tokens vencidos y sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := get()
			c, err := app.Build(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := c.Tokens.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d expired tokens\n", n)
			return nil
		},
	}
}
