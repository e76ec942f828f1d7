package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/app"
	"github.com/dropDatabas3/hellojohn-tokens/internal/config"
)

func migrateCmd(get func() (*config.Config, *zap.Logger)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migraciones del backend configurado",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Aplica las migraciones pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := get()
			st, err := app.OpenStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := st.Start(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s: applied=%v skipped=%v (%s)\n", st.Backend(), res.Applied, res.Skipped, res.Duration)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Lista las migraciones no aplicadas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := get()
			st, err := app.OpenStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			pending, err := st.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Printf("%s: up to date\n", st.Backend())
				return nil
			}
			for _, m := range pending {
				fmt.Printf("%s: pending %04d_%s\n", st.Backend(), m.Version, m.Name)
			}
			return nil
		},
	})
	return cmd
}
