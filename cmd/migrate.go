package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gridlink/internal/db"
	"github.com/sells-group/gridlink/internal/tiger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the plan store schema",
	Long:  "Creates the plan tables of the configured store. With --tiger on Postgres it also creates the county subdivision table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		zap.L().Info("store schema applied", zap.String("driver", cfg.Store.Driver))

		withTiger, _ := cmd.Flags().GetBool("tiger")
		if !withTiger {
			return nil
		}
		if cfg.Store.Driver != "postgres" {
			return eris.New("migrate: --tiger requires the postgres store driver")
		}
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := tiger.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		zap.L().Info("subdivision schema applied", zap.String("table", tiger.SubdivisionTable))
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("tiger", false, "also create the TIGER county subdivision table (postgres only)")
	rootCmd.AddCommand(migrateCmd)
}
