package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgk-platform/cgk-sub021/pkg/flagstore"
	"github.com/cgk-platform/cgk-sub021/pkg/pg"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the flag store schema migrations",
		Long: `Apply the embedded flag store migrations to the database named by
PG_CONN_URL. Applied versions are tracked in PG_MIGRATIONS_TABLE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			pool, cfg, err := a.connectPostgres(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pg.Migrate(ctx, pool, flagstore.Migrations, flagstore.MigrationsDir, cfg, a.log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
