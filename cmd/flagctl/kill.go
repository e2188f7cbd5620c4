package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgk-platform/cgk-sub021/pkg/evaluator"
)

func newKillCmd(a *app) *cobra.Command {
	var noNotify bool

	cmd := &cobra.Command{
		Use:   "kill <flag-key>",
		Short: "Disable a flag everywhere",
		Long: `Disable a flag in the flag database, clear it from the shared cache and
tell every running service to drop its local copy. Evaluations return the
flag's default value with reason "disabled" once the services received the
invalidation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key := args[0]

			store, closeStore, err := a.openPostgres(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			opts := a.localOptions()
			if !noNotify {
				var cleanup func()
				opts, cleanup, err = a.fleetOptions(ctx)
				if err != nil {
					return err
				}
				defer cleanup()
			}

			eval, err := evaluator.New(store, opts...)
			if err != nil {
				return err
			}
			defer eval.Close()

			if err := eval.KillFlag(ctx, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "flag %s disabled\n", key)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noNotify, "no-notify", false, "only update the database, do not publish an invalidation")

	return cmd
}
