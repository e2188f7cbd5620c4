package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgk-platform/cgk-sub021/pkg/evaluator"
	"github.com/cgk-platform/cgk-sub021/pkg/flagstore"
)

func newInvalidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate [flag-key...]",
		Short: "Drop flags from every cache",
		Long: `Remove flags from the shared cache and tell every running service to drop
its local copy. Without flag keys all flags are invalidated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			opts, cleanup, err := a.fleetOptions(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			// Invalidation never reads flags, so an empty store is enough.
			store, err := flagstore.NewMemoryStore()
			if err != nil {
				return err
			}
			eval, err := evaluator.New(store, opts...)
			if err != nil {
				return err
			}
			defer eval.Close()

			if len(args) == 0 {
				if err := eval.InvalidateAllFlags(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all flags invalidated")
				return nil
			}
			for _, key := range args {
				if err := eval.InvalidateFlag(ctx, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "flag %s invalidated\n", key)
			}
			return nil
		},
	}
}
