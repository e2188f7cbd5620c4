package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgk-platform/cgk-sub021/pkg/evaluator"
	"github.com/cgk-platform/cgk-sub021/pkg/feature"
	"github.com/cgk-platform/cgk-sub021/pkg/flagstore"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		update   bool
		noNotify bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a YAML flag file into the flag database",
		Long: `Create every flag of a YAML file in the flag database. Existing flags are
skipped unless --update is given, in which case their definition is replaced
and the overrides of the file are written. Salts of existing flags cannot
change. Running services are notified once the import finished.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			flags, err := flagstore.LoadYAMLFile(args[0])
			if err != nil {
				return err
			}

			store, closeStore, err := a.openPostgres(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			out := cmd.OutOrStdout()
			var created, updated, skipped int
			for _, flag := range flags {
				err := store.Create(ctx, flag)
				switch {
				case err == nil:
					created++
					continue
				case !errors.Is(err, flagstore.ErrFlagExists):
					return fmt.Errorf("import %q: %w", flag.Key, err)
				case !update:
					skipped++
					fmt.Fprintf(out, "skipped %s: already exists\n", flag.Key)
					continue
				}

				if err := store.Update(ctx, flag); err != nil {
					return fmt.Errorf("update %q: %w", flag.Key, err)
				}
				for _, o := range overridesOf(flag) {
					if err := store.SetOverride(ctx, o); err != nil {
						return fmt.Errorf("override %s/%s of %q: %w", o.Scope, o.ScopeID, flag.Key, err)
					}
				}
				updated++
			}
			fmt.Fprintf(out, "created %d, updated %d, skipped %d\n", created, updated, skipped)

			if noNotify || created+updated == 0 {
				return nil
			}

			opts, cleanup, err := a.fleetOptions(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			eval, err := evaluator.New(store, opts...)
			if err != nil {
				return err
			}
			defer eval.Close()
			return eval.InvalidateAllFlags(ctx)
		},
	}
	cmd.Flags().BoolVar(&update, "update", false, "replace flags that already exist")
	cmd.Flags().BoolVar(&noNotify, "no-notify", false, "do not publish an invalidation after the import")

	return cmd
}

func overridesOf(flag *feature.Flag) []feature.Override {
	out := make([]feature.Override, 0, len(flag.TenantOverrides)+len(flag.UserOverrides))
	for _, o := range flag.TenantOverrides {
		out = append(out, o)
	}
	for _, o := range flag.UserOverrides {
		out = append(out, o)
	}
	return out
}
