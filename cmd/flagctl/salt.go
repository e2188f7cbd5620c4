package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgk-platform/cgk-sub021/pkg/bucket"
)

func newSaltCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "salt",
		Short: "Generate flag salts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for range max(count, 1) {
				salt, err := bucket.GenerateSalt()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), salt)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of salts to generate")

	return cmd
}
