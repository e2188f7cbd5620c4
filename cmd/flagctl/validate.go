package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgk-platform/cgk-sub021/pkg/flagstore"
)

var errInvalidFiles = errors.New("one or more flag files are invalid")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check YAML flag files",
		Long: `Parse and validate YAML flag files. Every flag must carry a salt and
pass the same validation the flag store applies on create.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false
			for _, path := range args {
				flags, err := flagstore.LoadYAMLFile(path)
				if err != nil {
					failed = true
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d flags ok\n", path, len(flags))
			}
			if failed {
				return errInvalidFiles
			}
			return nil
		},
	}
}
