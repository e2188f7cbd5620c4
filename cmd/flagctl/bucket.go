package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cgk-platform/cgk-sub021/pkg/bucket"
)

var errInvalidSalt = errors.New("salt must be 32 lowercase hex characters")

func newBucketCmd() *cobra.Command {
	var (
		percentage int
		variants   []string
	)

	cmd := &cobra.Command{
		Use:   "bucket <identifier> <salt>",
		Short: "Print the rollout bucket of an identifier",
		Long: `Print the bucket (0-99) an identifier hashes to under a flag salt.
With --percentage the rollout decision is printed too; with --variant the
variant the identifier would be assigned.`,
		Example: `  flagctl bucket u-1 0123456789abcdef0123456789abcdef --percentage 25
  flagctl bucket u-1 0123456789abcdef0123456789abcdef --variant blue=50 --variant green=50`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, salt := args[0], args[1]
			if !bucket.IsValidSalt(salt) {
				return errInvalidSalt
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bucket: %d\n", bucket.Bucket(id, salt))

			if cmd.Flags().Changed("percentage") {
				fmt.Fprintf(out, "in rollout (%d%%): %t\n", percentage, bucket.InRollout(id, salt, percentage))
			}

			if len(variants) > 0 {
				weighted, err := parseVariants(variants)
				if err != nil {
					return err
				}
				key, err := bucket.SelectVariant(id, salt, weighted)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "variant: %s\n", key)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&percentage, "percentage", "p", 0, "rollout percentage to test against")
	cmd.Flags().StringSliceVar(&variants, "variant", nil, "variant as key=weight, in flag order, repeatable")

	return cmd
}

// parseVariants keeps the order given on the command line, which decides
// the cumulative ranges.
func parseVariants(specs []string) ([]bucket.Weighted, error) {
	out := make([]bucket.Weighted, 0, len(specs))
	for _, s := range specs {
		key, raw, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variant %q: want key=weight", s)
		}
		weight, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid weight of variant %q: %w", key, err)
		}
		out = append(out, bucket.Weighted{Key: key, Weight: weight})
	}
	return out, nil
}
