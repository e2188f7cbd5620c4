package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cgk-platform/cgk-sub021/pkg/evaluator"
	"github.com/cgk-platform/cgk-sub021/pkg/feature"
	"github.com/cgk-platform/cgk-sub021/pkg/flagcache"
)

func newEvalCmd(a *app) *cobra.Command {
	var (
		file        string
		usePostgres bool
		useRedis    bool
		tenant      string
		user        string
		attrs       map[string]string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "eval [flag-key...]",
		Short: "Evaluate flags for a tenant and user",
		Long: `Evaluate one or more flags through the same cache and pipeline used by
services. Without flag keys every flag of the source is evaluated.`,
		Example: `  flagctl eval new-checkout --file flags.yaml --tenant acme --user u-1
  flagctl eval --postgres --tenant acme --attr plan=pro --attr seats=12 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, closeStore, err := a.openStore(ctx, file, usePostgres)
			if err != nil {
				return err
			}
			defer closeStore()

			opts := []evaluator.Option{
				evaluator.WithConfig(a.cacheCfg),
				evaluator.WithLogger(a.log),
			}
			if useRedis {
				client, err := a.connectRedis(ctx)
				if err != nil {
					return err
				}
				defer client.Close()
				opts = append(opts, evaluator.WithSharedStore(flagcache.NewRedisStore(client, a.cfg.RedisPrefix)))
			}

			eval, err := evaluator.New(store, opts...)
			if err != nil {
				return err
			}
			defer eval.Close()

			ec := feature.EvaluationContext{
				TenantID:   tenant,
				UserID:     user,
				Attributes: parseAttributes(attrs),
			}

			var results []feature.Result
			if len(args) == 0 {
				for _, res := range eval.EvaluateAll(ctx, ec) {
					results = append(results, res)
				}
				slices.SortFunc(results, func(x, y feature.Result) int {
					return strings.Compare(x.FlagKey, y.FlagKey)
				})
			} else {
				for _, key := range args {
					results = append(results, eval.Evaluate(ctx, key, ec))
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			return writeResults(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML flag file (default $FLAGS_FILE)")
	cmd.Flags().BoolVar(&usePostgres, "postgres", false, "read flags from the flag database")
	cmd.Flags().BoolVar(&useRedis, "redis", false, "use the shared Redis cache tier")
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "tenant id")
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id")
	cmd.Flags().StringToStringVarP(&attrs, "attr", "a", nil, "user attribute as key=value, repeatable")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.MarkFlagsMutuallyExclusive("file", "postgres")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

// parseAttributes decodes each value as a YAML scalar so numbers and
// booleans compare as such in rule conditions.
func parseAttributes(raw map[string]string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		var decoded any
		if err := yaml.Unmarshal([]byte(v), &decoded); err != nil || decoded == nil {
			out[k] = v
			continue
		}
		switch decoded.(type) {
		case string, bool, int, float64:
			out[k] = decoded
		default:
			out[k] = v
		}
	}
	return out
}

func writeResults(w io.Writer, results []feature.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FLAG\tVALUE\tREASON\tCACHED")
	for _, res := range results {
		fmt.Fprintf(tw, "%s\t%v\t%s\t%t\n", res.FlagKey, res.Value, res.Reason, res.FromCache)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
