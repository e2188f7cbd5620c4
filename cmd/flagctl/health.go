package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cgk-platform/cgk-sub021/pkg/pg"
	"github.com/cgk-platform/cgk-sub021/pkg/redis"
)

var errUnhealthy = errors.New("one or more dependencies are unhealthy")

func newHealthCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the flag database and Redis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			checks := []struct {
				name string
				run  func(context.Context) error
			}{
				{"postgres", func(ctx context.Context) error {
					pool, _, err := a.connectPostgres(ctx)
					if err != nil {
						return err
					}
					defer pool.Close()
					return pg.Healthcheck(pool)(ctx)
				}},
				{"redis", func(ctx context.Context) error {
					client, err := a.connectRedis(ctx)
					if err != nil {
						return err
					}
					defer client.Close()
					return redis.Healthcheck(client)(ctx)
				}},
			}

			healthy := true
			for _, check := range checks {
				if err := check.run(ctx); err != nil {
					healthy = false
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", check.name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", check.name)
			}
			if !healthy {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall time limit of the checks")

	return cmd
}
