package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/cgk-platform/cgk-sub021/pkg/config"
	"github.com/cgk-platform/cgk-sub021/pkg/environment"
	"github.com/cgk-platform/cgk-sub021/pkg/flagcache"
	"github.com/cgk-platform/cgk-sub021/pkg/flagstore"
	"github.com/cgk-platform/cgk-sub021/pkg/logger"
	"github.com/cgk-platform/cgk-sub021/pkg/pg"
	"github.com/cgk-platform/cgk-sub021/pkg/redis"
)

var errNoSource = errors.New("no flag source: pass --file, set FLAGS_FILE or use --postgres")

// appConfig is read from the environment after the --env-file files are loaded.
type appConfig struct {
	Environment string `env:"APP_ENV" envDefault:"development"`       // Environment is attached to every evaluation context.
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`            // LogLevel is one of debug, info, warn, error.
	FlagsFile   string `env:"FLAGS_FILE"`                             // FlagsFile is the default YAML flag file.
	RedisPrefix string `env:"FLAGS_REDIS_PREFIX" envDefault:"flags:"` // RedisPrefix namespaces the shared cache keys.
}

// app carries the state shared by all subcommands.
type app struct {
	environ  map[string]string // nil reads the process environment
	envFiles []string

	cfg      appConfig
	cacheCfg flagcache.Config
	env      environment.Environment
	log      *slog.Logger
}

func newRootCmd(environ map[string]string) *cobra.Command {
	a := &app{environ: environ}

	root := &cobra.Command{
		Use:   "flagctl",
		Short: "Evaluate and operate feature flags",
		Long: `flagctl evaluates feature flags from a YAML file or the flag database.

It also computes rollout buckets, validates flag files and runs the
administrative operations of the flag store: migrations, imports and
kill switches. Configuration is read from the environment.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "dotenv files to load before reading configuration")

	root.AddCommand(
		newEvalCmd(a),
		newBucketCmd(),
		newSaltCmd(),
		newValidateCmd(),
		newMigrateCmd(a),
		newImportCmd(a),
		newKillCmd(a),
		newInvalidateCmd(a),
		newHealthCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := config.Load(&a.cfg, a.loadOptions()...); err != nil {
		return err
	}
	if err := config.Load(&a.cacheCfg, a.loadOptions()...); err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(a.cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", a.cfg.LogLevel, err)
	}

	a.env = environment.Parse(a.cfg.Environment)
	a.log = logger.New(
		logger.WithEnvironment(a.env, "flagctl"),
		logger.WithLevel(level),
		logger.WithFormat(logger.FormatText),
		logger.WithOutput(cmd.ErrOrStderr()),
	)
	cmd.SetContext(environment.WithContext(cmd.Context(), a.env))
	return nil
}

func (a *app) loadOptions() []config.Option {
	opts := []config.Option{config.WithEnvFiles(a.envFiles...)}
	if a.environ != nil {
		opts = append(opts, config.WithEnviron(a.environ))
	}
	return opts
}

// openStore opens the YAML file when one is configured, otherwise the flag database.
func (a *app) openStore(ctx context.Context, file string, usePostgres bool) (flagstore.Store, func(), error) {
	if usePostgres {
		return a.openPostgres(ctx)
	}
	if file == "" {
		file = a.cfg.FlagsFile
	}
	if file == "" {
		return nil, nil, errNoSource
	}

	store, err := flagstore.NewMemoryStoreFromFile(file)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func (a *app) openPostgres(ctx context.Context) (flagstore.Store, func(), error) {
	pool, _, err := a.connectPostgres(ctx)
	if err != nil {
		return nil, nil, err
	}
	return flagstore.NewPostgresStore(pool, nil), pool.Close, nil
}

func (a *app) connectPostgres(ctx context.Context) (*pgxpool.Pool, pg.Config, error) {
	var cfg pg.Config
	if err := config.Load(&cfg, a.loadOptions()...); err != nil {
		return nil, cfg, err
	}
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	return pool, cfg, nil
}

func (a *app) connectRedis(ctx context.Context) (*goredis.Client, error) {
	var cfg redis.Config
	if err := config.Load(&cfg, a.loadOptions()...); err != nil {
		return nil, err
	}
	return redis.Connect(ctx, cfg)
}
