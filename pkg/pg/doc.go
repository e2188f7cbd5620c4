// Package pg bootstraps the PostgreSQL connection used by the flag store.
//
// It wraps pgx/v5 connection pooling and goose/v3 migrations:
//
//   - Config is populated from PG_* environment variables.
//   - Connect opens a *pgxpool.Pool, retrying while the database comes up.
//   - Migrate applies goose migrations from an fs.FS, usually an embed.FS
//     owned by the package that defines the schema.
//   - Healthcheck returns a func(context.Context) error for readiness probes.
//
// Error helpers classify driver errors without leaking pgconn types to callers:
//
//	if pg.IsDuplicateKeyError(err) {
//		return flagstore.ErrFlagExists
//	}
//
// Usage:
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, flagstore.Migrations, flagstore.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
package pg
