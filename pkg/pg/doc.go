// Package pg connects the mail queue to PostgreSQL through a pgx/v5 pool and
// applies embedded goose migrations.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, queue.Migrations, queue.MigrationsDir, cfg, slog.Default()); err != nil {
//	    return err
//	}
//
// Healthcheck returns a func(context.Context) error suitable for readiness probes.
package pg
