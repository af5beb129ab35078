// Package pg wires PostgreSQL into mediakit through pgx/v5.
//
// Connect opens a *pgxpool.Pool with retries, Migrate applies an embedded
// goose migration set such as postgres.Migrations, and Healthcheck adapts a
// pool to a health probe. The Is* helpers classify driver errors.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	err = pg.Migrate(ctx, pool, cfg, pg.Migrations{
//		FS:  postgres.Migrations,
//		Dir: postgres.MigrationsDir,
//	}, pg.Up, log)
package pg
