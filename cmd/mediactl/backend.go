package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/mediakit/pkg/config"
	"github.com/dmitrymomot/mediakit/pkg/file"
	"github.com/dmitrymomot/mediakit/pkg/httpserver"
	"github.com/dmitrymomot/mediakit/pkg/logger"
	"github.com/dmitrymomot/mediakit/pkg/media"
	"github.com/dmitrymomot/mediakit/pkg/media/memory"
	"github.com/dmitrymomot/mediakit/pkg/media/mongodb"
	"github.com/dmitrymomot/mediakit/pkg/media/postgres"
	"github.com/dmitrymomot/mediakit/pkg/media/redisstore"
	"github.com/dmitrymomot/mediakit/pkg/mongo"
	"github.com/dmitrymomot/mediakit/pkg/pg"
	"github.com/dmitrymomot/mediakit/pkg/redis"
)

// settings selects the backends. Flags override the environment.
type settings struct {
	Storage string `env:"MEDIA_STORAGE" envDefault:"local"`
	Records string `env:"MEDIA_RECORDS" envDefault:"memory"`
	BaseURL string `env:"MEDIA_BASE_URL" envDefault:"/"`
}

var errUnknownBackend = errors.New("unknown backend")

// backend is an opened store plus what serve needs to probe and close it.
type backend struct {
	store  *media.Store
	checks []httpserver.Check
	closer func()

	// migrate applies the record store schema; nil when there is none.
	migrate func(ctx context.Context, dir pg.Direction) error
}

func (b *backend) Close() {
	if b.closer != nil {
		b.closer()
	}
}

func openBackend(ctx context.Context, st settings, log *slog.Logger) (*backend, error) {
	var cfg media.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}

	blobs, err := openBlobs(ctx, st, cfg)
	if err != nil {
		return nil, err
	}

	b := &backend{}
	records, err := b.openRecords(ctx, st.Records, log)
	if err != nil {
		return b.abort(err)
	}

	b.store, err = media.New(blobs, records, cfg, media.WithLogger(log.With(logger.Component("store"))))
	if err != nil {
		return b.abort(err)
	}
	return b, nil
}

// abort releases whatever was opened so far and returns err.
func (b *backend) abort(err error) (*backend, error) {
	b.Close()
	return nil, err
}

func openBlobs(ctx context.Context, st settings, cfg media.Config) (media.Blobs, error) {
	switch st.Storage {
	case "local", "":
		return file.NewLocalStorage(cfg.PublicPath, st.BaseURL)
	case "s3":
		var s3cfg file.S3Config
		if err := config.Load(&s3cfg); err != nil {
			return nil, err
		}
		return file.NewS3Storage(ctx, s3cfg)
	default:
		return nil, fmt.Errorf("%w: storage %q (want local or s3)", errUnknownBackend, st.Storage)
	}
}

func (b *backend) openRecords(ctx context.Context, kind string, log *slog.Logger) (media.Records, error) {
	switch kind {
	case "memory", "":
		log.WarnContext(ctx, "using in-memory records, nothing survives this process")
		return memory.New(), nil

	case "postgres":
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.closer = pool.Close
		b.checks = append(b.checks, httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(pool)})
		b.migrate = func(ctx context.Context, dir pg.Direction) error {
			return pg.Migrate(ctx, pool, cfg, pg.Migrations{FS: postgres.Migrations, Dir: postgres.MigrationsDir}, dir, log)
		}
		return postgres.New(pool), nil

	case "mongodb":
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		db, err := mongo.NewWithDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.closer = func() { _ = db.Client().Disconnect(context.WithoutCancel(ctx)) }
		b.checks = append(b.checks, httpserver.Check{Name: "mongodb", Probe: mongo.Healthcheck(db.Client())})
		b.migrate = func(ctx context.Context, dir pg.Direction) error {
			if dir != pg.Up {
				return fmt.Errorf("mongodb only supports %q", pg.Up)
			}
			return mongodb.EnsureIndexes(ctx, db.Collection(mongodb.CollectionName))
		}
		return mongodb.New(db), nil

	case "redis":
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.closer = func() { _ = client.Close() }
		b.checks = append(b.checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(client)})
		return redisstore.New(client, redisstore.WithPrefix(cfg.KeyPrefix)), nil

	default:
		return nil, fmt.Errorf("%w: records %q (want memory, postgres, mongodb or redis)", errUnknownBackend, kind)
	}
}
