package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrations points goose at an embedded migration set.
type Migrations struct {
	FS  fs.FS
	Dir string
}

// Direction selects what Migrate does.
type Direction string

const (
	Up     Direction = "up"
	Down   Direction = "down"
	Status Direction = "status"
)

// goose keeps its base FS, dialect and table name in package globals.
var gooseMu sync.Mutex

// Migrate runs goose against pool. Down rolls back a single migration;
// Status logs the state of each one.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, src Migrations, dir Direction, log *slog.Logger) error {
	if src.FS == nil || src.Dir == "" {
		return errors.Join(ErrFailedToApplyMigrations, ErrMigrationsNotProvided)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "failed to close migration connection", slog.Any("error", err))
		}
	}(db)

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(src.FS)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{log: log})
	if cfg.MigrationsTable != "" {
		goose.SetTableName(cfg.MigrationsTable)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	var err error
	switch dir {
	case Up, "":
		err = goose.UpContext(ctx, db, src.Dir)
	case Down:
		err = goose.DownContext(ctx, db, src.Dir)
	case Status:
		err = goose.StatusContext(ctx, db, src.Dir)
	default:
		err = fmt.Errorf("unknown migration direction %q", dir)
	}
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	return nil
}

// gooseLogger routes goose's printf output into slog.
type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
