// Package postgres stores media metadata in PostgreSQL through pgx/v5.
//
// The schema lives in the embedded Migrations filesystem and is applied with
// pg.Migrate:
//
//	src := pg.Migrations{FS: postgres.Migrations, Dir: postgres.MigrationsDir}
//	err := pg.Migrate(ctx, pool, cfg, src, pg.Up, log)
package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/mediakit/pkg/media"
	"github.com/dmitrymomot/mediakit/pkg/pg"
)

// Migrations holds the goose migrations for the media table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that holds the files.
const MigrationsDir = "migrations"

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Records implements media.Records on the media table.
type Records struct {
	db DBTX
}

// New creates a PostgreSQL-backed record store.
func New(db DBTX) *Records {
	return &Records{db: db}
}

const selectColumns = `id, owner_type, owner_id, filename, mime, size, "group",
	COALESCE(name, ''), COALESCE(alt, ''), COALESCE(title, ''),
	status, weight, created_at, updated_at`

// Insert stores rec and fills its id and timestamps from the database.
func (r *Records) Insert(ctx context.Context, rec *media.Record) error {
	query := `
		INSERT INTO media (owner_type, owner_id, filename, mime, size, "group", name, alt, title, status, weight)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		rec.OwnerType,
		rec.OwnerID,
		rec.Filename,
		rec.MIME,
		rec.Size,
		rec.Group,
		rec.Name,
		rec.Alt,
		rec.Title,
		rec.Status,
		rec.Weight,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}

	return nil
}

// FindByID returns media.ErrNotFound for unknown or malformed ids.
func (r *Records) FindByID(ctx context.Context, id string) (*media.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, media.ErrNotFound
	}

	query := `SELECT ` + selectColumns + ` FROM media WHERE id = $1`

	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, media.ErrNotFound
		}
		return nil, fmt.Errorf("get media: %w", err)
	}

	return rec, nil
}

// Find lists the owner's records in group, or in every group when group is empty.
func (r *Records) Find(ctx context.Context, owner media.OwnerRef, group string) ([]media.Record, error) {
	query := `SELECT ` + selectColumns + `
		FROM media
		WHERE owner_type = $1 AND owner_id = $2 AND ($3 = '' OR "group" = $3)
		ORDER BY weight ASC, created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, owner.Type, owner.ID, group)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	recs := []media.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media row: %w", err)
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media rows: %w", err)
	}

	return recs, nil
}

// Count returns the number of records in (owner, group).
func (r *Records) Count(ctx context.Context, owner media.OwnerRef, group string) (int, error) {
	query := `SELECT count(*) FROM media WHERE owner_type = $1 AND owner_id = $2 AND "group" = $3`

	var n int
	if err := r.db.QueryRow(ctx, query, owner.Type, owner.ID, group).Scan(&n); err != nil {
		return 0, fmt.Errorf("count media: %w", err)
	}

	return n, nil
}

// CountByFilename returns the number of rows sharing filename.
func (r *Records) CountByFilename(ctx context.Context, filename string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM media WHERE filename = $1`, filename).Scan(&n); err != nil {
		return 0, fmt.Errorf("count media by filename: %w", err)
	}

	return n, nil
}

// Update writes name, alt, title and weight. Empty strings are stored as NULL.
func (r *Records) Update(ctx context.Context, rec *media.Record) error {
	if _, err := uuid.Parse(rec.ID); err != nil {
		return media.ErrNotFound
	}

	query := `
		UPDATE media
		SET name = NULLIF($2, ''), alt = NULLIF($3, ''), title = NULLIF($4, ''), weight = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query, rec.ID, rec.Name, rec.Alt, rec.Title, rec.Weight).Scan(&rec.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return media.ErrNotFound
		}
		return fmt.Errorf("update media: %w", err)
	}

	return nil
}

// Delete removes one row.
func (r *Records) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return media.ErrNotFound
	}

	ct, err := r.db.Exec(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return media.ErrNotFound
	}

	return nil
}

func scanRecord(row pgx.Row) (*media.Record, error) {
	var rec media.Record
	err := row.Scan(
		&rec.ID,
		&rec.OwnerType,
		&rec.OwnerID,
		&rec.Filename,
		&rec.MIME,
		&rec.Size,
		&rec.Group,
		&rec.Name,
		&rec.Alt,
		&rec.Title,
		&rec.Status,
		&rec.Weight,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ media.Records = (*Records)(nil)
