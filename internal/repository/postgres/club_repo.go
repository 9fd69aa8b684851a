package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cealhq/club-calendar/internal/domain/club"
)

var _ club.Repo = (*ClubRepo)(nil)

type ClubRepo struct {
	db *DB
}

func NewClubRepo(db *DB) *ClubRepo { return &ClubRepo{db: db} }

const (
	qClubInsert = `
INSERT INTO clubs (slug, name, color)
VALUES ($1, $2, $3)
RETURNING id, slug, name, color, created_at, updated_at;`

	qClubByID = `
SELECT id, slug, name, color, created_at, updated_at
FROM clubs
WHERE id = $1;`

	qClubBySlug = `
SELECT id, slug, name, color, created_at, updated_at
FROM clubs
WHERE slug = $1;`

	qClubList = `
SELECT id, slug, name, color, created_at, updated_at
FROM clubs
ORDER BY name;`
)

func (r *ClubRepo) Create(ctx context.Context, c *club.Club) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if c.Color == "" {
		c.Color = "#3B82F6"
	}
	if err := scanClub(r.db.Pool.QueryRow(ctx, qClubInsert, c.Slug, c.Name, c.Color), c); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("club insert: %w", err)
	}
	return nil
}

func (r *ClubRepo) GetByID(ctx context.Context, id int64) (*club.Club, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c club.Club
	if err := scanClub(r.db.Pool.QueryRow(ctx, qClubByID, id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClubRepo) GetBySlug(ctx context.Context, slug string) (*club.Club, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c club.Club
	if err := scanClub(r.db.Pool.QueryRow(ctx, qClubBySlug, slug), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClubRepo) List(ctx context.Context) ([]*club.Club, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qClubList)
	if err != nil {
		return nil, fmt.Errorf("query clubs: %w", err)
	}
	defer rows.Close()

	var out []*club.Club
	for rows.Next() {
		var c club.Club
		if err := scanClub(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func scanClub(row pgx.Row, out *club.Club) error {
	if err := row.Scan(&out.ID, &out.Slug, &out.Name, &out.Color, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan club: %w", err)
	}
	return nil
}
