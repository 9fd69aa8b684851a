package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cealhq/club-calendar/internal/domain/event"
)

var _ event.Repo = (*EventRepo)(nil)

type EventRepo struct {
	db *DB
}

func NewEventRepo(db *DB) *EventRepo { return &EventRepo{db: db} }

const (
	qEventInsert = `
INSERT INTO events (title, description, "start", "end", location, club_id, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at, updated_at;`

	qEventByID = `
SELECT e.id, e.title, e.description, e."start", e."end", e.location,
       e.club_id, e.created_by, e.created_at, e.updated_at,
       u.first_name, u.last_name, u.username
FROM events e
JOIN users u ON u.id = e.created_by
WHERE e.id = $1;`

	qEventNewForClub = `
SELECT e.id, e.title, e.description, e."start", e."end", e.location,
       e.club_id, e.created_by, e.created_at, e.updated_at,
       u.first_name, u.last_name, u.username
FROM events e
JOIN users u ON u.id = e.created_by
WHERE e.club_id = $1 AND e.created_at > $2
ORDER BY e."start";`
)

func (r *EventRepo) Create(ctx context.Context, e *event.Event) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.Pool.QueryRow(ctx, qEventInsert,
		e.Title, e.Description, e.Start, e.End, e.Location, e.ClubID, e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("event insert: %w", err)
	}
	return nil
}

func (r *EventRepo) GetByID(ctx context.Context, id int64) (*event.Event, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var e event.Event
	if err := scanEvent(r.db.Pool.QueryRow(ctx, qEventByID, id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EventRepo) ListNewForClub(ctx context.Context, clubID int64, since time.Time) ([]*event.Event, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qEventNewForClub, clubID, since)
	if err != nil {
		return nil, fmt.Errorf("query new events: %w", err)
	}
	defer rows.Close()

	var out []*event.Event
	for rows.Next() {
		var e event.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func scanEvent(row pgx.Row, out *event.Event) error {
	if err := row.Scan(
		&out.ID,
		&out.Title,
		&out.Description,
		&out.Start,
		&out.End,
		&out.Location,
		&out.ClubID,
		&out.CreatedBy,
		&out.CreatedAt,
		&out.UpdatedAt,
		&out.CreatorFirstName,
		&out.CreatorLastName,
		&out.CreatorUsername,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan event: %w", err)
	}
	return nil
}
