package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cealhq/club-calendar/internal/domain/user"
	"github.com/cealhq/club-calendar/internal/localtime"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, username, first_name, last_name, club_id, sub_club_id,
       notification_enabled, notification_time, timezone, last_notification_sent_at,
       created_at, updated_at`

const (
	qUserInsert = `
INSERT INTO users (email, username, first_name, last_name, club_id, sub_club_id,
                   notification_enabled, notification_time, timezone)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + userColumns + `;`

	qUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1;`

	qUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1;`

	qUserNotifiable = `
SELECT ` + userColumns + `
FROM users
WHERE notification_enabled = TRUE AND notification_time IS NOT NULL
ORDER BY id;`

	qUserSetLastNotified = `
UPDATE users
SET last_notification_sent_at = $2,
    updated_at                = NOW()
WHERE id = $1;`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if u.Timezone == "" {
		u.Timezone = user.DefaultTimezone
	}
	row := r.db.Pool.QueryRow(ctx, qUserInsert,
		u.Email, u.Username, u.FirstName, u.LastName,
		u.ClubID, u.SubClubID,
		u.NotificationEnabled, notifMinutes(u.NotificationTime), u.Timezone,
	)
	if err := scanUser(row, u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserByID, id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserByEmail, email), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ListNotifiable(ctx context.Context) ([]*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qUserNotifiable)
	if err != nil {
		return nil, fmt.Errorf("query notifiable users: %w", err)
	}
	defer rows.Close()

	var out []*user.User
	for rows.Next() {
		var u user.User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *UserRepo) SetLastNotified(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	cmd, err := eq.Exec(ctx, qUserSetLastNotified, id, at)
	if err != nil {
		return fmt.Errorf("set last notified: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row, out *user.User) error {
	var notifMin *int16
	if err := row.Scan(
		&out.ID,
		&out.Email,
		&out.Username,
		&out.FirstName,
		&out.LastName,
		&out.ClubID,
		&out.SubClubID,
		&out.NotificationEnabled,
		&notifMin,
		&out.Timezone,
		&out.LastNotificationSentAt,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan user: %w", err)
	}
	if notifMin != nil {
		t := localtime.FromMinutes(int(*notifMin))
		out.NotificationTime = &t
	} else {
		out.NotificationTime = nil
	}
	return nil
}

func notifMinutes(t *localtime.TimeOfDay) *int16 {
	if t == nil {
		return nil
	}
	m := int16(t.Minutes())
	return &m
}
