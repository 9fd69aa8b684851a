package postgres

import (
	"context"
	"fmt"

	"github.com/cealhq/club-calendar/internal/domain/digest"
)

var _ digest.Repo = (*DigestRepo)(nil)

type DigestRepo struct{ db *DB }

func NewDigestRepo(db *DB) *DigestRepo { return &DigestRepo{db: db} }

const (
	qDigestInsert = `
INSERT INTO digests (user_id, club_id, event_count, sent_at, payload)
VALUES ($1, $2, $3, COALESCE($4, now()), $5)
RETURNING id, sent_at;`

	qDigestByUser = `
SELECT id, user_id, club_id, event_count, sent_at, payload
FROM digests
WHERE user_id = $1
ORDER BY sent_at DESC
LIMIT $2;`
)

func (r *DigestRepo) Create(ctx context.Context, d *digest.Record) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qDigestInsert,
		d.UserID,
		d.ClubID,
		d.EventCount,
		nullTime(d.SentAt),
		d.Payload,
	).Scan(&d.ID, &d.SentAt); err != nil {
		return fmt.Errorf("insert digest: %w", err)
	}
	return nil
}

func (r *DigestRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*digest.Record, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qDigestByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query digests: %w", err)
	}
	defer rows.Close()

	out := make([]*digest.Record, 0, limit)
	for rows.Next() {
		var d digest.Record
		if err := rows.Scan(&d.ID, &d.UserID, &d.ClubID, &d.EventCount, &d.SentAt, &d.Payload); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		dc := d
		out = append(out, &dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
