package repo

import (
	"context"
	"time"

	"github.com/cealhq/club-calendar/internal/domain/club"
	"github.com/cealhq/club-calendar/internal/domain/digest"
	"github.com/cealhq/club-calendar/internal/domain/event"
	"github.com/cealhq/club-calendar/internal/domain/user"
)

type UserDirectory struct{ R user.Repo }
type EventBacklog struct{ R event.Repo }
type ClubReader struct{ R club.Repo }
type DigestStore struct{ R digest.Repo }

func (a UserDirectory) ListNotifiable(ctx context.Context) ([]*user.User, error) {
	return a.R.ListNotifiable(ctx)
}

func (a UserDirectory) SetLastNotified(ctx context.Context, id int64, at time.Time) error {
	return a.R.SetLastNotified(ctx, id, at)
}

func (a EventBacklog) ListNewForClub(ctx context.Context, clubID int64, since time.Time) ([]*event.Event, error) {
	return a.R.ListNewForClub(ctx, clubID, since)
}

func (a ClubReader) GetByID(ctx context.Context, id int64) (*club.Club, error) {
	return a.R.GetByID(ctx, id)
}

func (a DigestStore) Create(ctx context.Context, d *digest.Record) error {
	return a.R.Create(ctx, d)
}
