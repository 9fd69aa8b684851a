package event

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id int64) (*Event, error)
	// ListNewForClub returns the club's events created strictly after since,
	// ordered ascending by start time, with creator identity populated.
	ListNewForClub(ctx context.Context, clubID int64, since time.Time) ([]*Event, error)
}
