package user

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// ListNotifiable returns every user with notifications enabled and a
	// configured notification time. Due-minute filtering happens in process.
	ListNotifiable(ctx context.Context) ([]*User, error)
	// SetLastNotified persists only the watermark column for one user.
	SetLastNotified(ctx context.Context, id int64, at time.Time) error
}
