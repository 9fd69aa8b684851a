package digest

import "context"

type Repo interface {
	Create(ctx context.Context, r *Record) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Record, error)
}
