package club

import "context"

type Repo interface {
	Create(ctx context.Context, c *Club) error
	GetByID(ctx context.Context, id int64) (*Club, error)
	GetBySlug(ctx context.Context, slug string) (*Club, error)
	List(ctx context.Context) ([]*Club, error)
}
