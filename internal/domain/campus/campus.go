package campus

import (
	"context"
	"fmt"
	"time"
)

// Campus is one tenant. Every member, event and cache entry belongs to exactly one.
type Campus struct {
	ID        string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, c *Campus) error
	GetByID(ctx context.Context, id string) (*Campus, error)
	ListActive(ctx context.Context) ([]*Campus, error)
}

var ErrNotFound = fmt.Errorf("campus not found")
