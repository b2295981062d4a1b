// internal/domain/notification/repository.go
package notification

import (
	"context"
	"fmt"
	"time"
)

// Repository persists notification logs. Every read is scoped by campus id.
type Repository interface {
	Create(ctx context.Context, l *Log) error
	// IncrementAttempts bumps the attempt counter and returns the new value.
	IncrementAttempts(ctx context.Context, id string) (int, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, lastError string, at time.Time) error
	GetByID(ctx context.Context, campusID, id string) (*Log, error)
	ListRecent(ctx context.Context, campusID string, limit int) ([]*Log, error)
}

var ErrLogNotFound = fmt.Errorf("notification log not found")
