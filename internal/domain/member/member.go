// internal/domain/member/member.go
package member

import (
	"context"
	"fmt"
	"time"
)

// Member is a congregant tracked for pastoral care. Corresponds to the 'members' table.
type Member struct {
	ID                   string
	CampusID             string
	Name                 string
	Phone                string
	BirthDate            *time.Time
	LastContactDate      *time.Time // nil when never contacted
	EngagementStatus     EngagementStatus
	DaysSinceLastContact int
	IsArchived           bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Repository defines member persistence. Every method is scoped by campus id.
type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, campusID, memberID string) (*Member, error)
	ListByCampus(ctx context.Context, campusID string) ([]*Member, error)
	// ListByEngagement returns members in any of statuses, longest without contact first.
	ListByEngagement(ctx context.Context, campusID string, statuses []EngagementStatus, limit int) ([]*Member, error)
	CountByEngagement(ctx context.Context, campusID string) (map[EngagementStatus]int, error)

	UpdateLastContact(ctx context.Context, campusID, memberID string, at time.Time) error
	UpdateEngagement(ctx context.Context, campusID, memberID string, status EngagementStatus, days int, updatedAt time.Time) error

	// BulkClassify recomputes engagement for every non-archived member of the
	// campus in one store operation and returns the number of rows touched.
	BulkClassify(ctx context.Context, campusID string, th Thresholds, now time.Time) (int64, error)
	// ClassifyDistribution runs the same classification without persisting.
	ClassifyDistribution(ctx context.Context, campusID string, th Thresholds, now time.Time) (map[EngagementStatus]int, error)
}

var ErrNotFound = fmt.Errorf("member not found")
