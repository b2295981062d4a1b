// internal/domain/careevent/careevent.go
package careevent

import (
	"context"
	"fmt"
	"time"

	"pastoral_care_worker/internal/domain/activity"
)

type EventType string

const (
	TypeBirthday        EventType = "birthday"
	TypeChildbirth      EventType = "childbirth"
	TypeGriefLoss       EventType = "grief_loss"
	TypeNewHouse        EventType = "new_house"
	TypeAccidentIllness EventType = "accident_illness"
	TypeFinancialAid    EventType = "financial_aid"
	TypeRegularContact  EventType = "regular_contact"
)

func (t EventType) Valid() bool {
	switch t {
	case TypeBirthday, TypeChildbirth, TypeGriefLoss, TypeNewHouse,
		TypeAccidentIllness, TypeFinancialAid, TypeRegularContact:
		return true
	}
	return false
}

// CareEvent is a pastoral-care task or timeline entry. Corresponds to 'care_events'.
type CareEvent struct {
	ID          string
	CampusID    string
	MemberID    string
	EventType   EventType
	EventDate   time.Time // calendar day, midnight in the organisational timezone
	Title       string
	Description string

	Completed   bool
	CompletedAt *time.Time
	CompletedBy string
	Notes       string
	Ignored     bool
	IgnoredAt   *time.Time
	IgnoredBy   string

	// FollowupStageID links an audit entry to the stage it documents. It is
	// only read by stage undo and never triggers timeline generation.
	FollowupStageID string

	CreatedBy string
	CreatedAt time.Time

	MemberName string // populated by pending-task queries, not persisted
}

// Pending reports whether the event still needs attention.
func (e *CareEvent) Pending() bool {
	return !e.Completed && !e.Ignored
}

// PendingFilter narrows ListPending. Zero-valued bounds are open.
type PendingFilter struct {
	Types []EventType
	From  time.Time // inclusive calendar day
	To    time.Time // inclusive calendar day
	Limit int
}

type Repository interface {
	Create(ctx context.Context, e *CareEvent) error
	GetByID(ctx context.Context, campusID, eventID string) (*CareEvent, error)
	ListByMember(ctx context.Context, campusID, memberID string) ([]*CareEvent, error)
	// ListPending returns events that are neither completed nor ignored, with MemberName set.
	ListPending(ctx context.Context, campusID string, f PendingFilter) ([]*CareEvent, error)
	CountPending(ctx context.Context, campusID string) (int, error)

	MarkCompleted(ctx context.Context, campusID, eventID string, by activity.Actor, at time.Time, notes string) error
	MarkIgnored(ctx context.Context, campusID, eventID string, by activity.Actor, at time.Time) error
	Reset(ctx context.Context, campusID, eventID string) error
	Delete(ctx context.Context, campusID, eventID string) error
	DeleteByStage(ctx context.Context, campusID, stageID string) (int64, error)
}

var ErrNotFound = fmt.Errorf("care event not found")
