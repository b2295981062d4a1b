// internal/domain/followup/stage.go
package followup

import (
	"context"
	"fmt"
	"time"

	"pastoral_care_worker/internal/domain/activity"
)

// Kind separates the grief timeline from accident/illness follow-ups.
type Kind string

const (
	KindGrief    Kind = "grief"
	KindAccident Kind = "accident"
)

// Stage is one dated point of a generated timeline. The natural key
// (member, trigger event, stage key) is unique in the store.
type Stage struct {
	ID             string
	CampusID       string
	MemberID       string
	TriggerEventID string
	Kind           Kind
	Key            StageKey
	ScheduledDate  time.Time

	Completed   bool
	CompletedAt *time.Time
	CompletedBy string
	Notes       string
	Ignored     bool
	IgnoredAt   *time.Time
	IgnoredBy   string

	ReminderSent bool
	CreatedAt    time.Time

	MemberName string // populated by due-stage queries, not persisted
}

// Pending reports whether the stage is still open.
func (s *Stage) Pending() bool {
	return !s.Completed && !s.Ignored
}

// Label is the human-readable stage name.
func (s *Stage) Label() string {
	return s.Key.Label()
}

type Repository interface {
	// Create fails with ErrDuplicateStage when the natural key already exists.
	Create(ctx context.Context, s *Stage) error
	GetByID(ctx context.Context, campusID, stageID string) (*Stage, error)
	ListByMember(ctx context.Context, campusID, memberID string) ([]*Stage, error)
	// ListDue returns pending stages of kind scheduled on or before day, with MemberName set.
	ListDue(ctx context.Context, campusID string, kind Kind, day time.Time) ([]*Stage, error)

	MarkCompleted(ctx context.Context, campusID, stageID string, by activity.Actor, at time.Time, notes string) error
	MarkIgnored(ctx context.Context, campusID, stageID string, by activity.Actor, at time.Time) error
	Reset(ctx context.Context, campusID, stageID string) error
	MarkReminderSent(ctx context.Context, campusID, stageID string) error
}

var ErrNotFound = fmt.Errorf("follow-up stage not found")
var ErrDuplicateStage = fmt.Errorf("duplicate follow-up stage (member_id, trigger_event_id, stage)")
