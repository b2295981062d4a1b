// internal/domain/activity/activity.go
package activity

import (
	"context"
	"time"
)

// Action identifies what a staff member did.
type Action string

const (
	ActionCreateCareEvent Action = "create_care_event"
	ActionCompleteTask    Action = "complete_task"
	ActionIgnoreTask      Action = "ignore_task"
	ActionDeleteCareEvent Action = "delete_care_event"
	ActionSendReminder    Action = "send_reminder"
	ActionRecordContact   Action = "record_contact"
)

// Actor is the staff user performing a mutation.
type Actor struct {
	ID   string
	Name string
}

// SystemActor is used for writes made by scheduled jobs.
var SystemActor = Actor{ID: "system", Name: "System"}

// Entry is one append-only audit record. Corresponds to 'activity_logs'.
type Entry struct {
	ID          string
	CampusID    string
	ActorID     string
	ActorName   string
	Action      Action
	MemberID    string
	MemberName  string
	CareEventID string // empty when not tied to a care event
	StageID     string // follow-up stage this entry documents; used by stage undo
	Notes       string
	CreatedAt   time.Time
}

// Repository is the activity sink. Entries are only read back for cleanup on undo.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	DeleteByStage(ctx context.Context, campusID, stageID string) (int64, error)
	// DeleteByCareEvent removes the event's entries whose action is in actions.
	DeleteByCareEvent(ctx context.Context, campusID, careEventID string, actions []Action) (int64, error)
	ListByCampus(ctx context.Context, campusID string, limit int) ([]*Entry, error)
}
