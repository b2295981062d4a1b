package httpapi

import (
	"time"

	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/careevent"
	"pastoral_care_worker/internal/domain/followup"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/domain/notification"
	"pastoral_care_worker/internal/domain/user"
)

// JSON shapes for domain types, which carry no tags of their own.

type notificationView struct {
	ID          string                   `json:"id"`
	MemberID    string                   `json:"member_id,omitempty"`
	RecipientID string                   `json:"recipient_id,omitempty"`
	Channel     notification.Channel     `json:"channel"`
	Type        notification.MessageType `json:"message_type"`
	Recipient   string                   `json:"recipient"`
	Message     string                   `json:"message"`
	Status      notification.Status      `json:"status"`
	Attempts    int                      `json:"attempts"`
	LastError   string                   `json:"last_error,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	SentAt      *time.Time               `json:"sent_at,omitempty"`
	FailedAt    *time.Time               `json:"failed_at,omitempty"`
}

func newNotificationView(l *notification.Log) notificationView {
	return notificationView{
		ID:          l.ID,
		MemberID:    l.MemberID,
		RecipientID: l.RecipientID,
		Channel:     l.Channel,
		Type:        l.MessageType,
		Recipient:   l.Recipient,
		Message:     l.Message,
		Status:      l.Status,
		Attempts:    l.Attempts,
		LastError:   l.LastError,
		CreatedAt:   l.CreatedAt,
		SentAt:      l.SentAt,
		FailedAt:    l.FailedAt,
	}
}

type careEventView struct {
	ID          string              `json:"id"`
	EventType   careevent.EventType `json:"event_type"`
	EventDate   string              `json:"event_date"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Completed   bool                `json:"completed"`
	CompletedBy string              `json:"completed_by,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	Ignored     bool                `json:"ignored"`
	IgnoredBy   string              `json:"ignored_by,omitempty"`
	StageID     string              `json:"followup_stage_id,omitempty"`
}

func newCareEventView(e *careevent.CareEvent) careEventView {
	return careEventView{
		ID:          e.ID,
		EventType:   e.EventType,
		EventDate:   e.EventDate.Format(time.DateOnly),
		Title:       e.Title,
		Description: e.Description,
		Completed:   e.Completed,
		CompletedBy: e.CompletedBy,
		Notes:       e.Notes,
		Ignored:     e.Ignored,
		IgnoredBy:   e.IgnoredBy,
		StageID:     e.FollowupStageID,
	}
}

type stageView struct {
	ID            string        `json:"id"`
	Kind          followup.Kind `json:"kind"`
	Label         string        `json:"label"`
	ScheduledDate string        `json:"scheduled_date"`
	Completed     bool          `json:"completed"`
	CompletedBy   string        `json:"completed_by,omitempty"`
	Ignored       bool          `json:"ignored"`
	IgnoredBy     string        `json:"ignored_by,omitempty"`
	ReminderSent  bool          `json:"reminder_sent"`
}

func newStageView(st *followup.Stage) stageView {
	return stageView{
		ID:            st.ID,
		Kind:          st.Kind,
		Label:         st.Label(),
		ScheduledDate: st.ScheduledDate.Format(time.DateOnly),
		Completed:     st.Completed,
		CompletedBy:   st.CompletedBy,
		Ignored:       st.Ignored,
		IgnoredBy:     st.IgnoredBy,
		ReminderSent:  st.ReminderSent,
	}
}

type memberView struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name"`
	EngagementStatus     member.EngagementStatus `json:"engagement_status"`
	DaysSinceLastContact int                     `json:"days_since_last_contact"`
	LastContactDate      string                  `json:"last_contact_date,omitempty"`
	Archived             bool                    `json:"archived"`
}

func newMemberView(m *member.Member) memberView {
	v := memberView{
		ID:                   m.ID,
		Name:                 m.Name,
		EngagementStatus:     m.EngagementStatus,
		DaysSinceLastContact: m.DaysSinceLastContact,
		Archived:             m.IsArchived,
	}
	if m.LastContactDate != nil {
		v.LastContactDate = m.LastContactDate.Format(time.DateOnly)
	}
	return v
}

type staffView struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Role     user.Role `json:"role"`
	Active   bool      `json:"active"`
	Telegram bool      `json:"telegram_linked"`
}

type activityView struct {
	ID          string          `json:"id"`
	Action      activity.Action `json:"action"`
	ActorName   string          `json:"actor_name"`
	MemberName  string          `json:"member_name,omitempty"`
	CareEventID string          `json:"care_event_id,omitempty"`
	StageID     string          `json:"stage_id,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newActivityView(e *activity.Entry) activityView {
	return activityView{
		ID:          e.ID,
		Action:      e.Action,
		ActorName:   e.ActorName,
		MemberName:  e.MemberName,
		CareEventID: e.CareEventID,
		StageID:     e.StageID,
		Notes:       e.Notes,
		CreatedAt:   e.CreatedAt,
	}
}
