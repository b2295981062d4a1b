// internal/app/timeline_service.go
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/careevent"
	"pastoral_care_worker/internal/domain/followup"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/domain/notification"
	"pastoral_care_worker/internal/infra/clock"
)

var (
	ErrStageNotPending     = errors.New("follow-up stage is already completed or ignored")
	ErrReminderUnsupported = errors.New("reminders are only sent for grief stages")
	ErrMemberHasNoPhone    = errors.New("member has no phone number")
)

// TimelineService expands trigger events into follow-up stages and records
// what staff do with each stage.
type TimelineService interface {
	Generate(ctx context.Context, event *careevent.CareEvent) ([]*followup.Stage, error)
	CompleteStage(ctx context.Context, campusID, stageID string, by activity.Actor, notes string) (*followup.Stage, error)
	IgnoreStage(ctx context.Context, campusID, stageID string, by activity.Actor) (*followup.Stage, error)
	UndoStage(ctx context.Context, campusID, stageID string) (*followup.Stage, error)
	ListMemberTimeline(ctx context.Context, campusID, memberID string) ([]*followup.Stage, error)
	SendStageReminder(ctx context.Context, campusID, stageID string) (*notification.Log, error)
}

type TimelineServiceImpl struct {
	stages     followup.Repository
	events     careevent.Repository
	members    member.Repository
	activity   activity.Repository
	engagement EngagementService
	notifier   NotificationService
	cache      DashboardInvalidator
	clock      clock.Source
	churchName string
	logger     *logrus.Entry
}

func NewTimelineServiceImpl(
	stages followup.Repository,
	events careevent.Repository,
	members member.Repository,
	activityRepo activity.Repository,
	engagement EngagementService,
	notifier NotificationService,
	cache DashboardInvalidator,
	clk clock.Source,
	churchName string,
	logger *logrus.Entry,
) *TimelineServiceImpl {
	return &TimelineServiceImpl{
		stages:     stages,
		events:     events,
		members:    members,
		activity:   activityRepo,
		engagement: engagement,
		notifier:   notifier,
		cache:      invalidatorOrNoop(cache),
		clock:      clk,
		churchName: churchName,
		logger:     logger,
	}
}

// Generate inserts one stage per template step, in order. It does not check
// for an existing timeline; the store's natural key rejects a second run with
// followup.ErrDuplicateStage. On failure it returns the stages already
// written together with the error. Audit events never trigger a timeline.
func (s *TimelineServiceImpl) Generate(ctx context.Context, event *careevent.CareEvent) ([]*followup.Stage, error) {
	if event.FollowupStageID != "" {
		return nil, nil
	}
	plan := followup.PlanFor(event.EventType, event.EventDate)
	if len(plan) == 0 {
		return nil, nil
	}

	now := s.clock.Now()
	created := make([]*followup.Stage, 0, len(plan))
	for _, p := range plan {
		stage := &followup.Stage{
			CampusID:       event.CampusID,
			MemberID:       event.MemberID,
			TriggerEventID: event.ID,
			Kind:           p.Kind,
			Key:            p.Step.Key,
			ScheduledDate:  p.ScheduledDate,
			CreatedAt:      now,
		}
		if err := s.stages.Create(ctx, stage); err != nil {
			return created, fmt.Errorf("failed to create %s stage %s for event %s: %w", p.Kind, p.Step.Key, event.ID, err)
		}
		created = append(created, stage)
	}

	s.logger.WithFields(logrus.Fields{
		"campus_id": event.CampusID,
		"member_id": event.MemberID,
		"event_id":  event.ID,
		"stages":    len(created),
	}).Info("Follow-up timeline generated")
	return created, nil
}

func (s *TimelineServiceImpl) CompleteStage(ctx context.Context, campusID, stageID string, by activity.Actor, notes string) (*followup.Stage, error) {
	stage, err := s.openStage(ctx, campusID, stageID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := s.stages.MarkCompleted(ctx, campusID, stageID, by, now, notes); err != nil {
		return nil, fmt.Errorf("failed to complete stage %s: %w", stageID, err)
	}
	stage.Completed, stage.CompletedAt, stage.CompletedBy, stage.Notes = true, &now, by.Name, notes

	log := s.stageLogger(stage)
	memberName := s.memberName(ctx, campusID, stage.MemberID)

	audit := &careevent.CareEvent{
		CampusID:        campusID,
		MemberID:        stage.MemberID,
		EventType:       auditEventType(stage.Kind),
		EventDate:       s.clock.Today(),
		Title:           stageTitle(stage),
		Description:     fmt.Sprintf("Completed %s follow-up", stage.Label()),
		Completed:       true,
		CompletedAt:     &now,
		CompletedBy:     by.Name,
		Notes:           notes,
		FollowupStageID: stage.ID,
		CreatedBy:       by.Name,
		CreatedAt:       now,
	}
	if err := s.events.Create(ctx, audit); err != nil {
		log.WithError(err).Warn("Failed to write audit care event for completed stage")
		audit.ID = ""
	}

	s.appendActivity(ctx, log, &activity.Entry{
		CampusID:    campusID,
		ActorID:     by.ID,
		ActorName:   by.Name,
		Action:      activity.ActionCompleteTask,
		MemberID:    stage.MemberID,
		MemberName:  memberName,
		CareEventID: audit.ID,
		StageID:     stage.ID,
		Notes:       fmt.Sprintf("Completed %s", stageTitle(stage)),
		CreatedAt:   now,
	})

	if _, err := s.engagement.RecordContact(ctx, campusID, stage.MemberID, now); err != nil {
		log.WithError(err).Warn("Failed to refresh member contact after stage completion")
	}

	s.cache.InvalidateDashboard(ctx, campusID)
	return stage, nil
}

func (s *TimelineServiceImpl) IgnoreStage(ctx context.Context, campusID, stageID string, by activity.Actor) (*followup.Stage, error) {
	stage, err := s.openStage(ctx, campusID, stageID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := s.stages.MarkIgnored(ctx, campusID, stageID, by, now); err != nil {
		return nil, fmt.Errorf("failed to ignore stage %s: %w", stageID, err)
	}
	stage.Ignored, stage.IgnoredAt, stage.IgnoredBy = true, &now, by.Name

	log := s.stageLogger(stage)
	audit := &careevent.CareEvent{
		CampusID:        campusID,
		MemberID:        stage.MemberID,
		EventType:       auditEventType(stage.Kind),
		EventDate:       s.clock.Today(),
		Title:           stageTitle(stage),
		Description:     fmt.Sprintf("Ignored %s follow-up", stage.Label()),
		Ignored:         true,
		IgnoredAt:       &now,
		IgnoredBy:       by.Name,
		FollowupStageID: stage.ID,
		CreatedBy:       by.Name,
		CreatedAt:       now,
	}
	if err := s.events.Create(ctx, audit); err != nil {
		log.WithError(err).Warn("Failed to write audit care event for ignored stage")
		audit.ID = ""
	}

	s.appendActivity(ctx, log, &activity.Entry{
		CampusID:    campusID,
		ActorID:     by.ID,
		ActorName:   by.Name,
		Action:      activity.ActionIgnoreTask,
		MemberID:    stage.MemberID,
		MemberName:  s.memberName(ctx, campusID, stage.MemberID),
		CareEventID: audit.ID,
		StageID:     stage.ID,
		Notes:       fmt.Sprintf("Ignored %s", stageTitle(stage)),
		CreatedAt:   now,
	})

	s.cache.InvalidateDashboard(ctx, campusID)
	return stage, nil
}

// UndoStage removes the audit events and activity entries linked to the stage
// and reopens it. The member's last contact date is left as is.
func (s *TimelineServiceImpl) UndoStage(ctx context.Context, campusID, stageID string) (*followup.Stage, error) {
	stage, err := s.stages.GetByID(ctx, campusID, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage %s: %w", stageID, err)
	}
	log := s.stageLogger(stage)

	events, err := s.events.DeleteByStage(ctx, campusID, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete audit events for stage %s: %w", stageID, err)
	}
	entries, err := s.activity.DeleteByStage(ctx, campusID, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete activity for stage %s: %w", stageID, err)
	}
	if err := s.stages.Reset(ctx, campusID, stageID); err != nil {
		return nil, fmt.Errorf("failed to reset stage %s: %w", stageID, err)
	}
	stage.Completed, stage.CompletedAt, stage.CompletedBy, stage.Notes = false, nil, "", ""
	stage.Ignored, stage.IgnoredAt, stage.IgnoredBy = false, nil, ""

	log.WithFields(logrus.Fields{"audit_events": events, "activity_entries": entries}).Info("Follow-up stage reopened")
	s.cache.InvalidateDashboard(ctx, campusID)
	return stage, nil
}

func (s *TimelineServiceImpl) ListMemberTimeline(ctx context.Context, campusID, memberID string) ([]*followup.Stage, error) {
	if _, err := s.members.GetByID(ctx, campusID, memberID); err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", memberID, err)
	}
	stages, err := s.stages.ListByMember(ctx, campusID, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages for member %s: %w", memberID, err)
	}
	return stages, nil
}

// SendStageReminder messages the member a grief check-in for the stage and
// flags the stage once the message went out.
func (s *TimelineServiceImpl) SendStageReminder(ctx context.Context, campusID, stageID string) (*notification.Log, error) {
	stage, err := s.stages.GetByID(ctx, campusID, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage %s: %w", stageID, err)
	}
	if stage.Kind != followup.KindGrief {
		return nil, ErrReminderUnsupported
	}
	m, err := s.members.GetByID(ctx, campusID, stage.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", stage.MemberID, err)
	}
	if m.Phone == "" {
		return nil, ErrMemberHasNoPhone
	}

	entry, err := s.notifier.Send(ctx, Request{
		CampusID:  campusID,
		MemberID:  m.ID,
		Channel:   notification.ChannelWhatsApp,
		Type:      notification.MessageGriefReminder,
		Recipient: m.Phone,
		Message:   GriefReminderText(s.churchName, stage.Key),
	})
	if err != nil {
		return entry, err
	}

	log := s.stageLogger(stage)
	if err := s.stages.MarkReminderSent(ctx, campusID, stageID); err != nil {
		log.WithError(err).Warn("Reminder sent but stage could not be flagged")
	}
	s.appendActivity(ctx, log, &activity.Entry{
		CampusID:   campusID,
		ActorID:    activity.SystemActor.ID,
		ActorName:  activity.SystemActor.Name,
		Action:     activity.ActionSendReminder,
		MemberID:   m.ID,
		MemberName: m.Name,
		StageID:    stage.ID,
		Notes:      fmt.Sprintf("Sent %s reminder", stageTitle(stage)),
		CreatedAt:  s.clock.Now(),
	})
	return entry, nil
}

// GriefReminderText is the check-in message a grieving member receives.
func GriefReminderText(churchName string, key followup.StageKey) string {
	return fmt.Sprintf("%s - Grief Support Check-in: It has been %s since your loss. "+
		"We are thinking of you and praying for you. Please reach out if you need support.",
		churchName, key.Label())
}

func (s *TimelineServiceImpl) openStage(ctx context.Context, campusID, stageID string) (*followup.Stage, error) {
	stage, err := s.stages.GetByID(ctx, campusID, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage %s: %w", stageID, err)
	}
	if !stage.Pending() {
		return nil, ErrStageNotPending
	}
	return stage, nil
}

func (s *TimelineServiceImpl) memberName(ctx context.Context, campusID, memberID string) string {
	m, err := s.members.GetByID(ctx, campusID, memberID)
	if err != nil {
		return ""
	}
	return m.Name
}

func (s *TimelineServiceImpl) appendActivity(ctx context.Context, log *logrus.Entry, e *activity.Entry) {
	if err := s.activity.Append(ctx, e); err != nil {
		log.WithError(err).WithField("action", e.Action).Warn("Failed to write activity log")
	}
}

func (s *TimelineServiceImpl) stageLogger(stage *followup.Stage) *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"campus_id": stage.CampusID,
		"stage_id":  stage.ID,
		"stage":     stage.Key,
	})
}

func stageTitle(stage *followup.Stage) string {
	if stage.Kind == followup.KindAccident {
		return "Accident follow-up: " + stage.Label()
	}
	return "Grief support: " + stage.Label()
}

func auditEventType(kind followup.Kind) careevent.EventType {
	if kind == followup.KindAccident {
		return careevent.TypeAccidentIllness
	}
	return careevent.TypeGriefLoss
}
