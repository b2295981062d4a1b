// internal/app/care_event_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/careevent"
	"pastoral_care_worker/internal/domain/followup"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/infra/clock"
)

var (
	ErrInvalidEventType  = errors.New("invalid care event type")
	ErrEventNotPending   = errors.New("care event is already completed or ignored")
	ErrMissingEventField = errors.New("care event is missing a required field")
)

// CareEventService creates and closes care events. Creating a grief or
// accident event also lays down its follow-up timeline.
type CareEventService interface {
	Create(ctx context.Context, in CreateCareEventInput) (*CreateResult, error)
	Complete(ctx context.Context, campusID, eventID string, by activity.Actor, notes string) (*careevent.CareEvent, error)
	Ignore(ctx context.Context, campusID, eventID string, by activity.Actor) (*careevent.CareEvent, error)
	Undo(ctx context.Context, campusID, eventID string) (*careevent.CareEvent, error)
	Delete(ctx context.Context, campusID, eventID string, by activity.Actor) error
	ListByMember(ctx context.Context, campusID, memberID string) ([]*careevent.CareEvent, error)
	ListDue(ctx context.Context, campusID string, day time.Time, limit int) ([]*careevent.CareEvent, error)
}

type CreateCareEventInput struct {
	CampusID    string
	MemberID    string
	EventType   careevent.EventType
	EventDate   time.Time
	Title       string
	Description string
	By          activity.Actor
}

// CreateResult carries the stored event and whatever timeline was written.
// Warnings describe secondary writes that failed without undoing the event.
type CreateResult struct {
	Event    *careevent.CareEvent
	Stages   []*followup.Stage
	Warnings []string
}

type CareEventServiceImpl struct {
	events     careevent.Repository
	members    member.Repository
	activity   activity.Repository
	timeline   TimelineService
	engagement EngagementService
	cache      DashboardInvalidator
	clock      clock.Source
	logger     *logrus.Entry
}

func NewCareEventServiceImpl(
	events careevent.Repository,
	members member.Repository,
	activityRepo activity.Repository,
	timeline TimelineService,
	engagement EngagementService,
	cache DashboardInvalidator,
	clk clock.Source,
	logger *logrus.Entry,
) *CareEventServiceImpl {
	return &CareEventServiceImpl{
		events:     events,
		members:    members,
		activity:   activityRepo,
		timeline:   timeline,
		engagement: engagement,
		cache:      invalidatorOrNoop(cache),
		clock:      clk,
		logger:     logger,
	}
}

func (s *CareEventServiceImpl) Create(ctx context.Context, in CreateCareEventInput) (*CreateResult, error) {
	if !in.EventType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEventType, in.EventType)
	}
	if in.CampusID == "" || in.MemberID == "" || in.EventDate.IsZero() {
		return nil, ErrMissingEventField
	}
	m, err := s.members.GetByID(ctx, in.CampusID, in.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", in.MemberID, err)
	}

	now := s.clock.Now()
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = defaultTitle(in.EventType)
	}
	event := &careevent.CareEvent{
		CampusID:    in.CampusID,
		MemberID:    in.MemberID,
		EventType:   in.EventType,
		EventDate:   clock.StartOfDay(in.EventDate.In(s.clock.Location())),
		Title:       title,
		Description: in.Description,
		CreatedBy:   in.By.Name,
		CreatedAt:   now,
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create care event: %w", err)
	}
	event.MemberName = m.Name

	log := s.logger.WithFields(logrus.Fields{
		"campus_id": in.CampusID,
		"event_id":  event.ID,
		"type":      event.EventType,
	})
	result := &CreateResult{Event: event}

	stages, err := s.timeline.Generate(ctx, event)
	result.Stages = stages
	if err != nil {
		log.WithError(err).WithField("created_stages", len(stages)).Warn("Follow-up timeline only partially generated")
		result.Warnings = append(result.Warnings, fmt.Sprintf("follow-up timeline incomplete (%d stages written): %v", len(stages), err))
	}

	if err := s.activity.Append(ctx, &activity.Entry{
		CampusID:    in.CampusID,
		ActorID:     in.By.ID,
		ActorName:   in.By.Name,
		Action:      activity.ActionCreateCareEvent,
		MemberID:    m.ID,
		MemberName:  m.Name,
		CareEventID: event.ID,
		Notes:       fmt.Sprintf("Created %s: %s", event.EventType, event.Title),
		CreatedAt:   now,
	}); err != nil {
		log.WithError(err).Warn("Failed to write activity log")
		result.Warnings = append(result.Warnings, "activity log not written")
	}

	s.cache.InvalidateDashboard(ctx, in.CampusID)
	return result, nil
}

func (s *CareEventServiceImpl) Complete(ctx context.Context, campusID, eventID string, by activity.Actor, notes string) (*careevent.CareEvent, error) {
	event, err := s.openEvent(ctx, campusID, eventID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := s.events.MarkCompleted(ctx, campusID, eventID, by, now, notes); err != nil {
		return nil, fmt.Errorf("failed to complete care event %s: %w", eventID, err)
	}
	event.Completed, event.CompletedAt, event.CompletedBy, event.Notes = true, &now, by.Name, notes

	log := s.logger.WithFields(logrus.Fields{"campus_id": campusID, "event_id": eventID})
	s.record(ctx, log, event, by, activity.ActionCompleteTask, "Completed", now)
	if _, err := s.engagement.RecordContact(ctx, campusID, event.MemberID, now); err != nil {
		log.WithError(err).Warn("Failed to refresh member contact after completion")
	}
	s.cache.InvalidateDashboard(ctx, campusID)
	return event, nil
}

func (s *CareEventServiceImpl) Ignore(ctx context.Context, campusID, eventID string, by activity.Actor) (*careevent.CareEvent, error) {
	event, err := s.openEvent(ctx, campusID, eventID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := s.events.MarkIgnored(ctx, campusID, eventID, by, now); err != nil {
		return nil, fmt.Errorf("failed to ignore care event %s: %w", eventID, err)
	}
	event.Ignored, event.IgnoredAt, event.IgnoredBy = true, &now, by.Name

	log := s.logger.WithFields(logrus.Fields{"campus_id": campusID, "event_id": eventID})
	s.record(ctx, log, event, by, activity.ActionIgnoreTask, "Ignored", now)
	s.cache.InvalidateDashboard(ctx, campusID)
	return event, nil
}

// Undo reopens a completed or ignored event and drops the activity entries
// that recorded closing it.
func (s *CareEventServiceImpl) Undo(ctx context.Context, campusID, eventID string) (*careevent.CareEvent, error) {
	event, err := s.events.GetByID(ctx, campusID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load care event %s: %w", eventID, err)
	}
	if _, err := s.activity.DeleteByCareEvent(ctx, campusID, eventID, closingActions); err != nil {
		return nil, fmt.Errorf("failed to delete activity for care event %s: %w", eventID, err)
	}
	if err := s.events.Reset(ctx, campusID, eventID); err != nil {
		return nil, fmt.Errorf("failed to reset care event %s: %w", eventID, err)
	}
	event.Completed, event.CompletedAt, event.CompletedBy = false, nil, ""
	event.Ignored, event.IgnoredAt, event.IgnoredBy = false, nil, ""
	event.Notes = ""
	s.cache.InvalidateDashboard(ctx, campusID)
	return event, nil
}

// Delete removes the event and leaves a delete_care_event entry behind.
// Follow-up stages generated from it are kept.
func (s *CareEventServiceImpl) Delete(ctx context.Context, campusID, eventID string, by activity.Actor) error {
	event, err := s.events.GetByID(ctx, campusID, eventID)
	if err != nil {
		return fmt.Errorf("failed to load care event %s: %w", eventID, err)
	}
	if err := s.events.Delete(ctx, campusID, eventID); err != nil {
		return fmt.Errorf("failed to delete care event %s: %w", eventID, err)
	}
	log := s.logger.WithFields(logrus.Fields{"campus_id": campusID, "event_id": eventID})
	s.record(ctx, log, event, by, activity.ActionDeleteCareEvent, "Deleted", s.clock.Now())
	s.cache.InvalidateDashboard(ctx, campusID)
	log.Info("Care event deleted")
	return nil
}

func (s *CareEventServiceImpl) ListByMember(ctx context.Context, campusID, memberID string) ([]*careevent.CareEvent, error) {
	if _, err := s.members.GetByID(ctx, campusID, memberID); err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", memberID, err)
	}
	events, err := s.events.ListByMember(ctx, campusID, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list care events for member %s: %w", memberID, err)
	}
	return events, nil
}

// ListDue returns open events dated on or before day, oldest first.
func (s *CareEventServiceImpl) ListDue(ctx context.Context, campusID string, day time.Time, limit int) ([]*careevent.CareEvent, error) {
	events, err := s.events.ListPending(ctx, campusID, careevent.PendingFilter{To: day, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list open care events: %w", err)
	}
	return events, nil
}

var closingActions = []activity.Action{activity.ActionCompleteTask, activity.ActionIgnoreTask}

func (s *CareEventServiceImpl) openEvent(ctx context.Context, campusID, eventID string) (*careevent.CareEvent, error) {
	event, err := s.events.GetByID(ctx, campusID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load care event %s: %w", eventID, err)
	}
	if !event.Pending() {
		return nil, ErrEventNotPending
	}
	return event, nil
}

func (s *CareEventServiceImpl) record(ctx context.Context, log *logrus.Entry, event *careevent.CareEvent, by activity.Actor, action activity.Action, verb string, at time.Time) {
	name := ""
	if m, err := s.members.GetByID(ctx, event.CampusID, event.MemberID); err == nil {
		name = m.Name
	}
	if err := s.activity.Append(ctx, &activity.Entry{
		CampusID:    event.CampusID,
		ActorID:     by.ID,
		ActorName:   by.Name,
		Action:      action,
		MemberID:    event.MemberID,
		MemberName:  name,
		CareEventID: event.ID,
		Notes:       fmt.Sprintf("%s %s: %s", verb, event.EventType, event.Title),
		CreatedAt:   at,
	}); err != nil {
		log.WithError(err).Warn("Failed to write activity log")
	}
}

func defaultTitle(t careevent.EventType) string {
	switch t {
	case careevent.TypeBirthday:
		return "Birthday"
	case careevent.TypeChildbirth:
		return "Childbirth"
	case careevent.TypeGriefLoss:
		return "Grief / Loss"
	case careevent.TypeNewHouse:
		return "New House"
	case careevent.TypeAccidentIllness:
		return "Accident / Illness"
	case careevent.TypeFinancialAid:
		return "Financial Aid"
	default:
		return "Regular Contact"
	}
}
