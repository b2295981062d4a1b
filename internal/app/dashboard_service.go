// internal/app/dashboard_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pastoral_care_worker/internal/domain/campus"
	"pastoral_care_worker/internal/domain/careevent"
	"pastoral_care_worker/internal/domain/followup"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/infra/clock"
)

// DashboardStats is the per-campus aggregate staff see on the dashboard.
type DashboardStats struct {
	CampusID       string    `json:"campus_id"`
	TotalMembers   int       `json:"total_members"`
	ActiveMembers  int       `json:"active_members"`
	AtRiskMembers  int       `json:"at_risk_members"`
	Disconnected   int       `json:"disconnected_members"`
	PendingTasks   int       `json:"pending_tasks"`
	GriefDue       int       `json:"grief_due"`
	AccidentDue    int       `json:"accident_due"`
	BirthdaysToday int       `json:"birthdays_today"`
	CalculatedAt   time.Time `json:"calculated_at"`
}

// DashboardCache is the slice of the cache the dashboard needs.
// *cache.Service implements it.
type DashboardCache interface {
	GetDashboard(ctx context.Context, campusID string, dst any) bool
	SetDashboard(ctx context.Context, campusID string, stats any) bool
}

type DashboardService interface {
	Stats(ctx context.Context, campusID string) (*DashboardStats, error)
	Refresh(ctx context.Context) (int, error)
}

type DashboardServiceImpl struct {
	campuses campus.Repository
	members  member.Repository
	events   careevent.Repository
	stages   followup.Repository
	cache    DashboardCache
	clock    clock.Source
	logger   *logrus.Entry
}

func NewDashboardServiceImpl(
	campuses campus.Repository,
	members member.Repository,
	events careevent.Repository,
	stages followup.Repository,
	cache DashboardCache,
	clk clock.Source,
	logger *logrus.Entry,
) *DashboardServiceImpl {
	return &DashboardServiceImpl{
		campuses: campuses,
		members:  members,
		events:   events,
		stages:   stages,
		cache:    cache,
		clock:    clk,
		logger:   logger,
	}
}

// Stats serves the cached aggregate when present and recomputes it otherwise.
// A cache outage only costs the recomputation.
func (s *DashboardServiceImpl) Stats(ctx context.Context, campusID string) (*DashboardStats, error) {
	if _, err := s.campuses.GetByID(ctx, campusID); err != nil {
		return nil, fmt.Errorf("failed to load campus %s: %w", campusID, err)
	}
	var cached DashboardStats
	if s.cache != nil && s.cache.GetDashboard(ctx, campusID, &cached) {
		return &cached, nil
	}
	stats, err := s.compute(ctx, campusID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetDashboard(ctx, campusID, stats)
	}
	return stats, nil
}

// Refresh recomputes and stores the aggregate of every active campus.
func (s *DashboardServiceImpl) Refresh(ctx context.Context) (int, error) {
	campuses, err := s.campuses.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active campuses: %w", err)
	}
	refreshed := 0
	for _, c := range campuses {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		stats, err := s.compute(ctx, c.ID)
		if err != nil {
			s.logger.WithError(err).WithField("campus_id", c.ID).Error("Failed to compute dashboard stats")
			continue
		}
		if s.cache != nil && s.cache.SetDashboard(ctx, c.ID, stats) {
			refreshed++
		}
	}
	s.logger.WithField("campuses", refreshed).Info("Dashboard cache refreshed")
	return refreshed, nil
}

func (s *DashboardServiceImpl) compute(ctx context.Context, campusID string) (*DashboardStats, error) {
	today := s.clock.Today()
	counts, err := s.members.CountByEngagement(ctx, campusID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	pending, err := s.events.CountPending(ctx, campusID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending events: %w", err)
	}
	grief, err := s.stages.ListDue(ctx, campusID, followup.KindGrief, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list grief stages: %w", err)
	}
	accident, err := s.stages.ListDue(ctx, campusID, followup.KindAccident, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list accident follow-ups: %w", err)
	}
	birthdays, err := s.events.ListPending(ctx, campusID, careevent.PendingFilter{
		Types: []careevent.EventType{careevent.TypeBirthday},
		From:  today,
		To:    today,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list birthdays: %w", err)
	}

	stats := &DashboardStats{
		CampusID:       campusID,
		ActiveMembers:  counts[member.StatusActive],
		AtRiskMembers:  counts[member.StatusAtRisk],
		Disconnected:   counts[member.StatusDisconnected],
		PendingTasks:   pending,
		GriefDue:       len(grief),
		AccidentDue:    len(accident),
		BirthdaysToday: len(birthdays),
		CalculatedAt:   s.clock.Now(),
	}
	stats.TotalMembers = stats.ActiveMembers + stats.AtRiskMembers + stats.Disconnected
	return stats, nil
}
