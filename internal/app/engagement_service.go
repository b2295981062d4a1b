// internal/app/engagement_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"pastoral_care_worker/internal/domain/campus"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/infra/clock"
)

// EngagementService keeps members' engagement status in line with their
// last contact date. The per-member, bulk and dry-run paths classify with
// the same thresholds and must agree for the same inputs.
type EngagementService interface {
	RefreshMember(ctx context.Context, campusID, memberID string) (*member.Member, error)
	RecordContact(ctx context.Context, campusID, memberID string, at time.Time) (*member.Member, error)
	RefreshCampus(ctx context.Context, campusID string) (int64, error)
	RefreshAll(ctx context.Context) (*RefreshSummary, error)
	DryRun(ctx context.Context, campusID string) (*Distribution, error)
	Classify(campusID, lastContactDate string) (member.EngagementStatus, int)
}

// Distribution is the result of a dry run.
type Distribution struct {
	CampusID   string                          `json:"campus_id"`
	Thresholds member.Thresholds               `json:"thresholds"`
	Total      int                             `json:"total"`
	Counts     map[member.EngagementStatus]int `json:"counts"`
}

// RefreshSummary reports a scheduled bulk run across campuses.
type RefreshSummary struct {
	Campuses int
	Updated  int64
	Failed   []string
}

type EngagementServiceImpl struct {
	campuses campus.Repository
	members  member.Repository
	settings SettingsProvider
	cache    DashboardInvalidator
	clock    clock.Source
	logger   *logrus.Entry
}

func NewEngagementServiceImpl(
	campuses campus.Repository,
	members member.Repository,
	settings SettingsProvider,
	cache DashboardInvalidator,
	clk clock.Source,
	logger *logrus.Entry,
) *EngagementServiceImpl {
	return &EngagementServiceImpl{
		campuses: campuses,
		members:  members,
		settings: settings,
		cache:    invalidatorOrNoop(cache),
		clock:    clk,
		logger:   logger,
	}
}

func (s *EngagementServiceImpl) RefreshMember(ctx context.Context, campusID, memberID string) (*member.Member, error) {
	m, err := s.members.GetByID(ctx, campusID, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", memberID, err)
	}
	now := s.clock.Now()
	status, days := thresholdsFor(s.settings, campusID, s.logger).Evaluate(m.LastContactDate, now)
	if err := s.members.UpdateEngagement(ctx, campusID, memberID, status, days, now); err != nil {
		return nil, fmt.Errorf("failed to update engagement for member %s: %w", memberID, err)
	}
	m.EngagementStatus = status
	m.DaysSinceLastContact = days
	m.UpdatedAt = now
	s.cache.InvalidateDashboard(ctx, campusID)
	return m, nil
}

func (s *EngagementServiceImpl) RefreshCampus(ctx context.Context, campusID string) (int64, error) {
	th := thresholdsFor(s.settings, campusID, s.logger)
	updated, err := s.members.BulkClassify(ctx, campusID, th, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to bulk classify campus %s: %w", campusID, err)
	}
	s.cache.InvalidateDashboard(ctx, campusID)
	s.logger.WithFields(logrus.Fields{
		"campus_id": campusID,
		"updated":   updated,
	}).Info("Engagement statuses refreshed")
	return updated, nil
}

// RefreshAll runs the bulk path for every active campus. A campus that fails
// is logged and recorded in the summary; the others still run.
func (s *EngagementServiceImpl) RefreshAll(ctx context.Context) (*RefreshSummary, error) {
	campuses, err := s.campuses.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active campuses: %w", err)
	}
	summary := &RefreshSummary{}
	for _, c := range campuses {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Campuses++
		n, err := s.RefreshCampus(ctx, c.ID)
		if err != nil {
			s.logger.WithError(err).WithField("campus_id", c.ID).Error("Engagement refresh failed for campus")
			summary.Failed = append(summary.Failed, c.ID)
			continue
		}
		summary.Updated += n
	}
	return summary, nil
}

func (s *EngagementServiceImpl) DryRun(ctx context.Context, campusID string) (*Distribution, error) {
	th := thresholdsFor(s.settings, campusID, s.logger)
	counts, err := s.members.ClassifyDistribution(ctx, campusID, th, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to classify campus %s: %w", campusID, err)
	}
	d := &Distribution{CampusID: campusID, Thresholds: th, Counts: make(map[member.EngagementStatus]int, len(member.AllStatuses))}
	for _, status := range member.AllStatuses {
		d.Counts[status] = counts[status]
		d.Total += counts[status]
	}
	return d, nil
}

// Classify evaluates a raw contact date without touching the store.
func (s *EngagementServiceImpl) Classify(campusID, lastContactDate string) (member.EngagementStatus, int) {
	last := member.ParseContactDate(lastContactDate, s.clock.Location())
	return thresholdsFor(s.settings, campusID, s.logger).Evaluate(last, s.clock.Now())
}

// RecordContact stamps the member's last contact and reclassifies them.
func (s *EngagementServiceImpl) RecordContact(ctx context.Context, campusID, memberID string, at time.Time) (*member.Member, error) {
	if err := s.members.UpdateLastContact(ctx, campusID, memberID, at); err != nil {
		return nil, fmt.Errorf("failed to update last contact for member %s: %w", memberID, err)
	}
	return s.RefreshMember(ctx, campusID, memberID)
}
