package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/infra/config"
)

// SettingsProvider resolves per-campus knobs. *config.AppConfig implements it.
type SettingsProvider interface {
	CampusSettings(campusID string) config.CampusSettings
}

// DashboardInvalidator drops a campus's cached dashboard aggregate.
// *cache.Service implements it.
type DashboardInvalidator interface {
	InvalidateDashboard(ctx context.Context, campusID string)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateDashboard(context.Context, string) {}

func invalidatorOrNoop(inv DashboardInvalidator) DashboardInvalidator {
	if inv == nil {
		return noopInvalidator{}
	}
	return inv
}

// thresholdsFor returns the campus thresholds, falling back to the canonical
// pair when an override does not validate.
func thresholdsFor(settings SettingsProvider, campusID string, logger *logrus.Entry) member.Thresholds {
	if settings == nil {
		return member.DefaultThresholds()
	}
	th := settings.CampusSettings(campusID).Thresholds
	if err := th.Validate(); err != nil {
		logger.WithError(err).WithField("campus_id", campusID).Warn("Invalid engagement thresholds, using defaults")
		return member.DefaultThresholds()
	}
	return th
}

func birthdayLeadDays(settings SettingsProvider, campusID string) int {
	if settings == nil {
		return config.DefaultCampusSettings().BirthdayLeadDays
	}
	if days := settings.CampusSettings(campusID).BirthdayLeadDays; days > 0 {
		return days
	}
	return config.DefaultCampusSettings().BirthdayLeadDays
}
