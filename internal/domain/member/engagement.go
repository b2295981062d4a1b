package member

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// EngagementStatus is the derived recency-of-contact class of a member.
type EngagementStatus string

const (
	StatusActive       EngagementStatus = "active"
	StatusAtRisk       EngagementStatus = "at_risk"
	StatusDisconnected EngagementStatus = "disconnected"
)

// AllStatuses lists every status in severity order.
var AllStatuses = []EngagementStatus{StatusActive, StatusAtRisk, StatusDisconnected}

// NoContactDays is the day count used when a member has no usable contact date.
const NoContactDays = 999

const (
	DefaultAtRiskDays       = 60
	DefaultDisconnectedDays = 180
)

// Thresholds are inclusive upper bounds in days: days <= AtRiskDays is active,
// days <= DisconnectedDays is at risk, anything beyond is disconnected.
type Thresholds struct {
	AtRiskDays       int `yaml:"at_risk_days" json:"at_risk_days"`
	DisconnectedDays int `yaml:"disconnected_days" json:"disconnected_days"`
}

// DefaultThresholds is the canonical pair shared by the per-member and bulk paths.
func DefaultThresholds() Thresholds {
	return Thresholds{AtRiskDays: DefaultAtRiskDays, DisconnectedDays: DefaultDisconnectedDays}
}

func (t Thresholds) Validate() error {
	if t.AtRiskDays <= 0 {
		return fmt.Errorf("at-risk threshold must be positive, got %d", t.AtRiskDays)
	}
	if t.DisconnectedDays <= t.AtRiskDays {
		return fmt.Errorf("disconnected threshold (%d) must exceed at-risk threshold (%d)", t.DisconnectedDays, t.AtRiskDays)
	}
	return nil
}

// Classify maps a day count to a status.
func (t Thresholds) Classify(days int) EngagementStatus {
	switch {
	case days <= t.AtRiskDays:
		return StatusActive
	case days <= t.DisconnectedDays:
		return StatusAtRisk
	default:
		return StatusDisconnected
	}
}

// Evaluate computes days since contact and the resulting status.
func (t Thresholds) Evaluate(lastContact *time.Time, now time.Time) (EngagementStatus, int) {
	days := DaysSinceContact(lastContact, now)
	return t.Classify(days), days
}

// DaysSinceContact returns floor((now - last) / 24h), or NoContactDays when last is nil.
func DaysSinceContact(lastContact *time.Time, now time.Time) int {
	if lastContact == nil || lastContact.IsZero() {
		return NoContactDays
	}
	return int(math.Floor(now.Sub(*lastContact).Hours() / 24))
}

var contactDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseContactDate parses a stored or user-supplied contact date.
// Unparseable input yields nil, which classifies as never contacted.
func ParseContactDate(raw string, loc *time.Location) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range contactDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &t
		}
	}
	return nil
}
