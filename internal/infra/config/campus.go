package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pastoral_care_worker/internal/domain/member"
)

// CampusSettings are the per-tenant knobs the scheduled jobs read.
type CampusSettings struct {
	Thresholds       member.Thresholds
	BirthdayLeadDays int
}

func DefaultCampusSettings() CampusSettings {
	return CampusSettings{
		Thresholds:       member.DefaultThresholds(),
		BirthdayLeadDays: 7,
	}
}

// CampusOverride is one entry of the overrides file. Zero fields inherit the default.
type CampusOverride struct {
	AtRiskDays       int `yaml:"at_risk_days"`
	DisconnectedDays int `yaml:"disconnected_days"`
	BirthdayLeadDays int `yaml:"birthday_lead_days"`
}

type overridesFile struct {
	Campuses map[string]CampusOverride `yaml:"campuses"`
}

// LoadCampusOverrides parses a YAML file of the form
//
//	campuses:
//	  <campus-id>:
//	    at_risk_days: 45
//	    disconnected_days: 120
func LoadCampusOverrides(path string) (map[string]CampusOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read campus overrides %s: %w", path, err)
	}
	return ParseCampusOverrides(data)
}

func ParseCampusOverrides(data []byte) (map[string]CampusOverride, error) {
	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse campus overrides: %w", err)
	}
	if f.Campuses == nil {
		f.Campuses = map[string]CampusOverride{}
	}
	for id, o := range f.Campuses {
		merged := DefaultCampusSettings().apply(o)
		if err := merged.Thresholds.Validate(); err != nil {
			return nil, fmt.Errorf("campus %s: %w", id, err)
		}
	}
	return f.Campuses, nil
}

func (s CampusSettings) apply(o CampusOverride) CampusSettings {
	if o.AtRiskDays > 0 {
		s.Thresholds.AtRiskDays = o.AtRiskDays
	}
	if o.DisconnectedDays > 0 {
		s.Thresholds.DisconnectedDays = o.DisconnectedDays
	}
	if o.BirthdayLeadDays > 0 {
		s.BirthdayLeadDays = o.BirthdayLeadDays
	}
	return s
}

// CampusSettings resolves the effective settings for one campus.
func (c *AppConfig) CampusSettings(campusID string) CampusSettings {
	if o, ok := c.Overrides[campusID]; ok {
		return c.Defaults.apply(o)
	}
	return c.Defaults
}
