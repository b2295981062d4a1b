package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithMemoryStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("NOTIFY_CHANNEL", "whatsapp")
	t.Setenv("WHATSAPP_GATEWAY_URL", "http://gateway.local/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WhatsAppGatewayURL != "http://gateway.local" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.WhatsAppGatewayURL)
	}
	if cfg.Defaults.Thresholds.AtRiskDays != 60 || cfg.Defaults.Thresholds.DisconnectedDays != 180 {
		t.Fatalf("unexpected default thresholds %+v", cfg.Defaults.Thresholds)
	}
	if cfg.JobLockTTL != 30*time.Minute {
		t.Fatalf("unexpected lock ttl %s", cfg.JobLockTTL)
	}
	if cfg.Timezone != "Asia/Jakarta" {
		t.Fatalf("unexpected timezone %s", cfg.Timezone)
	}
}

func TestLoadRequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("WHATSAPP_GATEWAY_URL", "http://gateway.local")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is missing")
	}
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("WHATSAPP_GATEWAY_URL", "http://gateway.local")
	t.Setenv("AT_RISK_DAYS", "200")
	t.Setenv("DISCONNECTED_DAYS", "100")
	if _, err := Load(); err == nil {
		t.Fatalf("expected threshold validation error")
	}
}

func TestCampusOverridesMergeOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "campuses.yaml")
	body := []byte(`
campuses:
  campus-north:
    at_risk_days: 30
    disconnected_days: 90
  campus-south:
    birthday_lead_days: 14
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	overrides, err := LoadCampusOverrides(path)
	if err != nil {
		t.Fatalf("load overrides: %v", err)
	}
	cfg := &AppConfig{Defaults: DefaultCampusSettings(), Overrides: overrides}

	north := cfg.CampusSettings("campus-north")
	if north.Thresholds.AtRiskDays != 30 || north.Thresholds.DisconnectedDays != 90 || north.BirthdayLeadDays != 7 {
		t.Fatalf("unexpected north settings %+v", north)
	}
	south := cfg.CampusSettings("campus-south")
	if south.Thresholds.AtRiskDays != 60 || south.BirthdayLeadDays != 14 {
		t.Fatalf("unexpected south settings %+v", south)
	}
	if other := cfg.CampusSettings("unknown"); other != cfg.Defaults {
		t.Fatalf("expected defaults for unknown campus, got %+v", other)
	}
}

func TestParseCampusOverridesRejectsInvalidPair(t *testing.T) {
	_, err := ParseCampusOverrides([]byte("campuses:\n  c1:\n    at_risk_days: 90\n    disconnected_days: 30\n"))
	if err == nil {
		t.Fatalf("expected validation error")
	}
}
