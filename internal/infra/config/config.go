package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"

	"pastoral_care_worker/internal/domain/member"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// AppConfig holds all configuration for the worker.
type AppConfig struct {
	DatabaseURL string
	StoreDriver string
	LogLevel    string
	Environment string
	Timezone    string
	ChurchName  string
	HTTPAddr    string

	WhatsAppGatewayURL string
	TelegramToken      string
	NotifyChannel      string

	CronSpecDigest       string
	CronSpecEngagement   string
	CronSpecCacheRefresh string
	CronSpecLockCleanup  string
	JobLockTTL           time.Duration

	Defaults CampusSettings

	NotifyMaxAttempts    int
	NotifyAttemptTimeout time.Duration
	NotifyRetryDelays    []time.Duration

	CampusOverridesFile string
	Overrides           map[string]CampusOverride
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.StoreDriver = strings.ToLower(envOr("STORE_DRIVER", StoreDriverPostgres))
	if cfg.StoreDriver != StoreDriverPostgres && cfg.StoreDriver != StoreDriverMemory {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", cfg.StoreDriver)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StoreDriver == StoreDriverPostgres {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))
	cfg.Timezone = envOr("ORG_TIMEZONE", "Asia/Jakarta")
	cfg.ChurchName = envOr("CHURCH_NAME", "Church")
	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")

	cfg.WhatsAppGatewayURL = strings.TrimRight(os.Getenv("WHATSAPP_GATEWAY_URL"), "/")
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.NotifyChannel = strings.ToLower(envOr("NOTIFY_CHANNEL", "whatsapp"))
	switch cfg.NotifyChannel {
	case "whatsapp":
		if cfg.WhatsAppGatewayURL == "" {
			return nil, fmt.Errorf("WHATSAPP_GATEWAY_URL is not set for NOTIFY_CHANNEL=whatsapp")
		}
	case "telegram":
		if cfg.TelegramToken == "" {
			return nil, fmt.Errorf("TELEGRAM_TOKEN is not set for NOTIFY_CHANNEL=telegram")
		}
	default:
		return nil, fmt.Errorf("invalid NOTIFY_CHANNEL %q", cfg.NotifyChannel)
	}

	cfg.CronSpecDigest = envOr("CRON_SPEC_DIGEST", "0 8 * * *")             // Default: 08:00 daily
	cfg.CronSpecEngagement = envOr("CRON_SPEC_ENGAGEMENT", "0 2 * * *")     // Default: 02:00 daily
	cfg.CronSpecCacheRefresh = envOr("CRON_SPEC_CACHE_REFRESH", "0 6 * * *") // Default: 06:00 daily
	cfg.CronSpecLockCleanup = envOr("CRON_SPEC_LOCK_CLEANUP", "30 3 * * *")  // Default: 03:30 daily

	if cfg.JobLockTTL, err = durationEnv("JOB_LOCK_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	cfg.Defaults = DefaultCampusSettings()
	if cfg.Defaults.Thresholds.AtRiskDays, err = intEnv("AT_RISK_DAYS", member.DefaultAtRiskDays); err != nil {
		return nil, err
	}
	if cfg.Defaults.Thresholds.DisconnectedDays, err = intEnv("DISCONNECTED_DAYS", member.DefaultDisconnectedDays); err != nil {
		return nil, err
	}
	if err := cfg.Defaults.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engagement thresholds: %w", err)
	}
	if cfg.Defaults.BirthdayLeadDays, err = intEnv("BIRTHDAY_LEAD_DAYS", 7); err != nil {
		return nil, err
	}

	if cfg.NotifyMaxAttempts, err = intEnv("NOTIFY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.NotifyAttemptTimeout, err = durationEnv("NOTIFY_ATTEMPT_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	cfg.NotifyRetryDelays = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

	cfg.CampusOverridesFile = os.Getenv("CAMPUS_OVERRIDES_FILE")
	if cfg.CampusOverridesFile != "" {
		cfg.Overrides, err = LoadCampusOverrides(cfg.CampusOverridesFile)
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
