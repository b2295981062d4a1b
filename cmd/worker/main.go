package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"pastoral_care_worker/internal/app"
	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/campus"
	"pastoral_care_worker/internal/domain/careevent"
	"pastoral_care_worker/internal/domain/followup"
	"pastoral_care_worker/internal/domain/joblock"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/domain/notification"
	"pastoral_care_worker/internal/domain/user"
	"pastoral_care_worker/internal/infra/cache"
	"pastoral_care_worker/internal/infra/clock"
	"pastoral_care_worker/internal/infra/config"
	idb "pastoral_care_worker/internal/infra/database"
	"pastoral_care_worker/internal/infra/httpapi"
	"pastoral_care_worker/internal/infra/logger"
	"pastoral_care_worker/internal/infra/memstore"
	"pastoral_care_worker/internal/infra/scheduler"
	"pastoral_care_worker/internal/infra/telegram"
	"pastoral_care_worker/internal/infra/whatsapp"
)

// repositories is the storage the services run on, whichever driver backs it.
type repositories struct {
	locks         joblock.Repository
	campuses      campus.Repository
	members       member.Repository
	users         user.Repository
	careEvents    careevent.Repository
	stages        followup.Repository
	activity      activity.Repository
	notifications notification.Repository
}

func main() {
	fmt.Println("Pastoral care worker starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	baseLogger := logger.New(cfg.LogLevel, cfg.Environment)
	mainLogger := logger.Component(baseLogger, "main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":    cfg.LogLevel,
		"environment":  cfg.Environment,
		"store_driver": cfg.StoreDriver,
		"timezone":     cfg.Timezone,
	}).Info("Configuration loaded")

	clk, err := clock.New(cfg.Timezone)
	if err != nil {
		mainLogger.WithError(err).Fatal("Invalid organisation timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repos        repositories
		cacheBackend cache.Backend
		storeHealth  httpapi.HealthChecker
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()
		mainLogger.Info("Database connection established successfully")

		if err := idb.Migrate(ctx, db); err != nil {
			mainLogger.WithError(err).Fatal("Could not migrate database schema")
		}
		repos = postgresRepositories(idb.NewStore(db, clk.Location()))
		cacheBackend = cache.NewPostgresBackend(db, clk.Now)
		storeHealth = httpapi.HealthFunc(db.PingContext)
	default:
		mainLogger.Warn("Using the in-memory store; data is lost on restart")
		repos = memoryRepositories(memstore.New())
		cacheBackend = cache.NewMemoryBackend(clk.Now)
	}

	cacheService := cache.NewService(cacheBackend, logger.Component(baseLogger, "cache"))

	// Gateways
	var gateways []notification.Gateway
	if cfg.WhatsAppGatewayURL != "" {
		httpClient := &http.Client{Timeout: cfg.NotifyAttemptTimeout}
		gateways = append(gateways, whatsapp.NewGateway(cfg.WhatsAppGatewayURL, httpClient))
		mainLogger.Info("WhatsApp gateway configured")
	}
	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		bot, err = newBot(cfg.TelegramToken, logger.Component(baseLogger, "telebot"))
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		gateways = append(gateways, telegram.NewGateway(bot))
		mainLogger.Info("Telegram gateway configured")
	}

	// Services
	retry := app.RetryPolicy{
		MaxAttempts:    cfg.NotifyMaxAttempts,
		Delays:         cfg.NotifyRetryDelays,
		AttemptTimeout: cfg.NotifyAttemptTimeout,
	}
	notifier := app.NewNotificationServiceImpl(repos.notifications, gateways, retry, clk,
		logger.Component(baseLogger, "notification"))
	engagement := app.NewEngagementServiceImpl(repos.campuses, repos.members, cfg, cacheService, clk,
		logger.Component(baseLogger, "engagement"))
	timeline := app.NewTimelineServiceImpl(repos.stages, repos.careEvents, repos.members, repos.activity,
		engagement, notifier, cacheService, clk, cfg.ChurchName, logger.Component(baseLogger, "timeline"))
	digest := app.NewDigestServiceImpl(repos.campuses, repos.members, repos.users, repos.careEvents,
		repos.stages, notifier, cfg, clk, cfg.ChurchName, notification.Channel(cfg.NotifyChannel),
		logger.Component(baseLogger, "digest"))
	dashboard := app.NewDashboardServiceImpl(repos.campuses, repos.members, repos.careEvents,
		repos.stages, cacheService, clk, logger.Component(baseLogger, "dashboard"))
	careEvents := app.NewCareEventServiceImpl(repos.careEvents, repos.members, repos.activity,
		timeline, engagement, cacheService, clk, logger.Component(baseLogger, "care_events"))
	locker := app.NewJobLocker(repos.locks, clk, logger.Component(baseLogger, "job_lock"))
	mainLogger.WithField("owner", locker.Owner()).Info("Services initialized")

	// Scheduler
	jobScheduler := scheduler.NewJobScheduler(locker, clk.Location(), logger.Component(baseLogger, "scheduler"))
	jobs := scheduler.BuiltinJobs(
		scheduler.Specs{
			Digest:       cfg.CronSpecDigest,
			Engagement:   cfg.CronSpecEngagement,
			CacheRefresh: cfg.CronSpecCacheRefresh,
			LockCleanup:  cfg.CronSpecLockCleanup,
		},
		cfg.JobLockTTL,
		func(ctx context.Context) (int, int, error) {
			summary, err := digest.RunDaily(ctx)
			if summary == nil {
				return 0, 0, err
			}
			return summary.Sent, summary.Failed, err
		},
		func(ctx context.Context) (int64, error) {
			summary, err := engagement.RefreshAll(ctx)
			if summary == nil {
				return 0, err
			}
			if err == nil && len(summary.Failed) > 0 {
				err = fmt.Errorf("engagement refresh failed for campuses: %s", strings.Join(summary.Failed, ", "))
			}
			return summary.Updated, err
		},
		dashboard.Refresh,
		locker.PurgeExpired,
		logger.Component(baseLogger, "jobs"),
	)
	for _, job := range jobs {
		if err := jobScheduler.Register(job); err != nil {
			mainLogger.WithError(err).WithField("job", job.Name).Fatal("Could not register job")
		}
	}
	jobScheduler.Start()

	// Telegram commands
	if bot != nil {
		commands := telegram.NewCommands(app.NewStaffService(repos.users), digest, engagement, timeline,
			careEvents, repos.members, repos.stages, clk, logger.Component(baseLogger, "telegram"))
		commands.Register(ctx, bot)
		go bot.Start()
		mainLogger.Info("Telegram command handlers registered")
	}

	// HTTP
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(&httpapi.Handler{
			Digest:        digest,
			Engagement:    engagement,
			Dashboard:     dashboard,
			Notifications: notifier,
			CareEvents:    careEvents,
			Timeline:      timeline,
			Members:       repos.members,
			Staff:         repos.users,
			Activity:      repos.activity,
			Store:         storeHealth,
			Cache:         cacheService,
			Logger:        logger.Component(baseLogger, "http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.WithError(err).Error("HTTP server stopped")
			stop()
		}
	}()

	mainLogger.Info("Application setup complete")
	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	if bot != nil {
		bot.Stop()
	}
	jobScheduler.Stop()
	mainLogger.Info("Application shut down gracefully")
}

func newBot(token string, log *logrus.Entry) (*telebot.Bot, error) {
	return telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := log.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler error")
		},
	})
}

func postgresRepositories(s *idb.Store) repositories {
	return repositories{
		locks:         s.Locks,
		campuses:      s.Campuses,
		members:       s.Members,
		users:         s.Users,
		careEvents:    s.CareEvents,
		stages:        s.Stages,
		activity:      s.Activity,
		notifications: s.Notifications,
	}
}

func memoryRepositories(s *memstore.Store) repositories {
	return repositories{
		locks:         s.Locks,
		campuses:      s.Campuses,
		members:       s.Members,
		users:         s.Users,
		careEvents:    s.CareEvents,
		stages:        s.Stages,
		activity:      s.Activity,
		notifications: s.Notifications,
	}
}
