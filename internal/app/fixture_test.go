package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/campus"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/domain/notification"
	"pastoral_care_worker/internal/domain/user"
	"pastoral_care_worker/internal/infra/cache"
	"pastoral_care_worker/internal/infra/clock"
	"pastoral_care_worker/internal/infra/config"
	"pastoral_care_worker/internal/infra/logger"
	"pastoral_care_worker/internal/infra/memstore"
)

var wib = time.FixedZone("WIB", 7*60*60)

var staff = activity.Actor{ID: "user-1", Name: "Pastor Budi"}

type fakeGateway struct {
	mu        sync.Mutex
	channel   notification.Channel
	failFirst int
	alwaysErr error
	calls     []delivery
}

type delivery struct {
	address string
	text    string
}

func (g *fakeGateway) Channel() notification.Channel { return g.channel }

func (g *fakeGateway) Deliver(_ context.Context, address, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, delivery{address: address, text: text})
	if g.alwaysErr != nil {
		return g.alwaysErr
	}
	if len(g.calls) <= g.failFirst {
		return errors.New("gateway returned 502")
	}
	return nil
}

func (g *fakeGateway) deliveries() []delivery {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]delivery(nil), g.calls...)
}

type fixture struct {
	store      *memstore.Store
	clock      *clock.Fixed
	cache      *cache.Service
	cfg        *config.AppConfig
	whatsapp   *fakeGateway
	telegram   *fakeGateway
	engagement *EngagementServiceImpl
	notifier   *NotificationServiceImpl
	timeline   *TimelineServiceImpl
	events     *CareEventServiceImpl
	digest     *DigestServiceImpl
	dashboard  *DashboardServiceImpl
}

// newFixture wires every service against the memory store with the clock
// pinned to 2026-03-10 09:00 WIB.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memstore.New(),
		clock:    clock.NewFixed(time.Date(2026, time.March, 10, 9, 0, 0, 0, wib)),
		cfg:      &config.AppConfig{Defaults: config.DefaultCampusSettings()},
		whatsapp: &fakeGateway{channel: notification.ChannelWhatsApp},
		telegram: &fakeGateway{channel: notification.ChannelTelegram},
	}
	log := logger.Discard()
	f.cache = cache.NewService(cache.NewMemoryBackend(f.clock.Now), log)
	f.engagement = NewEngagementServiceImpl(f.store.Campuses, f.store.Members, f.cfg, f.cache, f.clock, log)
	f.notifier = NewNotificationServiceImpl(
		f.store.Notifications,
		[]notification.Gateway{f.whatsapp, f.telegram},
		RetryPolicy{MaxAttempts: 3, AttemptTimeout: time.Second},
		f.clock, log,
	)
	f.timeline = NewTimelineServiceImpl(f.store.Stages, f.store.CareEvents, f.store.Members, f.store.Activity,
		f.engagement, f.notifier, f.cache, f.clock, "GKBJ", log)
	f.events = NewCareEventServiceImpl(f.store.CareEvents, f.store.Members, f.store.Activity,
		f.timeline, f.engagement, f.cache, f.clock, log)
	f.digest = NewDigestServiceImpl(f.store.Campuses, f.store.Members, f.store.Users, f.store.CareEvents,
		f.store.Stages, f.notifier, f.cfg, f.clock, "GKBJ", notification.ChannelWhatsApp, log)
	f.dashboard = NewDashboardServiceImpl(f.store.Campuses, f.store.Members, f.store.CareEvents,
		f.store.Stages, f.cache, f.clock, log)
	return f
}

func (f *fixture) campus(t *testing.T, id, name string) *campus.Campus {
	t.Helper()
	c := &campus.Campus{ID: id, Name: name, IsActive: true}
	if err := f.store.Campuses.Create(context.Background(), c); err != nil {
		t.Fatalf("create campus: %v", err)
	}
	return c
}

// member creates a member last contacted daysAgo days before the fixture's
// now; a negative daysAgo means never contacted.
func (f *fixture) member(t *testing.T, campusID, name string, daysAgo int) *member.Member {
	t.Helper()
	m := &member.Member{CampusID: campusID, Name: name, Phone: "+6281200000" + name[:1]}
	if daysAgo >= 0 {
		last := f.clock.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour)
		m.LastContactDate = &last
	}
	if err := f.store.Members.Create(context.Background(), m); err != nil {
		t.Fatalf("create member: %v", err)
	}
	return m
}

func (f *fixture) staffUser(t *testing.T, campusID, name string, role user.Role, phone string) *user.User {
	t.Helper()
	u := &user.User{CampusID: campusID, Name: name, Role: role, Phone: phone, IsActive: true}
	if err := f.store.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}
