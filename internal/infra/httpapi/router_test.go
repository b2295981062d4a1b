package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pastoral_care_worker/internal/app"
	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/campus"
	"pastoral_care_worker/internal/domain/careevent"
	"pastoral_care_worker/internal/domain/followup"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/domain/notification"
	"pastoral_care_worker/internal/domain/user"
	"pastoral_care_worker/internal/infra/cache"
	"pastoral_care_worker/internal/infra/clock"
	"pastoral_care_worker/internal/infra/config"
	"pastoral_care_worker/internal/infra/logger"
	"pastoral_care_worker/internal/infra/memstore"
)

func newTestRouter(t *testing.T) (http.Handler, *memstore.Store, *clock.Fixed) {
	t.Helper()
	store := memstore.New()
	clk := clock.NewFixed(time.Date(2026, time.March, 10, 9, 0, 0, 0, time.FixedZone("WIB", 7*60*60)))
	log := logger.Discard()
	cfg := &config.AppConfig{Defaults: config.DefaultCampusSettings()}
	cacheSvc := cache.NewService(cache.NewMemoryBackend(clk.Now), log)
	notifier := app.NewNotificationServiceImpl(store.Notifications, nil, app.DefaultRetryPolicy(), clk, log)

	engagement := app.NewEngagementServiceImpl(store.Campuses, store.Members, cfg, cacheSvc, clk, log)
	timeline := app.NewTimelineServiceImpl(store.Stages, store.CareEvents, store.Members, store.Activity,
		engagement, notifier, cacheSvc, clk, "GKBJ", log)

	h := &Handler{
		Digest: app.NewDigestServiceImpl(store.Campuses, store.Members, store.Users, store.CareEvents,
			store.Stages, notifier, cfg, clk, "GKBJ", notification.ChannelWhatsApp, log),
		Engagement: engagement,
		Dashboard: app.NewDashboardServiceImpl(store.Campuses, store.Members, store.CareEvents,
			store.Stages, cacheSvc, clk, log),
		Notifications: notifier,
		CareEvents: app.NewCareEventServiceImpl(store.CareEvents, store.Members, store.Activity,
			timeline, engagement, cacheSvc, clk, log),
		Timeline: timeline,
		Members:  store.Members,
		Staff:    store.Users,
		Activity: store.Activity,
		Cache:  cacheSvc,
		Logger: log,
	}
	if err := store.Campuses.Create(context.Background(), &campus.Campus{ID: "c1", Name: "Central", IsActive: true}); err != nil {
		t.Fatalf("create campus: %v", err)
	}
	return NewRouter(h), store, clk
}

func get(t *testing.T, h http.Handler, path string, dst any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if dst != nil {
		if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
			t.Fatalf("decode %s: %v (%s)", path, err, w.Body.String())
		}
	}
	return w.Code
}

func TestHealthz(t *testing.T) {
	r, _, _ := newTestRouter(t)
	var body map[string]bool
	if code := get(t, r, "/healthz", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !body["store"] || !body["cache"] {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestHealthzReportsStoreOutage(t *testing.T) {
	h := &Handler{Store: HealthFunc(func(context.Context) error { return errors.New("down") }), Logger: logger.Discard()}
	if code := get(t, NewRouter(h), "/healthz", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
}

func TestCampusEndpoints(t *testing.T) {
	r, store, clk := newTestRouter(t)
	last := clk.Now().AddDate(0, 0, -100)
	if err := store.Members.Create(context.Background(), &member.Member{CampusID: "c1", Name: "Ani", LastContactDate: &last}); err != nil {
		t.Fatalf("create member: %v", err)
	}

	var digest app.Digest
	if code := get(t, r, "/campuses/c1/digest", &digest); code != http.StatusOK {
		t.Fatalf("digest: %d", code)
	}
	if digest.CampusName != "Central" || digest.Date != "2026-03-10" {
		t.Fatalf("unexpected digest header %+v", digest)
	}

	var dry app.Distribution
	if code := get(t, r, "/campuses/c1/engagement/dry-run", &dry); code != http.StatusOK {
		t.Fatalf("dry run: %d", code)
	}
	if dry.Total != 1 || dry.Counts[member.StatusAtRisk] != 1 {
		t.Fatalf("unexpected distribution %+v", dry)
	}

	var stats app.DashboardStats
	if code := get(t, r, "/campuses/c1/dashboard", &stats); code != http.StatusOK {
		t.Fatalf("dashboard: %d", code)
	}
	if stats.CampusID != "c1" || stats.TotalMembers != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestUnknownCampusIsNotFound(t *testing.T) {
	r, _, _ := newTestRouter(t)
	for _, path := range []string{"/campuses/nope/digest", "/campuses/nope/dashboard"} {
		if code := get(t, r, path, nil); code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, code)
		}
	}
}

func TestNotificationLogEndpoints(t *testing.T) {
	r, store, clk := newTestRouter(t)
	ctx := context.Background()
	var ids []string
	for i, campusID := range []string{"c1", "c1", "c2", "c1"} {
		l := &notification.Log{
			CampusID:    campusID,
			Channel:     notification.ChannelWhatsApp,
			MessageType: notification.MessageDailyDigest,
			Recipient:   "+62811000001",
			Message:     "digest",
			Status:      notification.StatusSent,
			CreatedAt:   clk.Now().Add(time.Duration(i) * time.Minute),
		}
		if err := store.Notifications.Create(ctx, l); err != nil {
			t.Fatalf("create log: %v", err)
		}
		ids = append(ids, l.ID)
	}

	var recent []map[string]any
	if code := get(t, r, "/campuses/c1/notifications", &recent); code != http.StatusOK {
		t.Fatalf("recent: %d", code)
	}
	if len(recent) != 3 || recent[0]["id"] != ids[3] || recent[0]["status"] != "sent" {
		t.Fatalf("unexpected recent logs %v", recent)
	}
	if code := get(t, r, "/campuses/c1/notifications?limit=2", &recent); code != http.StatusOK || len(recent) != 2 {
		t.Fatalf("limit=2: %d, %d logs", code, len(recent))
	}
	for _, bad := range []string{"0", "-1", "x"} {
		if code := get(t, r, "/campuses/c1/notifications?limit="+bad, nil); code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", bad, code)
		}
	}

	var one map[string]any
	if code := get(t, r, "/campuses/c1/notifications/"+ids[0], &one); code != http.StatusOK || one["id"] != ids[0] {
		t.Fatalf("get log: %d %v", code, one)
	}
	if code := get(t, r, "/campuses/c1/notifications/"+ids[2], nil); code != http.StatusNotFound {
		t.Fatalf("foreign campus log: expected 404, got %d", code)
	}
}

func TestMemberCareEventsEndpoint(t *testing.T) {
	r, store, clk := newTestRouter(t)
	ctx := context.Background()
	m := &member.Member{CampusID: "c1", Name: "Ani"}
	if err := store.Members.Create(ctx, m); err != nil {
		t.Fatalf("create member: %v", err)
	}
	if err := store.CareEvents.Create(ctx, &careevent.CareEvent{
		CampusID: "c1", MemberID: m.ID, EventType: careevent.TypeBirthday, EventDate: clk.Today(), Title: "Birthday",
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}

	var events []map[string]any
	if code := get(t, r, "/campuses/c1/members/"+m.ID+"/care-events", &events); code != http.StatusOK {
		t.Fatalf("care events: %d", code)
	}
	if len(events) != 1 || events[0]["event_type"] != "birthday" || events[0]["event_date"] != "2026-03-10" {
		t.Fatalf("unexpected events %v", events)
	}
	if code := get(t, r, "/campuses/c2/members/"+m.ID+"/care-events", nil); code != http.StatusNotFound {
		t.Fatalf("foreign campus member: expected 404, got %d", code)
	}
}

func TestMemberAndStaffEndpoints(t *testing.T) {
	r, store, clk := newTestRouter(t)
	ctx := context.Background()
	m := &member.Member{CampusID: "c1", Name: "Ani", Phone: "+6281200000001", EngagementStatus: member.StatusActive}
	if err := store.Members.Create(ctx, m); err != nil {
		t.Fatalf("create member: %v", err)
	}
	if err := store.Stages.Create(ctx, &followup.Stage{
		CampusID: "c1", MemberID: m.ID, TriggerEventID: "ev-1", Kind: followup.KindGrief,
		Key: followup.GriefOneWeek, ScheduledDate: clk.Today(),
	}); err != nil {
		t.Fatalf("create stage: %v", err)
	}
	if err := store.Users.Create(ctx, &user.User{
		CampusID: "c1", Name: "Pastor Central", Phone: "+6281100000001", Role: user.RolePastor, IsActive: true,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := store.Activity.Append(ctx, &activity.Entry{
		CampusID: "c1", ActorName: "Pastor Central", Action: activity.ActionRecordContact,
		MemberID: m.ID, MemberName: "Ani", CreatedAt: clk.Now(),
	}); err != nil {
		t.Fatalf("append activity: %v", err)
	}

	var members []map[string]any
	if code := get(t, r, "/campuses/c1/members", &members); code != http.StatusOK || len(members) != 1 {
		t.Fatalf("members: %d %v", code, members)
	}
	if _, leaked := members[0]["Phone"]; leaked || members[0]["engagement_status"] != "active" {
		t.Fatalf("unexpected member view %v", members[0])
	}

	var timeline []map[string]any
	if code := get(t, r, "/campuses/c1/members/"+m.ID+"/timeline", &timeline); code != http.StatusOK || len(timeline) != 1 {
		t.Fatalf("timeline: %d %v", code, timeline)
	}
	if timeline[0]["kind"] != "grief" || timeline[0]["scheduled_date"] != "2026-03-10" {
		t.Fatalf("unexpected stage view %v", timeline[0])
	}
	if code := get(t, r, "/campuses/c2/members/"+m.ID+"/timeline", nil); code != http.StatusNotFound {
		t.Fatalf("foreign campus timeline: expected 404, got %d", code)
	}

	var staff []map[string]any
	if code := get(t, r, "/campuses/c1/staff", &staff); code != http.StatusOK || len(staff) != 1 {
		t.Fatalf("staff: %d %v", code, staff)
	}
	for k, v := range staff[0] {
		if v == "+6281100000001" {
			t.Fatalf("staff view leaks the phone number in %q", k)
		}
	}

	var feed []map[string]any
	if code := get(t, r, "/campuses/c1/activity?limit=10", &feed); code != http.StatusOK || len(feed) != 1 {
		t.Fatalf("activity: %d %v", code, feed)
	}
	if feed[0]["action"] != string(activity.ActionRecordContact) || feed[0]["member_name"] != "Ani" {
		t.Fatalf("unexpected activity view %v", feed[0])
	}
	if code := get(t, r, "/campuses/c2/activity", &feed); code != http.StatusOK || len(feed) != 0 {
		t.Fatalf("c2 activity should be empty, got %d %v", code, feed)
	}
	if code := get(t, r, "/campuses/c1/activity?limit=abc", nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", code)
	}
}

func TestClassifyEndpoint(t *testing.T) {
	r, _, _ := newTestRouter(t)
	tests := []struct {
		query  string
		status member.EngagementStatus
		days   int
	}{
		{"last_contact_date=2026-03-01&campus_id=c1", member.StatusActive, 9},
		{"last_contact_date=2025-12-01", member.StatusAtRisk, 99},
		{"last_contact_date=garbage", member.StatusDisconnected, member.NoContactDays},
		{"", member.StatusDisconnected, member.NoContactDays},
	}
	for _, tt := range tests {
		var body struct {
			Status member.EngagementStatus `json:"status"`
			Days   int                     `json:"days_since_last_contact"`
		}
		if code := get(t, r, "/engagement/classify?"+tt.query, &body); code != http.StatusOK {
			t.Fatalf("%q: status %d", tt.query, code)
		}
		if body.Status != tt.status || body.Days != tt.days {
			t.Fatalf("%q: got %s/%d, want %s/%d", tt.query, body.Status, body.Days, tt.status, tt.days)
		}
	}
}
