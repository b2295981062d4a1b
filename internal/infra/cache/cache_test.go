package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"pastoral_care_worker/internal/infra/logger"
)

type dashboardPayload struct {
	Campus  string `json:"campus"`
	Members int    `json:"members"`
}

func newTestService(now *time.Time) *Service {
	backend := NewMemoryBackend(func() time.Time { return *now })
	return NewService(backend, logger.Discard())
}

func TestDashboardCacheIsScopedPerCampus(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	svc.SetDashboard(ctx, "campus-a", dashboardPayload{Campus: "a", Members: 10})
	svc.SetDashboard(ctx, "campus-b", dashboardPayload{Campus: "b", Members: 20})

	var got dashboardPayload
	if !svc.GetDashboard(ctx, "campus-a", &got) {
		t.Fatalf("expected hit for campus-a")
	}
	if got.Campus != "a" || got.Members != 10 {
		t.Fatalf("campus-a read returned %+v", got)
	}

	svc.InvalidateDashboard(ctx, "campus-a")
	if svc.GetDashboard(ctx, "campus-a", &got) {
		t.Fatalf("expected miss after invalidation")
	}
	if !svc.GetDashboard(ctx, "campus-b", &got) || got.Campus != "b" {
		t.Fatalf("campus-b entry must survive campus-a invalidation, got %+v", got)
	}
}

func TestInvalidatePatternCannotCrossCampuses(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	svc.Set(ctx, "settings:engagement", 1, DefaultTTL, "campus-a")
	svc.Set(ctx, "settings:writeoff", 2, DefaultTTL, "campus-a")
	svc.Set(ctx, "settings:engagement", 3, DefaultTTL, "campus-ab")
	svc.Set(ctx, "settings:engagement", 4, DefaultTTL, "")

	if n := svc.InvalidatePattern(ctx, "settings:*", "campus-a"); n != 2 {
		t.Fatalf("expected 2 deletions, got %d", n)
	}
	var v int
	if !svc.Get(ctx, "settings:engagement", "campus-ab", &v) || v != 3 {
		t.Fatalf("campus-ab entry was touched")
	}
	if !svc.Get(ctx, "settings:engagement", "", &v) || v != 4 {
		t.Fatalf("global entry was touched")
	}
}

func TestCampusSegmentMetacharactersAreLiteral(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	svc.Set(ctx, "dashboard:stats", 1, DashboardTTL, "campus-x")
	if n := svc.InvalidatePattern(ctx, "*", "*"); n != 0 {
		t.Fatalf("wildcard campus id must not match other campuses, deleted %d", n)
	}
}

func TestCampusSeparatorCannotWidenScope(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	svc.Set(ctx, KeyDashboardStats, 1, DashboardTTL, "a:b")
	svc.Set(ctx, KeyDashboardStats, 2, DashboardTTL, "a")

	if n := svc.InvalidatePattern(ctx, "*", "a"); n != 1 {
		t.Fatalf("campus a pattern should delete only its own entry, deleted %d", n)
	}
	var v int
	if !svc.Get(ctx, KeyDashboardStats, "a:b", &v) || v != 1 {
		t.Fatalf("campus a:b entry was deleted by a campus a pattern")
	}
	if MakeKey(KeyDashboardStats, "a:b") != "ft:a%3Ab:dashboard:stats" {
		t.Fatalf("unexpected key %q", MakeKey(KeyDashboardStats, "a:b"))
	}
	if MakeKey(KeyDashboardStats, "a%3Ab") == MakeKey(KeyDashboardStats, "a:b") {
		t.Fatalf("encoded and raw campus ids must not collide")
	}
}

func TestEntriesExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestService(&now)

	svc.SetDashboard(ctx, "campus-a", dashboardPayload{Campus: "a"})
	now = now.Add(DashboardTTL + time.Second)

	var got dashboardPayload
	if svc.GetDashboard(ctx, "campus-a", &got) {
		t.Fatalf("expected expired entry to miss")
	}
}

type brokenBackend struct{}

var errDown = errors.New("connection refused")

func (brokenBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errDown }
func (brokenBackend) Set(context.Context, string, string, []byte, time.Duration) error {
	return errDown
}
func (brokenBackend) Delete(context.Context, string) error                 { return errDown }
func (brokenBackend) DeleteMatching(context.Context, string) (int, error) { return 0, errDown }
func (brokenBackend) Ping(context.Context) error                          { return errDown }

func TestBackendFailureDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	svc := NewService(brokenBackend{}, logger.Discard())

	var v int
	if svc.Get(ctx, "k", "c", &v) {
		t.Fatalf("expected miss")
	}
	if svc.Set(ctx, "k", 1, DefaultTTL, "c") {
		t.Fatalf("expected set to report failure")
	}
	if svc.Delete(ctx, "k", "c") {
		t.Fatalf("expected delete to report failure")
	}
	if svc.InvalidatePattern(ctx, "*", "c") != 0 {
		t.Fatalf("expected zero deletions")
	}
	if svc.Healthy(ctx) {
		t.Fatalf("expected unhealthy")
	}
	svc.InvalidateDashboard(ctx, "c") // must not panic
}

func TestNilServiceIsANoOp(t *testing.T) {
	var svc *Service
	var v int
	if svc.Get(context.Background(), "k", "", &v) {
		t.Fatalf("nil service must miss")
	}
	svc.InvalidateDashboard(context.Background(), "c")
}

func TestGlobToLike(t *testing.T) {
	cases := map[string]string{
		`ft:c1:settings:*`: `ft:c1:settings:%`,
		`ft:c_1:?`:         `ft:c\_1:_`,
		`ft:a\*b:*`:        `ft:a*b:%`,
		`ft:100%:*`:        `ft:100\%:%`,
	}
	for in, want := range cases {
		if got := globToLike(in); got != want {
			t.Fatalf("globToLike(%q) = %q, want %q", in, got, want)
		}
	}
}
