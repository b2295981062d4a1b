package app

import (
	"context"
	"testing"
	"time"

	"pastoral_care_worker/internal/domain/careevent"
)

func TestDashboardStatsAreCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	f.member(t, "c1", "Ani", 5)

	first, err := f.dashboard.Stats(ctx, "c1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if first.TotalMembers != 1 {
		t.Fatalf("total = %d, want 1", first.TotalMembers)
	}

	// Written straight to the store, so nothing invalidates the cache.
	f.member(t, "c1", "Budi", 5)
	second, _ := f.dashboard.Stats(ctx, "c1")
	if second.TotalMembers != 1 {
		t.Fatalf("expected cached total 1, got %d", second.TotalMembers)
	}

	f.clock.Advance(11 * time.Minute)
	third, _ := f.dashboard.Stats(ctx, "c1")
	if third.TotalMembers != 2 {
		t.Fatalf("expected recomputed total 2 after expiry, got %d", third.TotalMembers)
	}
}

func TestCareEventInvalidatesOnlyItsCampus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	f.campus(t, "c2", "North")
	ani := f.member(t, "c1", "Ani", 5)
	f.member(t, "c2", "Budi", 5)

	if _, err := f.dashboard.Stats(ctx, "c1"); err != nil {
		t.Fatalf("stats c1: %v", err)
	}
	if _, err := f.dashboard.Stats(ctx, "c2"); err != nil {
		t.Fatalf("stats c2: %v", err)
	}
	f.member(t, "c2", "Citra", 5)

	createEvent(t, f, "c1", ani.ID, careevent.TypeBirthday, f.clock.Today())

	c1, _ := f.dashboard.Stats(ctx, "c1")
	if c1.PendingTasks != 1 || c1.BirthdaysToday != 1 {
		t.Fatalf("c1 stats not refreshed after create: %+v", c1)
	}
	c2, _ := f.dashboard.Stats(ctx, "c2")
	if c2.TotalMembers != 1 {
		t.Fatalf("c2 cache was invalidated by a c1 write: %+v", c2)
	}
}

func TestDashboardUnknownCampus(t *testing.T) {
	f := newFixture(t)
	if _, err := f.dashboard.Stats(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for unknown campus")
	}
}

func TestDashboardRefreshWarmsEveryCampus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	f.campus(t, "c2", "North")
	f.member(t, "c1", "Ani", 200)
	if _, err := f.engagement.RefreshCampus(ctx, "c1"); err != nil {
		t.Fatalf("refresh engagement: %v", err)
	}

	n, err := f.dashboard.Refresh(ctx)
	if err != nil || n != 2 {
		t.Fatalf("refresh = %d, %v; want 2, nil", n, err)
	}
	var cached DashboardStats
	if !f.cache.GetDashboard(ctx, "c1", &cached) {
		t.Fatalf("c1 stats not cached")
	}
	if cached.Disconnected != 1 || cached.TotalMembers != 1 {
		t.Fatalf("unexpected cached stats %+v", cached)
	}
	if cached.ActiveMembers+cached.AtRiskMembers+cached.Disconnected != cached.TotalMembers {
		t.Fatalf("status counts do not add up: %+v", cached)
	}
}
