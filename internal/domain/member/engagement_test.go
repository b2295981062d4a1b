package member

import (
	"testing"
	"time"
)

func TestClassifyBoundaries(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		days int
		want EngagementStatus
	}{
		{-3, StatusActive},
		{0, StatusActive},
		{60, StatusActive},
		{61, StatusAtRisk},
		{180, StatusAtRisk},
		{181, StatusDisconnected},
		{NoContactDays, StatusDisconnected},
	}
	for _, tc := range cases {
		if got := th.Classify(tc.days); got != tc.want {
			t.Fatalf("days=%d: expected %s, got %s", tc.days, tc.want, got)
		}
	}
}

func TestAlternateThresholdsAreInternallyConsistent(t *testing.T) {
	// The 60/90 pair still classifies monotonically when configured per campus.
	th := Thresholds{AtRiskDays: 60, DisconnectedDays: 90}
	if err := th.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	prev := StatusActive
	rank := map[EngagementStatus]int{StatusActive: 0, StatusAtRisk: 1, StatusDisconnected: 2}
	for days := 0; days <= 400; days++ {
		got := th.Classify(days)
		if rank[got] < rank[prev] {
			t.Fatalf("classification regressed at day %d: %s after %s", days, got, prev)
		}
		prev = got
	}
	if th.Classify(90) != StatusAtRisk || th.Classify(91) != StatusDisconnected {
		t.Fatalf("unexpected 60/90 boundary behaviour")
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	if err := (Thresholds{AtRiskDays: 90, DisconnectedDays: 60}).Validate(); err == nil {
		t.Fatalf("expected error for inverted thresholds")
	}
	if err := (Thresholds{AtRiskDays: 0, DisconnectedDays: 60}).Validate(); err == nil {
		t.Fatalf("expected error for zero at-risk threshold")
	}
}

func TestDaysSinceContactFloors(t *testing.T) {
	now := time.Date(2026, time.May, 10, 9, 0, 0, 0, time.UTC)
	last := now.Add(-(61*24*time.Hour + 23*time.Hour))
	if got := DaysSinceContact(&last, now); got != 61 {
		t.Fatalf("expected 61, got %d", got)
	}
	if got := DaysSinceContact(nil, now); got != NoContactDays {
		t.Fatalf("expected sentinel, got %d", got)
	}
}

func TestParseContactDateMalformedIsNeverContacted(t *testing.T) {
	now := time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)
	th := DefaultThresholds()

	status, days := th.Evaluate(ParseContactDate("not-a-date", time.UTC), now)
	if status != StatusDisconnected || days != NoContactDays {
		t.Fatalf("expected disconnected/999, got %s/%d", status, days)
	}

	parsed := ParseContactDate("2026-05-01", time.UTC)
	if parsed == nil {
		t.Fatalf("expected valid date to parse")
	}
	status, days = th.Evaluate(parsed, now)
	if status != StatusActive || days != 9 {
		t.Fatalf("expected active/9, got %s/%d", status, days)
	}
}
