package clock

import (
	"testing"
	"time"
)

func TestTodayUsesOrganisationalDayBoundary(t *testing.T) {
	jakarta, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 18:30 UTC on the 1st is already 01:30 on the 2nd in Jakarta (UTC+7).
	instant := time.Date(2026, time.March, 1, 18, 30, 0, 0, time.UTC).In(jakarta)
	fixed := NewFixed(instant)

	if got := DateKey(fixed.Today()); got != "2026-03-02" {
		t.Fatalf("expected 2026-03-02, got %s", got)
	}
	if fixed.Today().Hour() != 0 || fixed.Today().Minute() != 0 {
		t.Fatalf("expected midnight, got %s", fixed.Today())
	}
}

func TestNewDefaultsToJakarta(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new clock: %v", err)
	}
	if c.Location().String() != DefaultTimezone {
		t.Fatalf("expected %s, got %s", DefaultTimezone, c.Location())
	}
	if _, err := New("Not/AZone"); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestFixedAdvance(t *testing.T) {
	start := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	f := NewFixed(start)
	f.Advance(2 * time.Second)
	if !f.Now().Equal(start.Add(2 * time.Second)) {
		t.Fatalf("advance did not move clock: %s", f.Now())
	}
}

func TestParseDateRoundTripsDateKey(t *testing.T) {
	d, err := ParseDate("2026-12-25", time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if DateKey(d) != "2026-12-25" {
		t.Fatalf("unexpected key %s", DateKey(d))
	}
}
