// internal/infra/clock/clock.go
package clock

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTimezone is the organisational timezone every day boundary is computed in.
const DefaultTimezone = "Asia/Jakarta"

const dateLayout = "2006-01-02"

// Source yields the current instant and calendar day in one fixed location.
type Source interface {
	Now() time.Time
	Today() time.Time
	Location() *time.Location
}

// OrgClock is the production Source backed by the wall clock.
type OrgClock struct {
	loc *time.Location
}

// New loads the named IANA timezone. An empty name falls back to DefaultTimezone.
func New(tzName string) (*OrgClock, error) {
	if tzName == "" {
		tzName = DefaultTimezone
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", tzName, err)
	}
	return &OrgClock{loc: loc}, nil
}

func (c *OrgClock) Now() time.Time           { return NowIn(c.loc) }
func (c *OrgClock) Today() time.Time         { return TodayIn(c.loc) }
func (c *OrgClock) Location() *time.Location { return c.loc }

// NowIn returns the current instant expressed in loc.
func NowIn(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// TodayIn returns midnight of the current calendar day in loc.
func TodayIn(loc *time.Location) time.Time {
	return StartOfDay(NowIn(loc))
}

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateKey formats the calendar day of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD string as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, loc)
}

// Fixed is a manually advanced Source for tests and dry runs.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Today() time.Time { return StartOfDay(f.Now()) }

func (f *Fixed) Location() *time.Location { return f.Now().Location() }

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set replaces the current instant.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}
