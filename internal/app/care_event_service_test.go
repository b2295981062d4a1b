package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/careevent"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/domain/user"
)

func countActions(entries []*activity.Entry) map[activity.Action]int {
	out := map[activity.Action]int{}
	for _, e := range entries {
		out[e.Action]++
	}
	return out
}

func TestCompleteThenUndoCareEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	m := f.member(t, "c1", "Ani", 120)
	res := createEvent(t, f, "c1", m.ID, careevent.TypeFinancialAid, f.clock.Today())

	done, err := f.events.Complete(ctx, "c1", res.Event.ID, staff, "Delivered groceries")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.Completed || done.CompletedBy != staff.Name {
		t.Fatalf("unexpected completed event %+v", done)
	}
	touched, _ := f.store.Members.GetByID(ctx, "c1", m.ID)
	if touched.EngagementStatus != member.StatusActive || touched.DaysSinceLastContact != 0 {
		t.Fatalf("completion should refresh contact, got %s/%d", touched.EngagementStatus, touched.DaysSinceLastContact)
	}
	if _, err := f.events.Complete(ctx, "c1", res.Event.ID, staff, ""); !errors.Is(err, ErrEventNotPending) {
		t.Fatalf("second completion should fail with ErrEventNotPending, got %v", err)
	}

	undone, err := f.events.Undo(ctx, "c1", res.Event.ID)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if undone.Notes != "" {
		t.Fatalf("undo should clear completion notes, got %q", undone.Notes)
	}
	reopened, _ := f.store.CareEvents.GetByID(ctx, "c1", res.Event.ID)
	if !reopened.Pending() || reopened.CompletedAt != nil || reopened.CompletedBy != "" || reopened.Notes != "" {
		t.Fatalf("event not reopened: %+v", reopened)
	}
	entries, _ := f.store.Activity.ListByCampus(ctx, "c1", 0)
	got := countActions(entries)
	if got[activity.ActionCreateCareEvent] != 1 || got[activity.ActionCompleteTask] != 0 {
		t.Fatalf("undo should keep the creation entry only, got %v", got)
	}
}

func TestDeleteCareEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	f.campus(t, "c2", "North")
	m := f.member(t, "c1", "Citra", 10)
	res := createEvent(t, f, "c1", m.ID, careevent.TypeNewHouse, f.clock.Today())
	f.cache.SetDashboard(ctx, "c1", DashboardStats{TotalMembers: 1})

	if err := f.events.Delete(ctx, "c2", res.Event.ID, staff); !errors.Is(err, careevent.ErrNotFound) {
		t.Fatalf("c2 must not delete a c1 event, got %v", err)
	}
	events, err := f.events.ListByMember(ctx, "c1", m.ID)
	if err != nil || len(events) != 1 {
		t.Fatalf("list by member = %d, %v; want 1, nil", len(events), err)
	}

	if err := f.events.Delete(ctx, "c1", res.Event.ID, staff); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.store.CareEvents.GetByID(ctx, "c1", res.Event.ID); !errors.Is(err, careevent.ErrNotFound) {
		t.Fatalf("event still stored: %v", err)
	}
	if events, _ := f.events.ListByMember(ctx, "c1", m.ID); len(events) != 0 {
		t.Fatalf("deleted event still listed: %+v", events)
	}
	var cached DashboardStats
	if f.cache.GetDashboard(ctx, "c1", &cached) {
		t.Fatalf("delete should invalidate the dashboard cache")
	}
	entries, _ := f.store.Activity.ListByCampus(ctx, "c1", 0)
	var deleted *activity.Entry
	for _, e := range entries {
		if e.Action == activity.ActionDeleteCareEvent {
			deleted = e
		}
	}
	if deleted == nil || deleted.CareEventID != res.Event.ID || deleted.MemberName != "Citra" || deleted.ActorName != staff.Name {
		t.Fatalf("delete not logged: %+v", deleted)
	}
	if err := f.events.Delete(ctx, "c1", res.Event.ID, staff); !errors.Is(err, careevent.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestListByMemberIsCampusScoped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	f.campus(t, "c2", "North")
	m := f.member(t, "c1", "Dewi", 10)
	createEvent(t, f, "c1", m.ID, careevent.TypeBirthday, f.clock.Today())

	if _, err := f.events.ListByMember(ctx, "c2", m.ID); !errors.Is(err, member.ErrNotFound) {
		t.Fatalf("c2 must not list a c1 member's events, got %v", err)
	}
}

func TestIgnoreCareEventLeavesContactUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	m := f.member(t, "c1", "Budi", 120)
	res := createEvent(t, f, "c1", m.ID, careevent.TypeNewHouse, f.clock.Today())

	if _, err := f.events.Ignore(ctx, "c1", res.Event.ID, staff); err != nil {
		t.Fatalf("ignore: %v", err)
	}
	after, _ := f.store.Members.GetByID(ctx, "c1", m.ID)
	if after.LastContactDate == nil || !after.LastContactDate.Before(f.clock.Now().AddDate(0, 0, -100)) {
		t.Fatalf("ignoring must not count as contact")
	}
	entries, _ := f.store.Activity.ListByCampus(ctx, "c1", 0)
	if countActions(entries)[activity.ActionIgnoreTask] != 1 {
		t.Fatalf("ignore not logged")
	}
}

func TestCreateCareEventValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	m := f.member(t, "c1", "Citra", 5)

	_, err := f.events.Create(ctx, CreateCareEventInput{CampusID: "c1", MemberID: m.ID, EventType: "party", EventDate: f.clock.Now()})
	if !errors.Is(err, ErrInvalidEventType) {
		t.Fatalf("expected ErrInvalidEventType, got %v", err)
	}
	_, err = f.events.Create(ctx, CreateCareEventInput{CampusID: "c1", MemberID: m.ID, EventType: careevent.TypeBirthday})
	if !errors.Is(err, ErrMissingEventField) {
		t.Fatalf("expected ErrMissingEventField, got %v", err)
	}
}

func TestCreateCareEventNormalisesDate(t *testing.T) {
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	m := f.member(t, "c1", "Dewi", 5)
	// 20:00 UTC on the 9th is 03:00 on the 10th in Jakarta.
	res := createEvent(t, f, "c1", m.ID, careevent.TypeBirthday, time.Date(2026, time.March, 9, 20, 0, 0, 0, time.UTC))

	want := time.Date(2026, time.March, 10, 0, 0, 0, 0, wib)
	if !res.Event.EventDate.Equal(want) {
		t.Fatalf("event date = %v, want %v", res.Event.EventDate, want)
	}
	if res.Event.Title != "Birthday" {
		t.Fatalf("default title = %q", res.Event.Title)
	}
}

func TestCampusIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	f.campus(t, "c2", "North")
	ani := f.member(t, "c1", "Ani", 5)
	f.member(t, "c2", "Budi", 5)
	f.staffUser(t, "c1", "Admin Central", user.RoleCampusAdmin, "+62811000001")
	f.staffUser(t, "c2", "Admin North", user.RoleCampusAdmin, "+62811000002")
	res := createEvent(t, f, "c1", ani.ID, careevent.TypeChildbirth, f.clock.Today())

	if _, err := f.events.Create(ctx, CreateCareEventInput{
		CampusID: "c2", MemberID: ani.ID, EventType: careevent.TypeBirthday, EventDate: f.clock.Now(), By: staff,
	}); err == nil {
		t.Fatalf("c2 must not create events for a c1 member")
	}
	if _, err := f.events.Complete(ctx, "c2", res.Event.ID, staff, ""); err == nil {
		t.Fatalf("c2 must not complete a c1 event")
	}

	members, _ := f.store.Members.ListByCampus(ctx, "c2")
	for _, m := range members {
		if m.CampusID != "c2" {
			t.Fatalf("c2 listed foreign member %s", m.Name)
		}
	}
	users, _ := f.store.Users.ListByCampus(ctx, "c2")
	if len(users) != 1 || users[0].Name != "Admin North" {
		t.Fatalf("c2 users = %+v", users)
	}
	if logs, _ := f.store.Activity.ListByCampus(ctx, "c2", 0); len(logs) != 0 {
		t.Fatalf("c2 sees %d foreign activity entries", len(logs))
	}
}
