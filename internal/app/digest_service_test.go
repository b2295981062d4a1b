package app

import (
	"context"
	"strings"
	"testing"

	"pastoral_care_worker/internal/domain/careevent"
	"pastoral_care_worker/internal/domain/user"
)

func TestDigestCountsTodaysBirthday(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	f.campus(t, "c2", "North")
	ani := f.member(t, "c1", "Ani Wijaya", 5)
	budi := f.member(t, "c2", "Budi Santoso", 5)
	createEvent(t, f, "c1", ani.ID, careevent.TypeBirthday, f.clock.Today())
	createEvent(t, f, "c2", budi.ID, careevent.TypeBirthday, f.clock.Today())

	d1, err := f.digest.Generate(ctx, "c1")
	if err != nil {
		t.Fatalf("generate c1: %v", err)
	}
	d2, err := f.digest.Generate(ctx, "c2")
	if err != nil {
		t.Fatalf("generate c2: %v", err)
	}

	if d1.Stats.BirthdaysToday != 1 || d2.Stats.BirthdaysToday != 1 {
		t.Fatalf("expected one birthday each, got %d and %d", d1.Stats.BirthdaysToday, d2.Stats.BirthdaysToday)
	}
	if !strings.Contains(d1.Message, ani.Name) || strings.Contains(d1.Message, budi.Name) {
		t.Fatalf("c1 digest leaks or misses names:\n%s", d1.Message)
	}
	if !strings.Contains(d2.Message, budi.Name) || strings.Contains(d2.Message, ani.Name) {
		t.Fatalf("c2 digest leaks or misses names:\n%s", d2.Message)
	}
	if d1.CampusName != "Central" || d1.Date != "2026-03-10" {
		t.Fatalf("unexpected header %s/%s", d1.CampusName, d1.Date)
	}
}

func TestDigestSkipsClosedEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	m := f.member(t, "c1", "Citra", 5)
	res := createEvent(t, f, "c1", m.ID, careevent.TypeBirthday, f.clock.Today())
	if _, err := f.events.Complete(ctx, "c1", res.Event.ID, staff, "Called"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	d, err := f.digest.Generate(ctx, "c1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if d.Stats.BirthdaysToday != 0 {
		t.Fatalf("completed birthday was counted")
	}
}

func TestDigestUpcomingBirthdaysAndDueStages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	m := f.member(t, "c1", "Dewi", 5)
	today := f.clock.Today()
	createEvent(t, f, "c1", m.ID, careevent.TypeBirthday, today.AddDate(0, 0, 3))
	createEvent(t, f, "c1", m.ID, careevent.TypeBirthday, today.AddDate(0, 0, 7))
	createEvent(t, f, "c1", m.ID, careevent.TypeBirthday, today.AddDate(0, 0, 8))
	createEvent(t, f, "c1", m.ID, careevent.TypeGriefLoss, today.AddDate(0, 0, -7))
	createEvent(t, f, "c1", m.ID, careevent.TypeAccidentIllness, today.AddDate(0, 0, -7))
	f.member(t, "c1", "Eko", 100)
	f.member(t, "c1", "Fitri", 365)
	if _, err := f.engagement.RefreshCampus(ctx, "c1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	d, err := f.digest.Generate(ctx, "c1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := DigestStats{
		BirthdaysToday:    0,
		BirthdaysWeek:     2,
		GriefDue:          1,
		HospitalFollowups: 2,
		AtRisk:            1,
		Disconnected:      1,
	}
	if d.Stats != want {
		t.Fatalf("stats = %+v, want %+v", d.Stats, want)
	}
	if !strings.Contains(d.Message, "Eko") {
		t.Fatalf("at-risk member missing from message:\n%s", d.Message)
	}
}

func TestDigestIsReadOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	m := f.member(t, "c1", "Gita", 5)
	createEvent(t, f, "c1", m.ID, careevent.TypeGriefLoss, f.clock.Today().AddDate(0, 0, -7))
	before, _ := f.store.Stages.ListByMember(ctx, "c1", m.ID)

	if _, err := f.digest.Generate(ctx, "c1"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	after, _ := f.store.Stages.ListByMember(ctx, "c1", m.ID)
	for i := range before {
		if before[i].Pending() != after[i].Pending() || before[i].ReminderSent != after[i].ReminderSent {
			t.Fatalf("digest modified stage %s", before[i].ID)
		}
	}
}

func TestRunDailySendsToCampusStaffOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.campus(t, "c1", "Central")
	f.campus(t, "c2", "North")
	f.staffUser(t, "c1", "Admin Central", user.RoleCampusAdmin, "+62811000001")
	f.staffUser(t, "c1", "Pastor No Contact", user.RolePastor, "")
	f.staffUser(t, "c1", "Head Office", user.RoleFullAdmin, "+62811000009")
	f.staffUser(t, "c2", "Admin North", user.RoleCampusAdmin, "+62811000002")
	ani := f.member(t, "c1", "Ani", 5)
	createEvent(t, f, "c1", ani.ID, careevent.TypeBirthday, f.clock.Today())

	summary, err := f.digest.RunDaily(ctx)
	if err != nil {
		t.Fatalf("run daily: %v", err)
	}
	if summary.Campuses != 2 || summary.Sent != 2 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	byAddress := map[string]string{}
	for _, d := range f.whatsapp.deliveries() {
		byAddress[d.address] = d.text
	}
	if _, ok := byAddress["+62811000009"]; ok {
		t.Fatalf("full admin should not receive campus digests")
	}
	if !strings.Contains(byAddress["+62811000001"], "Ani") {
		t.Fatalf("c1 admin digest missing c1 member")
	}
	if strings.Contains(byAddress["+62811000002"], "Ani") {
		t.Fatalf("c2 admin received c1 member data")
	}
}

func TestRunDailyPrefersTelegramWhenLinked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.digest.preferred = "telegram"
	f.campus(t, "c1", "Central")
	f.staffUser(t, "c1", "Admin", user.RoleCampusAdmin, "+62811000001")
	linked := &user.User{CampusID: "c1", Name: "Linked", Role: user.RolePastor, TelegramID: 4242, IsActive: true}
	if err := f.store.Users.Create(ctx, linked); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := f.digest.RunDaily(ctx); err != nil {
		t.Fatalf("run daily: %v", err)
	}
	tg := f.telegram.deliveries()
	if len(tg) != 1 || tg[0].address != "4242" {
		t.Fatalf("expected one telegram delivery to 4242, got %+v", tg)
	}
	if wa := f.whatsapp.deliveries(); len(wa) != 1 || wa[0].address != "+62811000001" {
		t.Fatalf("unlinked user should fall back to whatsapp, got %+v", wa)
	}
}
