// internal/app/digest_service.go
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"pastoral_care_worker/internal/domain/campus"
	"pastoral_care_worker/internal/domain/careevent"
	"pastoral_care_worker/internal/domain/followup"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/domain/notification"
	"pastoral_care_worker/internal/domain/user"
	"pastoral_care_worker/internal/infra/clock"
)

// digestListLimit caps how many names each digest section prints.
const digestListLimit = 10

// DigestStats are the per-campus counts of the daily digest.
type DigestStats struct {
	BirthdaysToday    int `json:"birthdays_today"`
	BirthdaysWeek     int `json:"birthdays_week"`
	GriefDue          int `json:"grief_due"`
	HospitalFollowups int `json:"hospital_followups"`
	AtRisk            int `json:"at_risk"`
	Disconnected      int `json:"disconnected"`
}

// DigestItem is one line of a digest section.
type DigestItem struct {
	MemberID   string `json:"member_id"`
	MemberName string `json:"member_name"`
	Detail     string `json:"detail"`
	Date       string `json:"date,omitempty"`
}

type DigestSections struct {
	BirthdaysToday    []DigestItem `json:"birthdays_today"`
	BirthdaysWeek     []DigestItem `json:"birthdays_week"`
	GriefDue          []DigestItem `json:"grief_due"`
	HospitalFollowups []DigestItem `json:"hospital_followups"`
	AtRisk            []DigestItem `json:"at_risk"`
}

// Digest is the read-only morning summary of one campus.
type Digest struct {
	CampusID   string         `json:"campus_id"`
	CampusName string         `json:"campus_name"`
	Date       string         `json:"date"`
	Stats      DigestStats    `json:"stats"`
	Sections   DigestSections `json:"sections"`
	Message    string         `json:"message"`
}

// DigestRunSummary reports one scheduled digest run.
type DigestRunSummary struct {
	Campuses int
	Sent     int
	Failed   int
	Skipped  int
}

type DigestService interface {
	Generate(ctx context.Context, campusID string) (*Digest, error)
	RunDaily(ctx context.Context) (*DigestRunSummary, error)
}

type DigestServiceImpl struct {
	campuses   campus.Repository
	members    member.Repository
	users      user.Repository
	events     careevent.Repository
	stages     followup.Repository
	notifier   NotificationService
	settings   SettingsProvider
	clock      clock.Source
	churchName string
	preferred  notification.Channel
	logger     *logrus.Entry
}

func NewDigestServiceImpl(
	campuses campus.Repository,
	members member.Repository,
	users user.Repository,
	events careevent.Repository,
	stages followup.Repository,
	notifier NotificationService,
	settings SettingsProvider,
	clk clock.Source,
	churchName string,
	preferred notification.Channel,
	logger *logrus.Entry,
) *DigestServiceImpl {
	return &DigestServiceImpl{
		campuses:   campuses,
		members:    members,
		users:      users,
		events:     events,
		stages:     stages,
		notifier:   notifier,
		settings:   settings,
		clock:      clk,
		churchName: churchName,
		preferred:  preferred,
		logger:     logger,
	}
}

// Generate builds the digest for one campus. It only reads; events and
// stages that are completed or ignored are not counted.
func (s *DigestServiceImpl) Generate(ctx context.Context, campusID string) (*Digest, error) {
	c, err := s.campuses.GetByID(ctx, campusID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campus %s: %w", campusID, err)
	}
	today := s.clock.Today()
	lead := birthdayLeadDays(s.settings, campusID)

	birthdaysToday, err := s.events.ListPending(ctx, campusID, careevent.PendingFilter{
		Types: []careevent.EventType{careevent.TypeBirthday},
		From:  today,
		To:    today,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list today's birthdays: %w", err)
	}
	birthdaysWeek, err := s.events.ListPending(ctx, campusID, careevent.PendingFilter{
		Types: []careevent.EventType{careevent.TypeBirthday},
		From:  today.AddDate(0, 0, 1),
		To:    today.AddDate(0, 0, lead),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming birthdays: %w", err)
	}
	grief, err := s.stages.ListDue(ctx, campusID, followup.KindGrief, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list due grief stages: %w", err)
	}
	accident, err := s.stages.ListDue(ctx, campusID, followup.KindAccident, today)
	if err != nil {
		return nil, fmt.Errorf("failed to list due accident follow-ups: %w", err)
	}
	counts, err := s.members.CountByEngagement(ctx, campusID)
	if err != nil {
		return nil, fmt.Errorf("failed to count engagement: %w", err)
	}
	atRisk, err := s.members.ListByEngagement(ctx, campusID, []member.EngagementStatus{member.StatusAtRisk}, digestListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list at-risk members: %w", err)
	}

	d := &Digest{
		CampusID:   c.ID,
		CampusName: c.Name,
		Date:       clock.DateKey(today),
		Stats: DigestStats{
			BirthdaysToday:    len(birthdaysToday),
			BirthdaysWeek:     len(birthdaysWeek),
			GriefDue:          len(grief),
			HospitalFollowups: len(accident),
			AtRisk:            counts[member.StatusAtRisk],
			Disconnected:      counts[member.StatusDisconnected],
		},
	}
	for _, e := range birthdaysToday {
		d.Sections.BirthdaysToday = append(d.Sections.BirthdaysToday, eventItem(e))
	}
	for _, e := range birthdaysWeek {
		d.Sections.BirthdaysWeek = append(d.Sections.BirthdaysWeek, eventItem(e))
	}
	for _, st := range grief {
		d.Sections.GriefDue = append(d.Sections.GriefDue, stageItem(st))
	}
	for _, st := range accident {
		d.Sections.HospitalFollowups = append(d.Sections.HospitalFollowups, stageItem(st))
	}
	for _, m := range atRisk {
		d.Sections.AtRisk = append(d.Sections.AtRisk, DigestItem{
			MemberID:   m.ID,
			MemberName: m.Name,
			Detail:     fmt.Sprintf("%d days since last contact", m.DaysSinceLastContact),
		})
	}
	d.Message = s.render(d)
	return d, nil
}

// RunDaily sends each active campus's digest to that campus's staff. A
// campus or recipient that fails is logged and skipped.
func (s *DigestServiceImpl) RunDaily(ctx context.Context) (*DigestRunSummary, error) {
	campuses, err := s.campuses.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active campuses: %w", err)
	}
	summary := &DigestRunSummary{}
	for _, c := range campuses {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Campuses++
		log := s.logger.WithField("campus_id", c.ID)

		digest, err := s.Generate(ctx, c.ID)
		if err != nil {
			log.WithError(err).Error("Failed to generate daily digest")
			summary.Failed++
			continue
		}
		recipients, err := s.users.ListDigestRecipients(ctx, c.ID)
		if err != nil {
			log.WithError(err).Error("Failed to list digest recipients")
			summary.Failed++
			continue
		}
		for _, u := range recipients {
			channel, address, ok := s.route(u)
			if !ok {
				log.WithField("user_id", u.ID).Warn("Staff member has no reachable address, skipping digest")
				summary.Skipped++
				continue
			}
			_, err := s.notifier.Send(ctx, Request{
				CampusID:    c.ID,
				RecipientID: u.ID,
				Channel:     channel,
				Type:        notification.MessageDailyDigest,
				Recipient:   address,
				Message:     digest.Message,
			})
			if err != nil {
				log.WithError(err).WithField("user_id", u.ID).Error("Failed to deliver daily digest")
				summary.Failed++
				continue
			}
			summary.Sent++
		}
	}
	s.logger.WithFields(logrus.Fields{
		"campuses": summary.Campuses,
		"sent":     summary.Sent,
		"failed":   summary.Failed,
		"skipped":  summary.Skipped,
	}).Info("Daily digest run finished")
	return summary, nil
}

// route picks the preferred channel when the user is reachable on it and
// falls back to the other configured one.
func (s *DigestServiceImpl) route(u *user.User) (notification.Channel, string, bool) {
	candidates := []notification.Channel{s.preferred, notification.ChannelWhatsApp, notification.ChannelTelegram}
	for _, ch := range candidates {
		if !s.notifier.HasChannel(ch) {
			continue
		}
		switch ch {
		case notification.ChannelTelegram:
			if u.TelegramID != 0 {
				return ch, strconv.FormatInt(u.TelegramID, 10), true
			}
		case notification.ChannelWhatsApp:
			if u.Phone != "" {
				return ch, u.Phone, true
			}
		}
	}
	return "", "", false
}

func (s *DigestServiceImpl) render(d *Digest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\nDaily Pastoral Care Digest, %s\n", s.churchName, d.CampusName, d.Date)

	section := func(title string, total int, items []DigestItem) {
		if total == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s (%d):\n", title, total)
		shown := items
		if len(shown) > digestListLimit {
			shown = shown[:digestListLimit]
		}
		for _, it := range shown {
			line := "- " + it.MemberName
			if it.Detail != "" {
				line += ": " + it.Detail
			}
			b.WriteString(line + "\n")
		}
		if total > len(shown) {
			fmt.Fprintf(&b, "  ...and %d more\n", total-len(shown))
		}
	}
	section("Birthdays today", d.Stats.BirthdaysToday, d.Sections.BirthdaysToday)
	section("Birthdays this week", d.Stats.BirthdaysWeek, d.Sections.BirthdaysWeek)
	section("Grief support due", d.Stats.GriefDue, d.Sections.GriefDue)
	section("Hospital follow-ups due", d.Stats.HospitalFollowups, d.Sections.HospitalFollowups)
	section("At-risk members", d.Stats.AtRisk, d.Sections.AtRisk)
	if d.Stats.Disconnected > 0 {
		fmt.Fprintf(&b, "\nDisconnected members: %d\n", d.Stats.Disconnected)
	}

	if d.Stats == (DigestStats{}) {
		b.WriteString("\nNo pastoral care tasks today.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func eventItem(e *careevent.CareEvent) DigestItem {
	return DigestItem{
		MemberID:   e.MemberID,
		MemberName: e.MemberName,
		Detail:     e.Title,
		Date:       clock.DateKey(e.EventDate),
	}
}

func stageItem(st *followup.Stage) DigestItem {
	return DigestItem{
		MemberID:   st.MemberID,
		MemberName: st.MemberName,
		Detail:     st.Label(),
		Date:       clock.DateKey(st.ScheduledDate),
	}
}
