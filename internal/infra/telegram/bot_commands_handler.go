// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"pastoral_care_worker/internal/app"
	"pastoral_care_worker/internal/domain/followup"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/domain/user"
	"pastoral_care_worker/internal/infra/clock"
)

const atRiskListLimit = 15

// Commands answers staff chat commands. Every reply is limited to the
// campus the sender belongs to; full admins name the campus explicitly.
type Commands struct {
	staff      *app.StaffService
	digest     app.DigestService
	engagement app.EngagementService
	timeline   app.TimelineService
	events     app.CareEventService
	members    member.Repository
	stages     followup.Repository
	clock      clock.Source
	logger     *logrus.Entry
}

func NewCommands(
	staff *app.StaffService,
	digest app.DigestService,
	engagement app.EngagementService,
	timeline app.TimelineService,
	events app.CareEventService,
	members member.Repository,
	stages followup.Repository,
	clk clock.Source,
	logger *logrus.Entry,
) *Commands {
	return &Commands{
		staff:      staff,
		digest:     digest,
		engagement: engagement,
		timeline:   timeline,
		events:     events,
		members:    members,
		stages:     stages,
		clock:      clk,
		logger:     logger,
	}
}

type replyFunc func(ctx context.Context, senderID int64, args []string) string

func textHandler(ctx context.Context, fn replyFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		return c.Send(fn(ctx, c.Sender().ID, c.Args()))
	}
}

// Register binds every command and callback on the bot.
func (h *Commands) Register(ctx context.Context, b *telebot.Bot) {
	b.Handle("/start", func(c telebot.Context) error {
		return c.Send(h.Start(ctx, c.Sender().ID, c.Sender().FirstName))
	})
	b.Handle("/help", textHandler(ctx, h.Help))
	b.Handle("/digest", textHandler(ctx, h.Digest))
	b.Handle("/at_risk", textHandler(ctx, h.AtRisk))
	b.Handle("/engagement", textHandler(ctx, h.EngagementDryRun))
	b.Handle("/refresh_engagement", textHandler(ctx, h.RefreshEngagement))
	b.Handle("/delete_event", textHandler(ctx, h.DeleteEvent))
	h.registerInlineResponses(ctx, b)
}

// sender resolves the chat user and the campus the request targets. The
// returned reply is non-empty when the request must stop there.
func (h *Commands) sender(ctx context.Context, log *logrus.Entry, senderID int64, args []string) (*user.User, string, string) {
	u, err := h.staff.Identify(ctx, senderID)
	if err != nil {
		if errors.Is(err, app.ErrStaffNotFound) || errors.Is(err, app.ErrStaffInactive) {
			log.Info("Command from unknown or inactive user")
			return nil, "", "Your Telegram account is not linked to an active staff account. Please contact your campus administrator."
		}
		log.WithError(err).Error("Failed to identify staff member")
		return nil, "", "Something went wrong while checking your account. Please try again later."
	}
	requested := ""
	if len(args) > 0 {
		requested = args[0]
	}
	campusID, err := h.staff.ResolveCampus(u, requested)
	switch {
	case errors.Is(err, app.ErrCampusRequired):
		return nil, "", "Please add the campus id, for example: /digest <campus_id>"
	case err != nil:
		log.WithField("requested_campus", requested).Warn("Cross-campus request rejected")
		return nil, "", "You can only view your own campus."
	}
	return u, campusID, ""
}

func (h *Commands) Start(ctx context.Context, senderID int64, firstName string) string {
	log := h.logger.WithFields(logrus.Fields{"command": "/start", "sender_id": senderID})
	log.Info("Processing /start command")

	u, err := h.staff.Identify(ctx, senderID)
	if err != nil {
		if errors.Is(err, app.ErrStaffNotFound) || errors.Is(err, app.ErrStaffInactive) {
			return fmt.Sprintf("Hello %s! This bot sends the daily pastoral care digest to church staff. Ask your campus administrator to link your Telegram account.", firstName)
		}
		log.WithError(err).Error("Failed to identify staff member")
		return "Something went wrong while checking your account. Please try again later."
	}
	return fmt.Sprintf("Hello %s! You will receive the daily pastoral care digest here. Use /help to see the available commands.", u.Name)
}

func (h *Commands) Help(ctx context.Context, senderID int64, _ []string) string {
	u, err := h.staff.Identify(ctx, senderID)
	if err != nil {
		return "No commands are available to you. Ask your campus administrator to link your Telegram account."
	}
	var b strings.Builder
	campusArg := ""
	if u.Role == user.RoleFullAdmin {
		campusArg = " <campus_id>"
	}
	b.WriteString("Available commands:\n\n")
	fmt.Fprintf(&b, "/digest%s - today's pastoral care digest\n", campusArg)
	fmt.Fprintf(&b, "/at_risk%s - members who have not been contacted recently\n", campusArg)
	fmt.Fprintf(&b, "/followups%s - grief and hospital follow-ups due today\n", campusArg)
	fmt.Fprintf(&b, "/tasks%s - open care tasks\n", campusArg)
	if h.staff.CanManage(u) {
		fmt.Fprintf(&b, "/engagement%s - engagement distribution (dry run)\n", campusArg)
		fmt.Fprintf(&b, "/refresh_engagement%s - recalculate engagement now\n", campusArg)
		fmt.Fprintf(&b, "/delete_event <event_id>%s - delete a care event\n", campusArg)
	}
	b.WriteString("/help - show this message")
	return b.String()
}

func (h *Commands) Digest(ctx context.Context, senderID int64, args []string) string {
	log := h.logger.WithFields(logrus.Fields{"command": "/digest", "sender_id": senderID})
	_, campusID, reply := h.sender(ctx, log, senderID, args)
	if reply != "" {
		return reply
	}
	d, err := h.digest.Generate(ctx, campusID)
	if err != nil {
		log.WithError(err).WithField("campus_id", campusID).Error("Failed to generate digest")
		return "Could not build the digest right now. Please try again later."
	}
	return d.Message
}

func (h *Commands) AtRisk(ctx context.Context, senderID int64, args []string) string {
	log := h.logger.WithFields(logrus.Fields{"command": "/at_risk", "sender_id": senderID})
	_, campusID, reply := h.sender(ctx, log, senderID, args)
	if reply != "" {
		return reply
	}
	members, err := h.members.ListByEngagement(ctx, campusID,
		[]member.EngagementStatus{member.StatusAtRisk, member.StatusDisconnected}, atRiskListLimit)
	if err != nil {
		log.WithError(err).WithField("campus_id", campusID).Error("Failed to list at-risk members")
		return "Could not load at-risk members right now. Please try again later."
	}
	if len(members) == 0 {
		return "No at-risk or disconnected members. Well done!"
	}
	var b strings.Builder
	b.WriteString("Members needing contact:\n")
	for _, m := range members {
		if m.DaysSinceLastContact >= member.NoContactDays {
			fmt.Fprintf(&b, "- %s (%s, never contacted)\n", m.Name, m.EngagementStatus)
			continue
		}
		fmt.Fprintf(&b, "- %s (%s, %d days)\n", m.Name, m.EngagementStatus, m.DaysSinceLastContact)
	}
	return strings.TrimRight(b.String(), "\n")
}
