// internal/infra/telegram/stage_response_handlers.go
package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"pastoral_care_worker/internal/app"
	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/followup"
)

const (
	stageDonePrefix   = "stage_done_"
	stageIgnorePrefix = "stage_ignore_"
	stageUndoPrefix   = "stage_undo_"
	stageRemindPrefix = "stage_remind_"
)

var stagePrefixes = []string{stageDonePrefix, stageIgnorePrefix, stageUndoPrefix, stageRemindPrefix}

func (h *Commands) registerInlineResponses(ctx context.Context, b *telebot.Bot) {
	b.Handle("/followups", func(c telebot.Context) error {
		text, stages := h.Followups(ctx, c.Sender().ID, c.Args())
		if len(stages) == 0 {
			return c.Send(text)
		}
		markup := &telebot.ReplyMarkup{}
		rows := make([]telebot.Row, 0, len(stages))
		for _, st := range stages {
			btns := []telebot.Btn{
				markup.Data("Done: "+st.MemberName, "", buttonData(stageDonePrefix, st.ID, st.CampusID)),
				markup.Data("Skip", "", buttonData(stageIgnorePrefix, st.ID, st.CampusID)),
			}
			if st.Kind == followup.KindGrief {
				btns = append(btns, markup.Data("Remind", "", buttonData(stageRemindPrefix, st.ID, st.CampusID)))
			}
			rows = append(rows, markup.Row(btns...))
		}
		markup.Inline(rows...)
		return c.Send(text, markup)
	})

	b.Handle("/tasks", func(c telebot.Context) error {
		text, events := h.Tasks(ctx, c.Sender().ID, c.Args())
		if len(events) == 0 {
			return c.Send(text)
		}
		markup := &telebot.ReplyMarkup{}
		rows := make([]telebot.Row, 0, len(events))
		for _, e := range events {
			rows = append(rows, markup.Row(
				markup.Data("Done: "+e.MemberName, "", buttonData(eventDonePrefix, e.ID, e.CampusID)),
				markup.Data("Skip", "", buttonData(eventIgnorePrefix, e.ID, e.CampusID)),
			))
		}
		markup.Inline(rows...)
		return c.Send(text, markup)
	})

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := c.Callback().Data
		var reply, undo string
		if strings.HasPrefix(data, eventPrefix) {
			reply, undo = h.EventCallback(ctx, c.Sender().ID, data)
		} else {
			reply, undo = h.StageCallback(ctx, c.Sender().ID, data)
		}
		if err := c.Respond(&telebot.CallbackResponse{Text: reply}); err != nil {
			return err
		}
		if undo == "" {
			return nil
		}
		markup := &telebot.ReplyMarkup{}
		markup.Inline(markup.Row(markup.Data("Undo", "", undo)))
		return c.Send(reply, markup)
	})
}

// buttonData is <prefix><id>@<campus>. The campus lets full admins, who have
// no home campus, act on the buttons. Telegram caps callback data at 64
// bytes, so UUIDs are packed.
func buttonData(prefix, id, campusID string) string {
	return prefix + packID(id) + "@" + packID(campusID)
}

// parseButton returns the matched prefix and the unpacked ids, or an empty
// prefix when data is not one of ours.
func parseButton(data string, prefixes []string) (prefix, id, campusID string) {
	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(data, p)
		if !ok {
			continue
		}
		id, campusID, _ = strings.Cut(rest, "@")
		id, campusID = unpackID(id), unpackID(campusID)
		if id == "" {
			return "", "", ""
		}
		return p, id, campusID
	}
	return "", "", ""
}

const packedMark = "~"

// packID shortens a UUID to 23 bytes. Other ids pass through unchanged.
func packID(id string) string {
	u, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return packedMark + base64.RawURLEncoding.EncodeToString(u[:])
}

func unpackID(s string) string {
	packed, ok := strings.CutPrefix(s, packedMark)
	if !ok {
		return s
	}
	raw, err := base64.RawURLEncoding.DecodeString(packed)
	if err != nil {
		return s
	}
	u, err := uuid.FromBytes(raw)
	if err != nil {
		return s
	}
	return u.String()
}

// buttonSender resolves the sender against the campus carried by a button,
// with the same scoping as a command argument.
func (h *Commands) buttonSender(ctx context.Context, log *logrus.Entry, senderID int64, campusID string) (activity.Actor, string, string) {
	var args []string
	if campusID != "" {
		args = []string{campusID}
	}
	u, resolved, reply := h.sender(ctx, log, senderID, args)
	if reply != "" {
		return activity.Actor{}, "", reply
	}
	return activity.Actor{ID: u.ID, Name: u.Name}, resolved, ""
}

// Followups lists the grief and accident stages due today in the sender's campus.
func (h *Commands) Followups(ctx context.Context, senderID int64, args []string) (string, []*followup.Stage) {
	log := h.logger.WithFields(logrus.Fields{"command": "/followups", "sender_id": senderID})
	_, campusID, reply := h.sender(ctx, log, senderID, args)
	if reply != "" {
		return reply, nil
	}
	today := h.clock.Today()
	var due []*followup.Stage
	for _, kind := range []followup.Kind{followup.KindGrief, followup.KindAccident} {
		stages, err := h.stages.ListDue(ctx, campusID, kind, today)
		if err != nil {
			log.WithError(err).WithField("campus_id", campusID).Error("Failed to list due follow-ups")
			return "Could not load follow-ups right now. Please try again later.", nil
		}
		due = append(due, stages...)
	}
	if len(due) == 0 {
		return "No follow-ups are due today.", nil
	}
	var b strings.Builder
	b.WriteString("Follow-ups due:\n")
	for _, st := range due {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", st.MemberName, st.Label(), st.ScheduledDate.Format("2 Jan"))
	}
	return strings.TrimRight(b.String(), "\n"), due
}

// StageCallback handles the follow-up buttons. A forged stage id from another
// campus is not found, and a non-admin naming another campus is refused. The
// second result is the callback data of an Undo button to offer, if any.
func (h *Commands) StageCallback(ctx context.Context, senderID int64, data string) (string, string) {
	log := h.logger.WithFields(logrus.Fields{"handler": "stage_callback", "sender_id": senderID})

	prefix, stageID, requested := parseButton(data, stagePrefixes)
	if prefix == "" {
		log.WithField("data", data).Warn("Unhandled callback data")
		return "Unknown action.", ""
	}
	by, campusID, reply := h.buttonSender(ctx, log, senderID, requested)
	if reply != "" {
		return reply, ""
	}
	log = log.WithFields(logrus.Fields{"campus_id": campusID, "stage_id": stageID})

	var err error
	switch prefix {
	case stageDonePrefix:
		_, err = h.timeline.CompleteStage(ctx, campusID, stageID, by, "Completed via Telegram")
	case stageIgnorePrefix:
		_, err = h.timeline.IgnoreStage(ctx, campusID, stageID, by)
	case stageUndoPrefix:
		_, err = h.timeline.UndoStage(ctx, campusID, stageID)
	case stageRemindPrefix:
		_, err = h.timeline.SendStageReminder(ctx, campusID, stageID)
	}
	switch {
	case errors.Is(err, app.ErrStageNotPending):
		return "This follow-up was already handled.", ""
	case errors.Is(err, followup.ErrNotFound):
		return "Follow-up not found.", ""
	case errors.Is(err, app.ErrReminderUnsupported):
		return "Reminders are only sent for grief follow-ups.", ""
	case errors.Is(err, app.ErrMemberHasNoPhone):
		return "This member has no phone number on file.", ""
	case err != nil && prefix == stageRemindPrefix:
		log.WithError(err).Warn("Grief reminder was not delivered")
		return "The reminder could not be sent.", ""
	case err != nil:
		log.WithError(err).Error("Failed to update follow-up stage")
		return "Something went wrong. Please try again.", ""
	}

	undo := buttonData(stageUndoPrefix, stageID, campusID)
	switch prefix {
	case stageDonePrefix:
		return "Marked as done.", undo
	case stageIgnorePrefix:
		return "Skipped.", undo
	case stageUndoPrefix:
		return "Follow-up reopened.", ""
	default:
		return "Reminder sent.", ""
	}
}
