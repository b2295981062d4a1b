package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"pastoral_care_worker/internal/app"
	"pastoral_care_worker/internal/domain/careevent"
)

const (
	eventPrefix       = "event_"
	eventDonePrefix   = "event_done_"
	eventIgnorePrefix = "event_ignore_"
	eventUndoPrefix   = "event_undo_"
)

const taskListLimit = 15

var eventPrefixes = []string{eventDonePrefix, eventIgnorePrefix, eventUndoPrefix}

// Tasks lists open care events dated today or earlier in the sender's campus.
func (h *Commands) Tasks(ctx context.Context, senderID int64, args []string) (string, []*careevent.CareEvent) {
	log := h.logger.WithFields(logrus.Fields{"command": "/tasks", "sender_id": senderID})
	_, campusID, reply := h.sender(ctx, log, senderID, args)
	if reply != "" {
		return reply, nil
	}
	events, err := h.events.ListDue(ctx, campusID, h.clock.Today(), taskListLimit)
	if err != nil {
		log.WithError(err).WithField("campus_id", campusID).Error("Failed to list open care events")
		return "Could not load tasks right now. Please try again later.", nil
	}
	if len(events) == 0 {
		return "No open care tasks.", nil
	}
	var b strings.Builder
	b.WriteString("Open care tasks:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", e.MemberName, e.Title, e.EventDate.Format("2 Jan"))
	}
	return strings.TrimRight(b.String(), "\n"), events
}

// EventCallback handles the care task buttons the same way StageCallback
// handles follow-up buttons.
func (h *Commands) EventCallback(ctx context.Context, senderID int64, data string) (string, string) {
	log := h.logger.WithFields(logrus.Fields{"handler": "event_callback", "sender_id": senderID})

	prefix, eventID, requested := parseButton(data, eventPrefixes)
	if prefix == "" {
		log.WithField("data", data).Warn("Unhandled callback data")
		return "Unknown action.", ""
	}
	by, campusID, reply := h.buttonSender(ctx, log, senderID, requested)
	if reply != "" {
		return reply, ""
	}
	log = log.WithFields(logrus.Fields{"campus_id": campusID, "event_id": eventID})

	var err error
	switch prefix {
	case eventDonePrefix:
		_, err = h.events.Complete(ctx, campusID, eventID, by, "Completed via Telegram")
	case eventIgnorePrefix:
		_, err = h.events.Ignore(ctx, campusID, eventID, by)
	case eventUndoPrefix:
		_, err = h.events.Undo(ctx, campusID, eventID)
	}
	switch {
	case errors.Is(err, app.ErrEventNotPending):
		return "This task was already handled.", ""
	case errors.Is(err, careevent.ErrNotFound):
		return "Task not found.", ""
	case err != nil:
		log.WithError(err).Error("Failed to update care event")
		return "Something went wrong. Please try again.", ""
	}

	undo := buttonData(eventUndoPrefix, eventID, campusID)
	switch prefix {
	case eventDonePrefix:
		return "Marked as done.", undo
	case eventIgnorePrefix:
		return "Skipped.", undo
	default:
		return "Task reopened.", ""
	}
}
