package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/careevent"
	"pastoral_care_worker/internal/domain/member"
)

// EngagementDryRun shows how the campus would classify right now without
// writing anything. Admin only.
func (h *Commands) EngagementDryRun(ctx context.Context, senderID int64, args []string) string {
	log := h.logger.WithFields(logrus.Fields{"command": "/engagement", "sender_id": senderID})
	u, campusID, reply := h.sender(ctx, log, senderID, args)
	if reply != "" {
		return reply
	}
	if !h.staff.CanManage(u) {
		log.Warn("Unauthorized access attempt")
		return "Only campus administrators can use this command."
	}

	dist, err := h.engagement.DryRun(ctx, campusID)
	if err != nil {
		log.WithError(err).WithField("campus_id", campusID).Error("Engagement dry run failed")
		return "Could not calculate engagement right now. Please try again later."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Engagement for %d members (at risk after %d days, disconnected after %d days):\n",
		dist.Total, dist.Thresholds.AtRiskDays, dist.Thresholds.DisconnectedDays)
	for _, s := range member.AllStatuses {
		fmt.Fprintf(&b, "- %s: %d\n", s, dist.Counts[s])
	}
	return strings.TrimRight(b.String(), "\n")
}

// RefreshEngagement recalculates and stores engagement for the campus. Admin only.
func (h *Commands) RefreshEngagement(ctx context.Context, senderID int64, args []string) string {
	log := h.logger.WithFields(logrus.Fields{"command": "/refresh_engagement", "sender_id": senderID})
	u, campusID, reply := h.sender(ctx, log, senderID, args)
	if reply != "" {
		return reply
	}
	if !h.staff.CanManage(u) {
		log.Warn("Unauthorized access attempt")
		return "Only campus administrators can use this command."
	}

	n, err := h.engagement.RefreshCampus(ctx, campusID)
	if err != nil {
		log.WithError(err).WithField("campus_id", campusID).Error("Manual engagement refresh failed")
		return "Engagement refresh failed. Please try again later."
	}
	log.WithFields(logrus.Fields{"campus_id": campusID, "updated": n}).Info("Manual engagement refresh done")
	return fmt.Sprintf("Engagement recalculated for %d members.", n)
}

// DeleteEvent removes a care event: /delete_event <event_id> [campus_id].
// Admin only.
func (h *Commands) DeleteEvent(ctx context.Context, senderID int64, args []string) string {
	log := h.logger.WithFields(logrus.Fields{"command": "/delete_event", "sender_id": senderID})
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "Please add the care event id, for example: /delete_event <event_id>"
	}
	eventID := args[0]
	u, campusID, reply := h.sender(ctx, log, senderID, args[1:])
	if reply != "" {
		return reply
	}
	if !h.staff.CanManage(u) {
		log.Warn("Unauthorized access attempt")
		return "Only campus administrators can use this command."
	}

	log = log.WithFields(logrus.Fields{"campus_id": campusID, "event_id": eventID})
	err := h.events.Delete(ctx, campusID, eventID, activity.Actor{ID: u.ID, Name: u.Name})
	switch {
	case errors.Is(err, careevent.ErrNotFound):
		return "Care event not found."
	case err != nil:
		log.WithError(err).Error("Failed to delete care event")
		return "Something went wrong. Please try again."
	}
	return "Care event deleted."
}
