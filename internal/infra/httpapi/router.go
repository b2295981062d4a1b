// Package httpapi exposes the worker's read-only operational endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"pastoral_care_worker/internal/app"
	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/campus"
	"pastoral_care_worker/internal/domain/member"
	"pastoral_care_worker/internal/domain/notification"
	"pastoral_care_worker/internal/domain/user"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// HealthFunc adapts a ping function to HealthChecker.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Healthy(ctx context.Context) bool { return f(ctx) == nil }

type Handler struct {
	Digest        app.DigestService
	Engagement    app.EngagementService
	Dashboard     app.DashboardService
	Notifications app.NotificationService
	CareEvents    app.CareEventService
	Timeline      app.TimelineService
	Members       member.Repository
	Staff         user.Repository
	Activity      activity.Repository
	Store         HealthChecker
	Cache         HealthChecker
	Logger        *logrus.Entry
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.Health)
	r.Get("/engagement/classify", h.Classify)

	r.Route("/campuses/{campusID}", func(r chi.Router) {
		r.Get("/digest", h.CampusDigest)
		r.Get("/engagement/dry-run", h.EngagementDryRun)
		r.Get("/dashboard", h.CampusDashboard)
		r.Get("/notifications", h.RecentNotifications)
		r.Get("/notifications/{notificationID}", h.NotificationLog)
		r.Get("/members", h.CampusMembers)
		r.Get("/members/{memberID}/care-events", h.MemberCareEvents)
		r.Get("/members/{memberID}/timeline", h.MemberTimeline)
		r.Get("/staff", h.CampusStaff)
		r.Get("/activity", h.CampusActivity)
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	store := h.Store == nil || h.Store.Healthy(r.Context())
	cacheOK := h.Cache == nil || h.Cache.Healthy(r.Context())
	status := http.StatusOK
	if !store {
		status = http.StatusServiceUnavailable
	}
	// A cache outage degrades to recomputation, so it is reported but not fatal.
	writeJSON(w, status, map[string]any{"store": store, "cache": cacheOK})
}

func (h *Handler) CampusDigest(w http.ResponseWriter, r *http.Request) {
	campusID := chi.URLParam(r, "campusID")
	d, err := h.Digest.Generate(r.Context(), campusID)
	if err != nil {
		h.fail(w, r, campusID, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) EngagementDryRun(w http.ResponseWriter, r *http.Request) {
	campusID := chi.URLParam(r, "campusID")
	d, err := h.Engagement.DryRun(r.Context(), campusID)
	if err != nil {
		h.fail(w, r, campusID, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) CampusDashboard(w http.ResponseWriter, r *http.Request) {
	campusID := chi.URLParam(r, "campusID")
	stats, err := h.Dashboard.Stats(r.Context(), campusID)
	if err != nil {
		h.fail(w, r, campusID, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RecentNotifications lists the campus's delivery log, newest first.
func (h *Handler) RecentNotifications(w http.ResponseWriter, r *http.Request) {
	campusID := chi.URLParam(r, "campusID")
	limit, ok := listLimit(w, r)
	if !ok {
		return
	}
	logs, err := h.Notifications.Recent(r.Context(), campusID, limit)
	if err != nil {
		h.fail(w, r, campusID, err)
		return
	}
	out := make([]notificationView, 0, len(logs))
	for _, l := range logs {
		out = append(out, newNotificationView(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) NotificationLog(w http.ResponseWriter, r *http.Request) {
	campusID := chi.URLParam(r, "campusID")
	l, err := h.Notifications.Get(r.Context(), campusID, chi.URLParam(r, "notificationID"))
	if err != nil {
		h.fail(w, r, campusID, err)
		return
	}
	writeJSON(w, http.StatusOK, newNotificationView(l))
}

func (h *Handler) MemberCareEvents(w http.ResponseWriter, r *http.Request) {
	campusID := chi.URLParam(r, "campusID")
	events, err := h.CareEvents.ListByMember(r.Context(), campusID, chi.URLParam(r, "memberID"))
	if err != nil {
		h.fail(w, r, campusID, err)
		return
	}
	out := make([]careEventView, 0, len(events))
	for _, e := range events {
		out = append(out, newCareEventView(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) MemberTimeline(w http.ResponseWriter, r *http.Request) {
	campusID := chi.URLParam(r, "campusID")
	stages, err := h.Timeline.ListMemberTimeline(r.Context(), campusID, chi.URLParam(r, "memberID"))
	if err != nil {
		h.fail(w, r, campusID, err)
		return
	}
	out := make([]stageView, 0, len(stages))
	for _, st := range stages {
		out = append(out, newStageView(st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CampusMembers(w http.ResponseWriter, r *http.Request) {
	campusID := chi.URLParam(r, "campusID")
	members, err := h.Members.ListByCampus(r.Context(), campusID)
	if err != nil {
		h.fail(w, r, campusID, err)
		return
	}
	out := make([]memberView, 0, len(members))
	for _, m := range members {
		out = append(out, newMemberView(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// CampusStaff lists staff accounts without their contact details.
func (h *Handler) CampusStaff(w http.ResponseWriter, r *http.Request) {
	campusID := chi.URLParam(r, "campusID")
	users, err := h.Staff.ListByCampus(r.Context(), campusID)
	if err != nil {
		h.fail(w, r, campusID, err)
		return
	}
	out := make([]staffView, 0, len(users))
	for _, u := range users {
		out = append(out, staffView{ID: u.ID, Name: u.Name, Role: u.Role, Active: u.IsActive, Telegram: u.TelegramID != 0})
	}
	writeJSON(w, http.StatusOK, out)
}

// CampusActivity is the audit feed, newest first.
func (h *Handler) CampusActivity(w http.ResponseWriter, r *http.Request) {
	campusID := chi.URLParam(r, "campusID")
	limit, ok := listLimit(w, r)
	if !ok {
		return
	}
	entries, err := h.Activity.ListByCampus(r.Context(), campusID, limit)
	if err != nil {
		h.fail(w, r, campusID, err)
		return
	}
	out := make([]activityView, 0, len(entries))
	for _, e := range entries {
		out = append(out, newActivityView(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// listLimit reads ?limit=, defaulting to 50 and capped at 200. It writes the
// 400 itself when the value is bad.
func listLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		return 0, false
	}
	return min(n, maxListLimit), true
}

// Classify evaluates a contact date against the campus thresholds. A missing
// or malformed date classifies as never contacted.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, days := h.Engagement.Classify(q.Get("campus_id"), q.Get("last_contact_date"))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                  status,
		"days_since_last_contact": days,
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, campusID string, err error) {
	switch {
	case errors.Is(err, campus.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "campus not found"})
		return
	case errors.Is(err, notification.ErrLogNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "notification not found"})
		return
	case errors.Is(err, member.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "member not found"})
		return
	}
	h.Logger.WithError(err).WithFields(logrus.Fields{
		"campus_id":  campusID,
		"path":       r.URL.Path,
		"request_id": chimw.GetReqID(r.Context()),
	}).Error("Request failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
