package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/campus"
	"pastoral_care_worker/internal/domain/notification"
	"pastoral_care_worker/internal/domain/user"
)

type CampusRepository struct {
	mu   sync.RWMutex
	rows map[string]campus.Campus
}

func NewCampusRepository() *CampusRepository {
	return &CampusRepository{rows: make(map[string]campus.Campus)}
}

func (r *CampusRepository) Create(_ context.Context, c *campus.Campus) error {
	ensureID(&c.ID)
	r.mu.Lock()
	r.rows[c.ID] = *c
	r.mu.Unlock()
	return nil
}

func (r *CampusRepository) GetByID(_ context.Context, id string) (*campus.Campus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, campus.ErrNotFound
	}
	return &c, nil
}

func (r *CampusRepository) ListActive(_ context.Context) ([]*campus.Campus, error) {
	r.mu.RLock()
	var out []*campus.Campus
	for _, c := range r.rows {
		if c.IsActive {
			c := c
			out = append(out, &c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type UserRepository struct {
	mu   sync.RWMutex
	rows map[string]user.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{rows: make(map[string]user.User)}
}

func (r *UserRepository) Create(_ context.Context, u *user.User) error {
	ensureID(&u.ID)
	r.mu.Lock()
	r.rows[u.ID] = *u
	r.mu.Unlock()
	return nil
}

func (r *UserRepository) list(keep func(user.User) bool) []*user.User {
	r.mu.RLock()
	var out []*user.User
	for _, u := range r.rows {
		if keep(u) {
			u := u
			out = append(out, &u)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *UserRepository) ListByCampus(_ context.Context, campusID string) ([]*user.User, error) {
	return r.list(func(u user.User) bool { return u.CampusID == campusID }), nil
}

func (r *UserRepository) ListDigestRecipients(_ context.Context, campusID string) ([]*user.User, error) {
	return r.list(func(u user.User) bool {
		return u.CampusID == campusID && u.IsActive && u.Role != user.RoleFullAdmin
	}), nil
}

func (r *UserRepository) GetByTelegramID(_ context.Context, telegramID int64) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.rows {
		if telegramID != 0 && u.TelegramID == telegramID && u.IsActive {
			return &u, nil
		}
	}
	return nil, user.ErrNotFound
}

type ActivityRepository struct {
	mu   sync.RWMutex
	rows []activity.Entry
}

func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{}
}

func (r *ActivityRepository) Append(_ context.Context, e *activity.Entry) error {
	ensureID(&e.ID)
	r.mu.Lock()
	r.rows = append(r.rows, *e)
	r.mu.Unlock()
	return nil
}

func (r *ActivityRepository) deleteWhere(match func(activity.Entry) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	var n int64
	for _, e := range r.rows {
		if match(e) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.rows = kept
	return n
}

func (r *ActivityRepository) DeleteByStage(_ context.Context, campusID, stageID string) (int64, error) {
	return r.deleteWhere(func(e activity.Entry) bool {
		return e.CampusID == campusID && e.StageID == stageID
	}), nil
}

func (r *ActivityRepository) DeleteByCareEvent(_ context.Context, campusID, careEventID string, actions []activity.Action) (int64, error) {
	want := make(map[activity.Action]bool, len(actions))
	for _, a := range actions {
		want[a] = true
	}
	return r.deleteWhere(func(e activity.Entry) bool {
		return e.CampusID == campusID && e.CareEventID == careEventID && want[e.Action]
	}), nil
}

// ListByCampus returns the newest entries first.
func (r *ActivityRepository) ListByCampus(_ context.Context, campusID string, limit int) ([]*activity.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*activity.Entry
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].CampusID != campusID {
			continue
		}
		e := r.rows[i]
		out = append(out, &e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type NotificationRepository struct {
	mu    sync.RWMutex
	rows  map[string]*notification.Log
	order []string
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{rows: make(map[string]*notification.Log)}
}

func cloneLog(l *notification.Log) *notification.Log {
	c := *l
	c.SentAt = copyTime(l.SentAt)
	c.FailedAt = copyTime(l.FailedAt)
	return &c
}

func (r *NotificationRepository) Create(_ context.Context, l *notification.Log) error {
	ensureID(&l.ID)
	r.mu.Lock()
	r.rows[l.ID] = cloneLog(l)
	r.order = append(r.order, l.ID)
	r.mu.Unlock()
	return nil
}

func (r *NotificationRepository) IncrementAttempts(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok {
		return 0, notification.ErrLogNotFound
	}
	l.Attempts++
	return l.Attempts, nil
}

func (r *NotificationRepository) MarkSent(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok {
		return notification.ErrLogNotFound
	}
	l.Status = notification.StatusSent
	l.SentAt = &at
	l.LastError = ""
	return nil
}

func (r *NotificationRepository) MarkFailed(_ context.Context, id string, lastError string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok {
		return notification.ErrLogNotFound
	}
	l.Status = notification.StatusFailed
	l.LastError = lastError
	l.FailedAt = &at
	return nil
}

func (r *NotificationRepository) GetByID(_ context.Context, campusID, id string) (*notification.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.rows[id]
	if !ok || l.CampusID != campusID {
		return nil, notification.ErrLogNotFound
	}
	return cloneLog(l), nil
}

func (r *NotificationRepository) ListRecent(_ context.Context, campusID string, limit int) ([]*notification.Log, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*notification.Log
	for i := len(r.order) - 1; i >= 0; i-- {
		l := r.rows[r.order[i]]
		if l.CampusID != campusID {
			continue
		}
		out = append(out, cloneLog(l))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
