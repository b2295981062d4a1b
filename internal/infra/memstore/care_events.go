package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/careevent"
)

type CareEventRepository struct {
	mu      sync.RWMutex
	rows    map[string]*careevent.CareEvent
	members *MemberRepository
}

func NewCareEventRepository(members *MemberRepository) *CareEventRepository {
	return &CareEventRepository{rows: make(map[string]*careevent.CareEvent), members: members}
}

func cloneEvent(e *careevent.CareEvent) *careevent.CareEvent {
	c := *e
	c.CompletedAt = copyTime(e.CompletedAt)
	c.IgnoredAt = copyTime(e.IgnoredAt)
	return &c
}

func (r *CareEventRepository) Create(_ context.Context, e *careevent.CareEvent) error {
	ensureID(&e.ID)
	r.mu.Lock()
	r.rows[e.ID] = cloneEvent(e)
	r.mu.Unlock()
	return nil
}

func (r *CareEventRepository) lookup(campusID, eventID string) (*careevent.CareEvent, bool) {
	e, ok := r.rows[eventID]
	if !ok || e.CampusID != campusID {
		return nil, false
	}
	return e, true
}

func (r *CareEventRepository) GetByID(_ context.Context, campusID, eventID string) (*careevent.CareEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.lookup(campusID, eventID)
	if !ok {
		return nil, careevent.ErrNotFound
	}
	return cloneEvent(e), nil
}

func (r *CareEventRepository) ListByMember(_ context.Context, campusID, memberID string) ([]*careevent.CareEvent, error) {
	r.mu.RLock()
	var out []*careevent.CareEvent
	for _, e := range r.rows {
		if e.CampusID == campusID && e.MemberID == memberID {
			out = append(out, cloneEvent(e))
		}
	}
	r.mu.RUnlock()
	sortEvents(out)
	return out, nil
}

func (r *CareEventRepository) ListPending(_ context.Context, campusID string, f careevent.PendingFilter) ([]*careevent.CareEvent, error) {
	types := make(map[careevent.EventType]bool, len(f.Types))
	for _, t := range f.Types {
		types[t] = true
	}
	r.mu.RLock()
	var out []*careevent.CareEvent
	for _, e := range r.rows {
		if e.CampusID != campusID || !e.Pending() {
			continue
		}
		if len(types) > 0 && !types[e.EventType] {
			continue
		}
		if !f.From.IsZero() && !sameOrBeforeDay(f.From, e.EventDate) {
			continue
		}
		if !f.To.IsZero() && !sameOrBeforeDay(e.EventDate, f.To) {
			continue
		}
		out = append(out, cloneEvent(e))
	}
	r.mu.RUnlock()
	sortEvents(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	for _, e := range out {
		e.MemberName = r.members.name(campusID, e.MemberID)
	}
	return out, nil
}

func (r *CareEventRepository) CountPending(_ context.Context, campusID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.rows {
		if e.CampusID == campusID && e.Pending() {
			n++
		}
	}
	return n, nil
}

func (r *CareEventRepository) MarkCompleted(_ context.Context, campusID, eventID string, by activity.Actor, at time.Time, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(campusID, eventID)
	if !ok {
		return careevent.ErrNotFound
	}
	e.Completed = true
	e.CompletedAt = &at
	e.CompletedBy = by.Name
	e.Notes = notes
	return nil
}

func (r *CareEventRepository) MarkIgnored(_ context.Context, campusID, eventID string, by activity.Actor, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(campusID, eventID)
	if !ok {
		return careevent.ErrNotFound
	}
	e.Ignored = true
	e.IgnoredAt = &at
	e.IgnoredBy = by.Name
	return nil
}

func (r *CareEventRepository) Reset(_ context.Context, campusID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.lookup(campusID, eventID)
	if !ok {
		return careevent.ErrNotFound
	}
	e.Completed, e.CompletedAt, e.CompletedBy = false, nil, ""
	e.Ignored, e.IgnoredAt, e.IgnoredBy = false, nil, ""
	e.Notes = ""
	return nil
}

func (r *CareEventRepository) Delete(_ context.Context, campusID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lookup(campusID, eventID); !ok {
		return careevent.ErrNotFound
	}
	delete(r.rows, eventID)
	return nil
}

func (r *CareEventRepository) DeleteByStage(_ context.Context, campusID, stageID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, e := range r.rows {
		if e.CampusID == campusID && e.FollowupStageID == stageID {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func sortEvents(events []*careevent.CareEvent) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].EventDate.Equal(events[j].EventDate) {
			return events[i].EventDate.Before(events[j].EventDate)
		}
		return events[i].ID < events[j].ID
	})
}
