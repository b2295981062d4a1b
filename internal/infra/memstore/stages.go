package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/followup"
)

type stageKey struct {
	memberID       string
	triggerEventID string
	stage          followup.StageKey
}

type StageRepository struct {
	mu      sync.RWMutex
	rows    map[string]*followup.Stage
	natural map[stageKey]string
	members *MemberRepository
}

func NewStageRepository(members *MemberRepository) *StageRepository {
	return &StageRepository{
		rows:    make(map[string]*followup.Stage),
		natural: make(map[stageKey]string),
		members: members,
	}
}

func cloneStage(s *followup.Stage) *followup.Stage {
	c := *s
	c.CompletedAt = copyTime(s.CompletedAt)
	c.IgnoredAt = copyTime(s.IgnoredAt)
	return &c
}

func (r *StageRepository) Create(_ context.Context, s *followup.Stage) error {
	key := stageKey{memberID: s.MemberID, triggerEventID: s.TriggerEventID, stage: s.Key}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.natural[key]; exists {
		return followup.ErrDuplicateStage
	}
	ensureID(&s.ID)
	r.rows[s.ID] = cloneStage(s)
	r.natural[key] = s.ID
	return nil
}

func (r *StageRepository) lookup(campusID, stageID string) (*followup.Stage, bool) {
	s, ok := r.rows[stageID]
	if !ok || s.CampusID != campusID {
		return nil, false
	}
	return s, true
}

func (r *StageRepository) GetByID(_ context.Context, campusID, stageID string) (*followup.Stage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.lookup(campusID, stageID)
	if !ok {
		return nil, followup.ErrNotFound
	}
	return cloneStage(s), nil
}

func (r *StageRepository) ListByMember(_ context.Context, campusID, memberID string) ([]*followup.Stage, error) {
	r.mu.RLock()
	var out []*followup.Stage
	for _, s := range r.rows {
		if s.CampusID == campusID && s.MemberID == memberID {
			out = append(out, cloneStage(s))
		}
	}
	r.mu.RUnlock()
	sortStages(out)
	return out, nil
}

func (r *StageRepository) ListDue(_ context.Context, campusID string, kind followup.Kind, day time.Time) ([]*followup.Stage, error) {
	r.mu.RLock()
	var out []*followup.Stage
	for _, s := range r.rows {
		if s.CampusID == campusID && s.Kind == kind && s.Pending() && sameOrBeforeDay(s.ScheduledDate, day) {
			out = append(out, cloneStage(s))
		}
	}
	r.mu.RUnlock()
	sortStages(out)
	for _, s := range out {
		s.MemberName = r.members.name(campusID, s.MemberID)
	}
	return out, nil
}

func (r *StageRepository) MarkCompleted(_ context.Context, campusID, stageID string, by activity.Actor, at time.Time, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.lookup(campusID, stageID)
	if !ok {
		return followup.ErrNotFound
	}
	s.Completed = true
	s.CompletedAt = &at
	s.CompletedBy = by.Name
	s.Notes = notes
	return nil
}

func (r *StageRepository) MarkIgnored(_ context.Context, campusID, stageID string, by activity.Actor, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.lookup(campusID, stageID)
	if !ok {
		return followup.ErrNotFound
	}
	s.Ignored = true
	s.IgnoredAt = &at
	s.IgnoredBy = by.Name
	return nil
}

func (r *StageRepository) Reset(_ context.Context, campusID, stageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.lookup(campusID, stageID)
	if !ok {
		return followup.ErrNotFound
	}
	s.Completed, s.CompletedAt, s.CompletedBy, s.Notes = false, nil, "", ""
	s.Ignored, s.IgnoredAt, s.IgnoredBy = false, nil, ""
	return nil
}

func (r *StageRepository) MarkReminderSent(_ context.Context, campusID, stageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.lookup(campusID, stageID)
	if !ok {
		return followup.ErrNotFound
	}
	s.ReminderSent = true
	return nil
}

func sortStages(stages []*followup.Stage) {
	sort.Slice(stages, func(i, j int) bool {
		if !stages[i].ScheduledDate.Equal(stages[j].ScheduledDate) {
			return stages[i].ScheduledDate.Before(stages[j].ScheduledDate)
		}
		return stages[i].ID < stages[j].ID
	})
}
