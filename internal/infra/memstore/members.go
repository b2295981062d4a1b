package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"pastoral_care_worker/internal/domain/member"
)

type MemberRepository struct {
	mu   sync.RWMutex
	rows map[string]*member.Member
}

func NewMemberRepository() *MemberRepository {
	return &MemberRepository{rows: make(map[string]*member.Member)}
}

func cloneMember(m *member.Member) *member.Member {
	c := *m
	c.BirthDate = copyTime(m.BirthDate)
	c.LastContactDate = copyTime(m.LastContactDate)
	return &c
}

func (r *MemberRepository) Create(_ context.Context, m *member.Member) error {
	ensureID(&m.ID)
	if m.EngagementStatus == "" {
		m.EngagementStatus = member.StatusActive
	}
	r.mu.Lock()
	r.rows[m.ID] = cloneMember(m)
	r.mu.Unlock()
	return nil
}

// lookup must be called with the lock held.
func (r *MemberRepository) lookup(campusID, memberID string) (*member.Member, bool) {
	m, ok := r.rows[memberID]
	if !ok || m.CampusID != campusID {
		return nil, false
	}
	return m, true
}

func (r *MemberRepository) GetByID(_ context.Context, campusID, memberID string) (*member.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.lookup(campusID, memberID)
	if !ok {
		return nil, member.ErrNotFound
	}
	return cloneMember(m), nil
}

// name returns the member's name, or "" when it is not in the campus.
func (r *MemberRepository) name(campusID, memberID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.lookup(campusID, memberID); ok {
		return m.Name
	}
	return ""
}

func (r *MemberRepository) ListByCampus(_ context.Context, campusID string) ([]*member.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*member.Member
	for _, m := range r.rows {
		if m.CampusID == campusID && !m.IsArchived {
			out = append(out, cloneMember(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemberRepository) ListByEngagement(_ context.Context, campusID string, statuses []member.EngagementStatus, limit int) ([]*member.Member, error) {
	want := make(map[member.EngagementStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*member.Member
	for _, m := range r.rows {
		if m.CampusID == campusID && !m.IsArchived && want[m.EngagementStatus] {
			out = append(out, cloneMember(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DaysSinceLastContact != out[j].DaysSinceLastContact {
			return out[i].DaysSinceLastContact > out[j].DaysSinceLastContact
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemberRepository) CountByEngagement(_ context.Context, campusID string) (map[member.EngagementStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := zeroCounts()
	for _, m := range r.rows {
		if m.CampusID == campusID && !m.IsArchived {
			counts[m.EngagementStatus]++
		}
	}
	return counts, nil
}

func (r *MemberRepository) UpdateLastContact(_ context.Context, campusID, memberID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.lookup(campusID, memberID)
	if !ok {
		return member.ErrNotFound
	}
	m.LastContactDate = &at
	m.UpdatedAt = at
	return nil
}

func (r *MemberRepository) UpdateEngagement(_ context.Context, campusID, memberID string, status member.EngagementStatus, days int, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.lookup(campusID, memberID)
	if !ok {
		return member.ErrNotFound
	}
	m.EngagementStatus = status
	m.DaysSinceLastContact = days
	m.UpdatedAt = updatedAt
	return nil
}

func (r *MemberRepository) BulkClassify(_ context.Context, campusID string, th member.Thresholds, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.rows {
		if m.CampusID != campusID || m.IsArchived {
			continue
		}
		m.EngagementStatus, m.DaysSinceLastContact = th.Evaluate(m.LastContactDate, now)
		m.UpdatedAt = now
		n++
	}
	return n, nil
}

func (r *MemberRepository) ClassifyDistribution(_ context.Context, campusID string, th member.Thresholds, now time.Time) (map[member.EngagementStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := zeroCounts()
	for _, m := range r.rows {
		if m.CampusID != campusID || m.IsArchived {
			continue
		}
		status, _ := th.Evaluate(m.LastContactDate, now)
		counts[status]++
	}
	return counts, nil
}

func zeroCounts() map[member.EngagementStatus]int {
	counts := make(map[member.EngagementStatus]int, len(member.AllStatuses))
	for _, s := range member.AllStatuses {
		counts[s] = 0
	}
	return counts
}
