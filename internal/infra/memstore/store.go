// Package memstore keeps every repository in process memory. It backs the
// service tests and STORE_DRIVER=memory runs; a single process is the only
// writer, so the mutexes are the whole concurrency story.
package memstore

import (
	"time"

	"github.com/google/uuid"

	"pastoral_care_worker/internal/infra/clock"
)

// Store bundles one instance of every repository.
type Store struct {
	Locks         *LockRepository
	Campuses      *CampusRepository
	Members       *MemberRepository
	Users         *UserRepository
	CareEvents    *CareEventRepository
	Stages        *StageRepository
	Activity      *ActivityRepository
	Notifications *NotificationRepository
}

func New() *Store {
	members := NewMemberRepository()
	return &Store{
		Locks:         NewLockRepository(),
		Campuses:      NewCampusRepository(),
		Members:       members,
		Users:         NewUserRepository(),
		CareEvents:    NewCareEventRepository(members),
		Stages:        NewStageRepository(members),
		Activity:      NewActivityRepository(),
		Notifications: NewNotificationRepository(),
	}
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// sameOrBeforeDay compares calendar days, ignoring the instants' locations.
func sameOrBeforeDay(a, b time.Time) bool {
	return clock.DateKey(a) <= clock.DateKey(b)
}
