package memstore

import (
	"context"
	"sync"
	"time"

	"pastoral_care_worker/internal/domain/joblock"
)

type LockRepository struct {
	mu   sync.Mutex
	rows map[string]joblock.Lock
}

func NewLockRepository() *LockRepository {
	return &LockRepository{rows: make(map[string]joblock.Lock)}
}

// TryAcquire is a compare-and-set under the repository mutex.
func (r *LockRepository) TryAcquire(_ context.Context, lock joblock.Lock) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[lock.LockID]; ok && !existing.Expired(lock.AcquiredAt) {
		return false, nil
	}
	r.rows[lock.LockID] = lock
	return true, nil
}

func (r *LockRepository) Release(_ context.Context, lockID, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[lockID]; ok && existing.Owner == owner {
		delete(r.rows, lockID)
	}
	return nil
}

func (r *LockRepository) Get(_ context.Context, lockID string) (*joblock.Lock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[lockID]
	if !ok {
		return nil, joblock.ErrNotFound
	}
	return &l, nil
}

func (r *LockRepository) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, l := range r.rows {
		if l.Expired(before) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}
