package database

import (
	"database/sql"
	"time"
)

// Store groups the PostgreSQL repositories behind one connection pool.
type Store struct {
	Locks         *PostgresJobLockRepository
	Campuses      *PostgresCampusRepository
	Members       *PostgresMemberRepository
	Users         *PostgresUserRepository
	CareEvents    *PostgresCareEventRepository
	Stages        *PostgresFollowupRepository
	Activity      *PostgresActivityRepository
	Notifications *PostgresNotificationRepository
}

// NewStore builds every repository; loc is the timezone DATE columns are read in.
func NewStore(db *sql.DB, loc *time.Location) *Store {
	return &Store{
		Locks:         NewPostgresJobLockRepository(db),
		Campuses:      NewPostgresCampusRepository(db),
		Members:       NewPostgresMemberRepository(db),
		Users:         NewPostgresUserRepository(db),
		CareEvents:    NewPostgresCareEventRepository(db, loc),
		Stages:        NewPostgresFollowupRepository(db, loc),
		Activity:      NewPostgresActivityRepository(db),
		Notifications: NewPostgresNotificationRepository(db),
	}
}
