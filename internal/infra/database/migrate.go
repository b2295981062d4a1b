package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Table models used only to create the schema. Runtime queries go through
// database/sql in the repositories.

type campusRow struct {
	ID        string `gorm:"type:text;primaryKey"`
	Name      string `gorm:"type:text;not null"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
}

func (campusRow) TableName() string { return "campuses" }

type memberRow struct {
	ID                   string     `gorm:"type:text;primaryKey"`
	CampusID             string     `gorm:"type:text;not null;index"`
	Name                 string     `gorm:"type:text;not null"`
	Phone                string     `gorm:"type:text"`
	BirthDate            *time.Time `gorm:"type:date"`
	LastContactDate      *time.Time
	EngagementStatus     string `gorm:"type:text;not null;default:active"`
	DaysSinceLastContact int    `gorm:"not null;default:0"`
	IsArchived           bool   `gorm:"not null;default:false"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (memberRow) TableName() string { return "members" }

type userRow struct {
	ID         string `gorm:"type:text;primaryKey"`
	CampusID   string `gorm:"type:text;index"`
	Name       string `gorm:"type:text;not null"`
	Phone      string `gorm:"type:text"`
	TelegramID *int64
	Role       string `gorm:"type:text;not null"`
	IsActive   bool   `gorm:"not null;default:true"`
}

func (userRow) TableName() string { return "users" }

type careEventRow struct {
	ID              string    `gorm:"type:text;primaryKey"`
	CampusID        string    `gorm:"type:text;not null"`
	MemberID        string    `gorm:"type:text;not null"`
	EventType       string    `gorm:"type:text;not null"`
	EventDate       time.Time `gorm:"type:date;not null"`
	Title           string    `gorm:"type:text"`
	Description     string    `gorm:"type:text"`
	Completed       bool      `gorm:"not null;default:false"`
	CompletedAt     *time.Time
	CompletedBy     *string `gorm:"type:text"`
	Notes           *string `gorm:"type:text"`
	Ignored         bool    `gorm:"not null;default:false"`
	IgnoredAt       *time.Time
	IgnoredBy       *string `gorm:"type:text"`
	FollowupStageID *string `gorm:"type:text"`
	CreatedBy       *string `gorm:"type:text"`
	CreatedAt       time.Time
}

func (careEventRow) TableName() string { return "care_events" }

type followupStageRow struct {
	ID             string    `gorm:"type:text;primaryKey"`
	CampusID       string    `gorm:"type:text;not null"`
	MemberID       string    `gorm:"type:text;not null"`
	TriggerEventID string    `gorm:"type:text;not null"`
	Kind           string    `gorm:"type:text;not null"`
	Stage          string    `gorm:"type:text;not null"`
	ScheduledDate  time.Time `gorm:"type:date;not null"`
	Completed      bool      `gorm:"not null;default:false"`
	CompletedAt    *time.Time
	CompletedBy    *string `gorm:"type:text"`
	Notes          *string `gorm:"type:text"`
	Ignored        bool    `gorm:"not null;default:false"`
	IgnoredAt      *time.Time
	IgnoredBy      *string `gorm:"type:text"`
	ReminderSent   bool    `gorm:"not null;default:false"`
	CreatedAt      time.Time
}

func (followupStageRow) TableName() string { return "followup_stages" }

type activityLogRow struct {
	ID          string  `gorm:"type:text;primaryKey"`
	CampusID    string  `gorm:"type:text;not null"`
	ActorID     string  `gorm:"type:text"`
	ActorName   string  `gorm:"type:text"`
	Action      string  `gorm:"type:text;not null"`
	MemberID    *string `gorm:"type:text"`
	MemberName  *string `gorm:"type:text"`
	CareEventID *string `gorm:"type:text"`
	StageID     *string `gorm:"type:text"`
	Notes       string  `gorm:"type:text"`
	CreatedAt   time.Time
}

func (activityLogRow) TableName() string { return "activity_logs" }

type notificationLogRow struct {
	ID          string  `gorm:"type:text;primaryKey"`
	CampusID    string  `gorm:"type:text;not null"`
	MemberID    *string `gorm:"type:text"`
	RecipientID *string `gorm:"type:text"`
	Channel     string  `gorm:"type:text;not null"`
	MessageType string  `gorm:"type:text;not null"`
	Recipient   string  `gorm:"type:text;not null"`
	Message     string  `gorm:"type:text;not null"`
	Status      string  `gorm:"type:text;not null;default:pending"`
	Attempts    int     `gorm:"not null;default:0"`
	LastError   *string `gorm:"type:text"`
	CreatedAt   time.Time
	SentAt      *time.Time
	FailedAt    *time.Time
}

func (notificationLogRow) TableName() string { return "notification_logs" }

type jobLockRow struct {
	LockID     string    `gorm:"type:text;primaryKey"`
	JobName    string    `gorm:"type:text;not null"`
	LockDate   time.Time `gorm:"type:date;not null"`
	Owner      string    `gorm:"type:text;not null"`
	AcquiredAt time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

func (jobLockRow) TableName() string { return "job_locks" }

type cacheEntryRow struct {
	Key          string    `gorm:"type:text;primaryKey"`
	CampusID     *string   `gorm:"type:text;index"`
	Value        []byte    `gorm:"type:bytea;not null"`
	CalculatedAt time.Time `gorm:"not null"`
	ExpiresAt    time.Time `gorm:"not null;index"`
}

func (cacheEntryRow) TableName() string { return "cache_entries" }

var schemaIndexes = []string{
	`create unique index if not exists uq_followup_stage_natural on followup_stages(member_id, trigger_event_id, stage);`,
	`create index if not exists idx_followup_due on followup_stages(campus_id, kind, scheduled_date) where not completed and not ignored;`,
	`create index if not exists idx_care_events_pending on care_events(campus_id, event_type, event_date) where not completed and not ignored;`,
	`create index if not exists idx_care_events_member on care_events(campus_id, member_id);`,
	`create index if not exists idx_care_events_stage on care_events(followup_stage_id) where followup_stage_id is not null;`,
	`create index if not exists idx_members_engagement on members(campus_id, engagement_status, days_since_last_contact desc);`,
	`create unique index if not exists uq_users_telegram on users(telegram_id) where telegram_id is not null;`,
	`create index if not exists idx_activity_campus_created on activity_logs(campus_id, created_at desc);`,
	`create index if not exists idx_activity_stage on activity_logs(stage_id) where stage_id is not null;`,
	`create index if not exists idx_notification_campus_created on notification_logs(campus_id, created_at desc);`,
}

// Migrate creates or updates the schema on the given connection.
func Migrate(ctx context.Context, db *sql.DB) error {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open gorm session: %w", err)
	}
	gdb = gdb.WithContext(ctx)

	if err := gdb.AutoMigrate(
		&campusRow{},
		&memberRow{},
		&userRow{},
		&careEventRow{},
		&followupStageRow{},
		&activityLogRow{},
		&notificationLogRow{},
		&jobLockRow{},
		&cacheEntryRow{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate schema: %w", err)
	}

	for _, s := range schemaIndexes {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}
