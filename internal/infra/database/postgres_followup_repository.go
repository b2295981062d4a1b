package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/followup"
	"pastoral_care_worker/internal/infra/clock"
)

type PostgresFollowupRepository struct {
	db  *sql.DB
	loc *time.Location
}

func NewPostgresFollowupRepository(db *sql.DB, loc *time.Location) *PostgresFollowupRepository {
	return &PostgresFollowupRepository{db: db, loc: loc}
}

const stageColumns = `s.id, s.campus_id, s.member_id, s.trigger_event_id, s.kind, s.stage, s.scheduled_date,
               s.completed, s.completed_at, COALESCE(s.completed_by, ''), COALESCE(s.notes, ''),
               s.ignored, s.ignored_at, COALESCE(s.ignored_by, ''), s.reminder_sent, s.created_at`

func (r *PostgresFollowupRepository) scan(sc rowScanner, extra ...any) (*followup.Stage, error) {
	st := &followup.Stage{}
	var completedAt, ignoredAt sql.NullTime
	dest := []any{&st.ID, &st.CampusID, &st.MemberID, &st.TriggerEventID, &st.Kind, &st.Key, &st.ScheduledDate,
		&st.Completed, &completedAt, &st.CompletedBy, &st.Notes,
		&st.Ignored, &ignoredAt, &st.IgnoredBy, &st.ReminderSent, &st.CreatedAt}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	st.ScheduledDate = dayIn(st.ScheduledDate, r.loc)
	st.CompletedAt = timePtr(completedAt)
	st.IgnoredAt = timePtr(ignoredAt)
	return st, nil
}

func (r *PostgresFollowupRepository) Create(ctx context.Context, st *followup.Stage) error {
	newID(&st.ID)
	query := `INSERT INTO followup_stages (id, campus_id, member_id, trigger_event_id, kind, stage, scheduled_date, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8)`
	_, err := r.db.ExecContext(ctx, query, st.ID, st.CampusID, st.MemberID, st.TriggerEventID, st.Kind, st.Key,
		clock.DateKey(st.ScheduledDate), st.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return followup.ErrDuplicateStage
		}
		return fmt.Errorf("error creating follow-up stage: %w", err)
	}
	return nil
}

func (r *PostgresFollowupRepository) GetByID(ctx context.Context, campusID, stageID string) (*followup.Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM followup_stages s WHERE s.campus_id = $1 AND s.id = $2`
	st, err := r.scan(r.db.QueryRowContext(ctx, query, campusID, stageID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, followup.ErrNotFound
		}
		return nil, fmt.Errorf("error getting follow-up stage by ID: %w", err)
	}
	return st, nil
}

func (r *PostgresFollowupRepository) ListByMember(ctx context.Context, campusID, memberID string) ([]*followup.Stage, error) {
	query := `SELECT ` + stageColumns + ` FROM followup_stages s
               WHERE s.campus_id = $1 AND s.member_id = $2 ORDER BY s.scheduled_date, s.id`
	rows, err := r.db.QueryContext(ctx, query, campusID, memberID)
	if err != nil {
		return nil, fmt.Errorf("error listing member follow-up stages: %w", err)
	}
	defer rows.Close()

	stages := make([]*followup.Stage, 0)
	for rows.Next() {
		st, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning follow-up stage: %w", err)
		}
		stages = append(stages, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating follow-up stages: %w", err)
	}
	return stages, nil
}

func (r *PostgresFollowupRepository) ListDue(ctx context.Context, campusID string, kind followup.Kind, day time.Time) ([]*followup.Stage, error) {
	query := `SELECT ` + stageColumns + `, COALESCE(m.name, '')
               FROM followup_stages s
               LEFT JOIN members m ON m.id = s.member_id AND m.campus_id = s.campus_id
               WHERE s.campus_id = $1 AND s.kind = $2 AND s.completed = FALSE AND s.ignored = FALSE
                 AND s.scheduled_date <= $3::date
               ORDER BY s.scheduled_date, s.id`
	rows, err := r.db.QueryContext(ctx, query, campusID, kind, clock.DateKey(day))
	if err != nil {
		return nil, fmt.Errorf("error listing due follow-up stages: %w", err)
	}
	defer rows.Close()

	stages := make([]*followup.Stage, 0)
	for rows.Next() {
		var name string
		st, err := r.scan(rows, &name)
		if err != nil {
			return nil, fmt.Errorf("error scanning due follow-up stage: %w", err)
		}
		st.MemberName = name
		stages = append(stages, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due follow-up stages: %w", err)
	}
	return stages, nil
}

func (r *PostgresFollowupRepository) MarkCompleted(ctx context.Context, campusID, stageID string, by activity.Actor, at time.Time, notes string) error {
	query := `UPDATE followup_stages SET completed = TRUE, completed_at = $3, completed_by = $4, notes = $5
               WHERE campus_id = $1 AND id = $2`
	return r.execOne(ctx, "completing follow-up stage", query, campusID, stageID, at, by.Name, notes)
}

func (r *PostgresFollowupRepository) MarkIgnored(ctx context.Context, campusID, stageID string, by activity.Actor, at time.Time) error {
	query := `UPDATE followup_stages SET ignored = TRUE, ignored_at = $3, ignored_by = $4
               WHERE campus_id = $1 AND id = $2`
	return r.execOne(ctx, "ignoring follow-up stage", query, campusID, stageID, at, by.Name)
}

func (r *PostgresFollowupRepository) Reset(ctx context.Context, campusID, stageID string) error {
	query := `UPDATE followup_stages
               SET completed = FALSE, completed_at = NULL, completed_by = NULL, notes = NULL,
                   ignored = FALSE, ignored_at = NULL, ignored_by = NULL
               WHERE campus_id = $1 AND id = $2`
	return r.execOne(ctx, "resetting follow-up stage", query, campusID, stageID)
}

func (r *PostgresFollowupRepository) MarkReminderSent(ctx context.Context, campusID, stageID string) error {
	query := `UPDATE followup_stages SET reminder_sent = TRUE WHERE campus_id = $1 AND id = $2`
	return r.execOne(ctx, "marking reminder sent", query, campusID, stageID)
}

func (r *PostgresFollowupRepository) execOne(ctx context.Context, what, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error %s: %w", what, err)
	}
	if n == 0 {
		return followup.ErrNotFound
	}
	return nil
}
