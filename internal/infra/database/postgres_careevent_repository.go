package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"pastoral_care_worker/internal/domain/activity"
	"pastoral_care_worker/internal/domain/careevent"
	"pastoral_care_worker/internal/infra/clock"
)

// PostgresCareEventRepository stores events with event_date as a DATE; loc is
// the organisational timezone dates are read back in.
type PostgresCareEventRepository struct {
	db  *sql.DB
	loc *time.Location
}

func NewPostgresCareEventRepository(db *sql.DB, loc *time.Location) *PostgresCareEventRepository {
	return &PostgresCareEventRepository{db: db, loc: loc}
}

const careEventColumns = `e.id, e.campus_id, e.member_id, e.event_type, e.event_date, COALESCE(e.title, ''),
               COALESCE(e.description, ''), e.completed, e.completed_at, COALESCE(e.completed_by, ''),
               COALESCE(e.notes, ''), e.ignored, e.ignored_at, COALESCE(e.ignored_by, ''),
               COALESCE(e.followup_stage_id, ''), COALESCE(e.created_by, ''), e.created_at`

func (r *PostgresCareEventRepository) scan(s rowScanner, extra ...any) (*careevent.CareEvent, error) {
	e := &careevent.CareEvent{}
	var completedAt, ignoredAt sql.NullTime
	dest := []any{&e.ID, &e.CampusID, &e.MemberID, &e.EventType, &e.EventDate, &e.Title,
		&e.Description, &e.Completed, &completedAt, &e.CompletedBy,
		&e.Notes, &e.Ignored, &ignoredAt, &e.IgnoredBy,
		&e.FollowupStageID, &e.CreatedBy, &e.CreatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	e.EventDate = dayIn(e.EventDate, r.loc)
	e.CompletedAt = timePtr(completedAt)
	e.IgnoredAt = timePtr(ignoredAt)
	return e, nil
}

// Create writes the full row, so stage audit entries land already closed.
func (r *PostgresCareEventRepository) Create(ctx context.Context, e *careevent.CareEvent) error {
	newID(&e.ID)
	query := `INSERT INTO care_events (id, campus_id, member_id, event_type, event_date, title, description,
               completed, completed_at, completed_by, notes, ignored, ignored_at, ignored_by,
               followup_stage_id, created_by, created_at)
               VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.CampusID, e.MemberID, e.EventType, clock.DateKey(e.EventDate),
		e.Title, e.Description,
		e.Completed, e.CompletedAt, nullString(e.CompletedBy), nullString(e.Notes),
		e.Ignored, e.IgnoredAt, nullString(e.IgnoredBy),
		nullString(e.FollowupStageID), nullString(e.CreatedBy), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating care event: %w", err)
	}
	return nil
}

func (r *PostgresCareEventRepository) GetByID(ctx context.Context, campusID, eventID string) (*careevent.CareEvent, error) {
	query := `SELECT ` + careEventColumns + ` FROM care_events e WHERE e.campus_id = $1 AND e.id = $2`
	e, err := r.scan(r.db.QueryRowContext(ctx, query, campusID, eventID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, careevent.ErrNotFound
		}
		return nil, fmt.Errorf("error getting care event by ID: %w", err)
	}
	return e, nil
}

func (r *PostgresCareEventRepository) ListByMember(ctx context.Context, campusID, memberID string) ([]*careevent.CareEvent, error) {
	query := `SELECT ` + careEventColumns + ` FROM care_events e
               WHERE e.campus_id = $1 AND e.member_id = $2 ORDER BY e.event_date, e.id`
	rows, err := r.db.QueryContext(ctx, query, campusID, memberID)
	if err != nil {
		return nil, fmt.Errorf("error listing member care events: %w", err)
	}
	defer rows.Close()

	events := make([]*careevent.CareEvent, 0)
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning care event: %w", err)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating care events: %w", err)
	}
	return events, nil
}

func (r *PostgresCareEventRepository) ListPending(ctx context.Context, campusID string, f careevent.PendingFilter) ([]*careevent.CareEvent, error) {
	query := `SELECT ` + careEventColumns + `, COALESCE(m.name, '')
               FROM care_events e
               LEFT JOIN members m ON m.id = e.member_id AND m.campus_id = e.campus_id
               WHERE e.campus_id = $1 AND e.completed = FALSE AND e.ignored = FALSE`
	args := []any{campusID}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		query += fmt.Sprintf(` AND e.event_type = ANY($%d)`, len(args))
	}
	if !f.From.IsZero() {
		args = append(args, clock.DateKey(f.From))
		query += fmt.Sprintf(` AND e.event_date >= $%d::date`, len(args))
	}
	if !f.To.IsZero() {
		args = append(args, clock.DateKey(f.To))
		query += fmt.Sprintf(` AND e.event_date <= $%d::date`, len(args))
	}
	query += ` ORDER BY e.event_date, e.id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing pending care events: %w", err)
	}
	defer rows.Close()

	events := make([]*careevent.CareEvent, 0)
	for rows.Next() {
		var name string
		e, err := r.scan(rows, &name)
		if err != nil {
			return nil, fmt.Errorf("error scanning pending care event: %w", err)
		}
		e.MemberName = name
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending care events: %w", err)
	}
	return events, nil
}

func (r *PostgresCareEventRepository) CountPending(ctx context.Context, campusID string) (int, error) {
	query := `SELECT COUNT(*) FROM care_events WHERE campus_id = $1 AND completed = FALSE AND ignored = FALSE`
	var n int
	if err := r.db.QueryRowContext(ctx, query, campusID).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting pending care events: %w", err)
	}
	return n, nil
}

func (r *PostgresCareEventRepository) MarkCompleted(ctx context.Context, campusID, eventID string, by activity.Actor, at time.Time, notes string) error {
	query := `UPDATE care_events SET completed = TRUE, completed_at = $3, completed_by = $4, notes = $5
               WHERE campus_id = $1 AND id = $2`
	return r.execOne(ctx, "completing care event", query, campusID, eventID, at, by.Name, notes)
}

func (r *PostgresCareEventRepository) MarkIgnored(ctx context.Context, campusID, eventID string, by activity.Actor, at time.Time) error {
	query := `UPDATE care_events SET ignored = TRUE, ignored_at = $3, ignored_by = $4
               WHERE campus_id = $1 AND id = $2`
	return r.execOne(ctx, "ignoring care event", query, campusID, eventID, at, by.Name)
}

func (r *PostgresCareEventRepository) Reset(ctx context.Context, campusID, eventID string) error {
	query := `UPDATE care_events
               SET completed = FALSE, completed_at = NULL, completed_by = NULL, notes = NULL,
                   ignored = FALSE, ignored_at = NULL, ignored_by = NULL
               WHERE campus_id = $1 AND id = $2`
	return r.execOne(ctx, "resetting care event", query, campusID, eventID)
}

func (r *PostgresCareEventRepository) Delete(ctx context.Context, campusID, eventID string) error {
	return r.execOne(ctx, "deleting care event", `DELETE FROM care_events WHERE campus_id = $1 AND id = $2`, campusID, eventID)
}

func (r *PostgresCareEventRepository) DeleteByStage(ctx context.Context, campusID, stageID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM care_events WHERE campus_id = $1 AND followup_stage_id = $2`, campusID, stageID)
	if err != nil {
		return 0, fmt.Errorf("error deleting stage audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading deleted audit event count: %w", err)
	}
	return n, nil
}

func (r *PostgresCareEventRepository) execOne(ctx context.Context, what, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error %s: %w", what, err)
	}
	if n == 0 {
		return careevent.ErrNotFound
	}
	return nil
}
