package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"pastoral_care_worker/internal/domain/activity"
)

type PostgresActivityRepository struct {
	db *sql.DB
}

func NewPostgresActivityRepository(db *sql.DB) *PostgresActivityRepository {
	return &PostgresActivityRepository{db: db}
}

func (r *PostgresActivityRepository) Append(ctx context.Context, e *activity.Entry) error {
	newID(&e.ID)
	query := `INSERT INTO activity_logs (id, campus_id, actor_id, actor_name, action, member_id, member_name,
               care_event_id, stage_id, notes, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.CampusID, e.ActorID, e.ActorName, e.Action,
		nullString(e.MemberID), nullString(e.MemberName), nullString(e.CareEventID), nullString(e.StageID),
		e.Notes, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("error appending activity log: %w", err)
	}
	return nil
}

func (r *PostgresActivityRepository) DeleteByStage(ctx context.Context, campusID, stageID string) (int64, error) {
	return r.delete(ctx, `DELETE FROM activity_logs WHERE campus_id = $1 AND stage_id = $2`, campusID, stageID)
}

func (r *PostgresActivityRepository) DeleteByCareEvent(ctx context.Context, campusID, careEventID string, actions []activity.Action) (int64, error) {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return r.delete(ctx, `DELETE FROM activity_logs WHERE campus_id = $1 AND care_event_id = $2 AND action = ANY($3)`,
		campusID, careEventID, pq.Array(names))
}

func (r *PostgresActivityRepository) delete(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("error deleting activity logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading deleted activity log count: %w", err)
	}
	return n, nil
}

func (r *PostgresActivityRepository) ListByCampus(ctx context.Context, campusID string, limit int) ([]*activity.Entry, error) {
	query := `SELECT id, campus_id, actor_id, actor_name, action, COALESCE(member_id, ''), COALESCE(member_name, ''),
               COALESCE(care_event_id, ''), COALESCE(stage_id, ''), notes, created_at
               FROM activity_logs WHERE campus_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{campusID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing activity logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*activity.Entry, 0)
	for rows.Next() {
		e := &activity.Entry{}
		if err := rows.Scan(&e.ID, &e.CampusID, &e.ActorID, &e.ActorName, &e.Action, &e.MemberID, &e.MemberName,
			&e.CareEventID, &e.StageID, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning activity log: %w", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity logs: %w", err)
	}
	return entries, nil
}
