package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pastoral_care_worker/internal/domain/notification"
)

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

const notificationColumns = `id, campus_id, COALESCE(member_id, ''), COALESCE(recipient_id, ''), channel, message_type,
               recipient, message, status, attempts, COALESCE(last_error, ''), created_at, sent_at, failed_at`

func scanNotification(s rowScanner) (*notification.Log, error) {
	l := &notification.Log{}
	var sentAt, failedAt sql.NullTime
	if err := s.Scan(&l.ID, &l.CampusID, &l.MemberID, &l.RecipientID, &l.Channel, &l.MessageType,
		&l.Recipient, &l.Message, &l.Status, &l.Attempts, &l.LastError, &l.CreatedAt, &sentAt, &failedAt); err != nil {
		return nil, err
	}
	l.SentAt = timePtr(sentAt)
	l.FailedAt = timePtr(failedAt)
	return l, nil
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, l *notification.Log) error {
	newID(&l.ID)
	query := `INSERT INTO notification_logs (id, campus_id, member_id, recipient_id, channel, message_type,
               recipient, message, status, attempts, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query, l.ID, l.CampusID, nullString(l.MemberID), nullString(l.RecipientID),
		l.Channel, l.MessageType, l.Recipient, l.Message, l.Status, l.Attempts, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating notification log: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	query := `UPDATE notification_logs SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`
	var n int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		if err == sql.ErrNoRows {
			return 0, notification.ErrLogNotFound
		}
		return 0, fmt.Errorf("error incrementing notification attempts: %w", err)
	}
	return n, nil
}

func (r *PostgresNotificationRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE notification_logs SET status = $2, sent_at = $3, last_error = NULL WHERE id = $1`
	return r.execOne(ctx, "marking notification sent", query, id, notification.StatusSent, at)
}

func (r *PostgresNotificationRepository) MarkFailed(ctx context.Context, id string, lastError string, at time.Time) error {
	query := `UPDATE notification_logs SET status = $2, last_error = $3, failed_at = $4 WHERE id = $1`
	return r.execOne(ctx, "marking notification failed", query, id, notification.StatusFailed, lastError, at)
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, campusID, id string) (*notification.Log, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification_logs WHERE campus_id = $1 AND id = $2`
	l, err := scanNotification(r.db.QueryRowContext(ctx, query, campusID, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notification.ErrLogNotFound
		}
		return nil, fmt.Errorf("error getting notification log by ID: %w", err)
	}
	return l, nil
}

func (r *PostgresNotificationRepository) ListRecent(ctx context.Context, campusID string, limit int) ([]*notification.Log, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification_logs
               WHERE campus_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{campusID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing notification logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*notification.Log, 0)
	for rows.Next() {
		l, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification log: %w", err)
		}
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification logs: %w", err)
	}
	return logs, nil
}

func (r *PostgresNotificationRepository) execOne(ctx context.Context, what, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error %s: %w", what, err)
	}
	if n == 0 {
		return notification.ErrLogNotFound
	}
	return nil
}
