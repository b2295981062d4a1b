package database

import (
	"context"
	"database/sql"
	"fmt"

	"pastoral_care_worker/internal/domain/user"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, COALESCE(campus_id, ''), name, COALESCE(phone, ''), COALESCE(telegram_id, 0), role, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*user.User, error) {
	u := &user.User{}
	if err := s.Scan(&u.ID, &u.CampusID, &u.Name, &u.Phone, &u.TelegramID, &u.Role, &u.IsActive); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	newID(&u.ID)
	var telegramID sql.NullInt64
	if u.TelegramID != 0 {
		telegramID = sql.NullInt64{Int64: u.TelegramID, Valid: true}
	}
	query := `INSERT INTO users (id, campus_id, name, phone, telegram_id, role, is_active)
               VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, u.ID, nullString(u.CampusID), u.Name, u.Phone, telegramID, u.Role, u.IsActive)
	if err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) list(ctx context.Context, what, query string, args ...any) ([]*user.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", what, err)
	}
	defer rows.Close()

	users := make([]*user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", what, err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}
	return users, nil
}

func (r *PostgresUserRepository) ListByCampus(ctx context.Context, campusID string) ([]*user.User, error) {
	return r.list(ctx, "campus users",
		`SELECT `+userColumns+` FROM users WHERE campus_id = $1 ORDER BY name`, campusID)
}

func (r *PostgresUserRepository) ListDigestRecipients(ctx context.Context, campusID string) ([]*user.User, error) {
	return r.list(ctx, "digest recipients",
		`SELECT `+userColumns+` FROM users
               WHERE campus_id = $1 AND is_active = TRUE AND role <> $2
               ORDER BY name`, campusID, user.RoleFullAdmin)
}

func (r *PostgresUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1 AND is_active = TRUE`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("error getting user by Telegram ID: %w", err)
	}
	return u, nil
}
