package database

import (
	"context"
	"database/sql"
	"fmt"

	"pastoral_care_worker/internal/domain/campus"
)

type PostgresCampusRepository struct {
	db *sql.DB
}

func NewPostgresCampusRepository(db *sql.DB) *PostgresCampusRepository {
	return &PostgresCampusRepository{db: db}
}

func (r *PostgresCampusRepository) Create(ctx context.Context, c *campus.Campus) error {
	newID(&c.ID)
	query := `INSERT INTO campuses (id, name, is_active, created_at)
               VALUES ($1, $2, $3, NOW())
               RETURNING created_at`
	if err := r.db.QueryRowContext(ctx, query, c.ID, c.Name, c.IsActive).Scan(&c.CreatedAt); err != nil {
		return fmt.Errorf("error creating campus: %w", err)
	}
	return nil
}

func (r *PostgresCampusRepository) GetByID(ctx context.Context, id string) (*campus.Campus, error) {
	query := `SELECT id, name, is_active, created_at FROM campuses WHERE id = $1`
	c := &campus.Campus{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, campus.ErrNotFound
		}
		return nil, fmt.Errorf("error getting campus by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresCampusRepository) ListActive(ctx context.Context) ([]*campus.Campus, error) {
	query := `SELECT id, name, is_active, created_at FROM campuses WHERE is_active = TRUE ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active campuses: %w", err)
	}
	defer rows.Close()

	campuses := make([]*campus.Campus, 0)
	for rows.Next() {
		c := &campus.Campus{}
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning campus: %w", err)
		}
		campuses = append(campuses, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campuses: %w", err)
	}
	return campuses, nil
}
