package user

import (
	"context"
	"fmt"
)

type Role string

const (
	RoleFullAdmin   Role = "full_admin"
	RoleCampusAdmin Role = "campus_admin"
	RolePastor      Role = "pastor"
)

// User is a staff account. Only campus-scoped staff receive the daily digest.
type User struct {
	ID         string
	CampusID   string
	Name       string
	Phone      string
	TelegramID int64 // 0 when the user has not linked Telegram
	Role       Role
	IsActive   bool
}

type Repository interface {
	Create(ctx context.Context, u *User) error
	ListByCampus(ctx context.Context, campusID string) ([]*User, error)
	// ListDigestRecipients returns active staff of the campus, excluding full admins.
	ListDigestRecipients(ctx context.Context, campusID string) ([]*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
}

var ErrNotFound = fmt.Errorf("user not found")
