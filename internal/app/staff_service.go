package app

import (
	"context"
	"errors"
	"fmt"

	"pastoral_care_worker/internal/domain/user"
)

var (
	ErrStaffNotFound      = errors.New("no staff account is linked to this Telegram user")
	ErrStaffInactive      = errors.New("staff account is inactive")
	ErrStaffNotAuthorized = errors.New("staff member is not authorized for this action")
	ErrCampusRequired     = errors.New("a campus id is required for full administrators")
)

// StaffService resolves chat users to staff accounts and decides which
// campus a request may touch.
type StaffService struct {
	users user.Repository
}

func NewStaffService(users user.Repository) *StaffService {
	return &StaffService{users: users}
}

// Identify returns the active staff account linked to telegramID.
func (s *StaffService) Identify(ctx context.Context, telegramID int64) (*user.User, error) {
	u, err := s.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrStaffNotFound
		}
		return nil, fmt.Errorf("failed to look up staff by Telegram ID: %w", err)
	}
	if !u.IsActive {
		return nil, ErrStaffInactive
	}
	return u, nil
}

// ResolveCampus returns the campus u may act on. Campus staff are pinned to
// their own campus; a full admin must name one.
func (s *StaffService) ResolveCampus(u *user.User, requested string) (string, error) {
	if u.Role == user.RoleFullAdmin {
		if requested == "" {
			return "", ErrCampusRequired
		}
		return requested, nil
	}
	if u.CampusID == "" {
		return "", ErrStaffNotAuthorized
	}
	if requested != "" && requested != u.CampusID {
		return "", ErrStaffNotAuthorized
	}
	return u.CampusID, nil
}

// CanManage reports whether u may run administrative actions such as a
// manual engagement refresh.
func (s *StaffService) CanManage(u *user.User) bool {
	return u.Role == user.RoleFullAdmin || u.Role == user.RoleCampusAdmin
}
