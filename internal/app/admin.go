package app

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
)

// RoleService answers staff role questions from `admin_profiles`.
type RoleService struct {
	repo store.Repository
}

func NewRoleService(repo store.Repository) *RoleService {
	return &RoleService{repo: repo}
}

// CheckRole reports whether userID is staff and which role they hold.
func (s *RoleService) CheckRole(ctx context.Context, userID uuid.UUID) (*domain.RoleCheckResponse, error) {
	role, err := s.repo.FindAdminRole(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrAdminNotFound) {
			return &domain.RoleCheckResponse{IsAdmin: false}, nil
		}
		return nil, err
	}
	return &domain.RoleCheckResponse{IsAdmin: true, Role: role}, nil
}

// HasAnyRole reports whether userID holds one of allowed. It returns the role found.
func (s *RoleService) HasAnyRole(ctx context.Context, userID uuid.UUID, allowed []string) (string, bool, error) {
	check, err := s.CheckRole(ctx, userID)
	if err != nil {
		return "", false, err
	}
	if !check.IsAdmin {
		return "", false, nil
	}
	for _, role := range allowed {
		if check.Role == role {
			return check.Role, true, nil
		}
	}
	return check.Role, false, nil
}
