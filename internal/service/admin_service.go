package service

import (
	"context"
	"errors"

	"veloplan/training-app/internal/domain"
	"veloplan/training-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Error Definitions ---
var ErrUserNotFound = errors.New("user not found")

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users      []domain.User `json:"users"`
	Total      int64         `json:"total"`
	Page       int64         `json:"page"`
	PerPage    int64         `json:"perPage"`
	TotalPages int64         `json:"totalPages"`
}

// --- Service Interface ---
type AdminService interface {
	// ListUsers returns a page of all accounts, newest first.
	ListUsers(ctx context.Context, page, perPage int64) (*UserPage, error)
	GetUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// --- Service Implementation ---

// adminService implements the AdminService interface.
type adminService struct {
	userRepo repository.UserRepository
	logger   *zap.Logger
}

// NewAdminService creates a new instance of adminService.
func NewAdminService(userRepo repository.UserRepository, logger *zap.Logger) AdminService {
	return &adminService{userRepo: userRepo, logger: logger}
}

// ListUsers returns one page of accounts. Out-of-range paging parameters are
// clamped rather than rejected.
func (s *adminService) ListUsers(ctx context.Context, page, perPage int64) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	users, err := s.userRepo.List(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}

	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}

	return &UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}, nil
}

// GetUser retrieves a single account by ID.
func (s *adminService) GetUser(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}
