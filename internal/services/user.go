package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/feedpress/apiserver/internal/store"
	"github.com/feedpress/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateStatus(ctx context.Context, id int64, status string) (types.User, error)
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

// GetByID loads a user. A missing user is reported as UserNotFound, since
// callers only look up the id carried by a token.
func (s *UserService) GetByID(ctx context.Context, id int64) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, types.NewUserNotFound()
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *UserService) UpdateStatus(ctx context.Context, id int64, status string) (types.User, error) {
	user, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, types.NewUserNotFound()
		}
		return types.User{}, fmt.Errorf("update status: %w", err)
	}
	return user, nil
}
