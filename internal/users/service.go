package users

import (
	"context"

	"github.com/odyssey-erp/users-console/internal/remote"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, token string, page int) (remote.Page, error)
	GetUser(ctx context.Context, token string, id int64) (remote.User, error)
	CreateUser(ctx context.Context, token string, payload remote.UserPayload) error
	UpdateUser(ctx context.Context, token string, id int64, payload remote.UserPayload) error
	DeleteUser(ctx context.Context, token string, id int64) error
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns one server page.
func (s *Service) ListUsers(ctx context.Context, token string, page int) (PageState, error) {
	res, err := s.repo.ListUsers(ctx, token, page)
	if err != nil {
		return PageState{}, err
	}
	return PageState{Users: res.Data, Page: res.Page, TotalPages: res.TotalPages}, nil
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, token string, id int64) (User, error) {
	return s.repo.GetUser(ctx, token, id)
}

// CreateUser submits a validated draft as a new user.
func (s *Service) CreateUser(ctx context.Context, token string, d Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.repo.CreateUser(ctx, token, d.Payload())
}

// UpdateUser submits a validated draft for an existing user.
func (s *Service) UpdateUser(ctx context.Context, token string, id int64, d Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateUser(ctx, token, id, d.Payload())
}

// DeleteUser removes a user.
func (s *Service) DeleteUser(ctx context.Context, token string, id int64) error {
	return s.repo.DeleteUser(ctx, token, id)
}
