package auth

import (
	"context"
	"strings"

	"github.com/odyssey-erp/users-console/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	remote Authenticator
}

// NewService constructs a new Service.
func NewService(remote Authenticator) *Service {
	return &Service{remote: remote}
}

// Login validates credentials against the remote API and returns the
// session token. Every failure is reported as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	token, err := s.remote.Login(ctx, strings.TrimSpace(email), password)
	if err != nil || token == "" {
		return "", shared.ErrInvalidCredentials
	}
	return token, nil
}
