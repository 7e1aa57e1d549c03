package auth

import "context"

// Authenticator exchanges credentials for a remote API bearer token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}
