package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// TokenFromContext returns the bearer token of the request session.
func TokenFromContext(ctx context.Context) (string, error) {
	sess := SessionFromContext(ctx)
	if sess == nil {
		return "", ErrSessionMissing
	}
	token := sess.Token()
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}
