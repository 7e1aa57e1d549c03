package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnexpectedStatus is matched by every non-2xx StatusError.
	ErrUnexpectedStatus = errors.New("remote: unexpected status")
	// ErrEmptyToken indicates a 2xx login response without a token.
	ErrEmptyToken = errors.New("remote: login returned no token")
)

// StatusError reports a non-2xx response from the remote API.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote %s: status %d", e.Op, e.StatusCode)
}

// Is makes errors.Is(err, ErrUnexpectedStatus) hold for any StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// IsNotFound reports whether err is a 404 from the remote API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
