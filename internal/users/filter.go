package users

import (
	"strings"

	"golang.org/x/text/cases"
)

// Filter returns the users whose full name or email contains query,
// ignoring case. A blank query returns users unchanged. Only the given
// slice is searched; no other page is requested.
func Filter(users []User, query string) []User {
	q := strings.TrimSpace(query)
	if q == "" {
		return users
	}
	fold := cases.Fold()
	needle := fold.String(q)
	out := make([]User, 0, len(users))
	for _, u := range users {
		if strings.Contains(fold.String(u.FullName()), needle) || strings.Contains(fold.String(u.Email), needle) {
			out = append(out, u)
		}
	}
	return out
}
