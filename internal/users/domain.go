package users

import "github.com/odyssey-erp/users-console/internal/remote"

// User is a record of the remote users resource.
type User = remote.User

// ViewMode selects how the list is presented.
type ViewMode string

const (
	ViewCard  ViewMode = "card"
	ViewTable ViewMode = "table"
)

// ParseViewMode returns the mode named by s, falling back to card.
func ParseViewMode(s string) ViewMode {
	if ViewMode(s) == ViewTable {
		return ViewTable
	}
	return ViewCard
}

// LoadState is the phase of the most recent page load.
type LoadState int

const (
	StateIdle LoadState = iota
	StateLoading
	StateSuccess
	StateError
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// PageState is exactly one server page of users.
type PageState struct {
	Users      []User
	Page       int
	TotalPages int
}

// User-facing failure messages.
const (
	MsgFetchFailed  = "Failed to fetch users"
	MsgCreateFailed = "Failed to create user"
	MsgUpdateFailed = "Failed to update user"
	MsgDeleteFailed = "Failed to delete user"
	MsgDraftInvalid = "All fields except photo are required"
)
