package users

import (
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/users-console/internal/remote"
)

// ErrDraftInvalid is returned when a required draft field is blank.
var ErrDraftInvalid = errors.New(MsgDraftInvalid)

var draftValidator = validator.New()

// Draft is the unsaved content of the create/edit form.
type Draft struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Email     string `validate:"required"`
	Avatar    string
}

// NewDraft seeds a draft from u, or returns a blank draft when u is nil.
func NewDraft(u *User) Draft {
	if u == nil {
		return Draft{}
	}
	return Draft{FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Avatar: u.Avatar}
}

// DraftFromForm reads a submitted form.
func DraftFromForm(form url.Values) Draft {
	return Draft{
		FirstName: form.Get("first_name"),
		LastName:  form.Get("last_name"),
		Email:     form.Get("email"),
		Avatar:    form.Get("avatar"),
	}
}

// Validate checks that first name, last name and email are present.
// Whitespace-only values count as blank.
func (d Draft) Validate() error {
	trimmed := Draft{
		FirstName: strings.TrimSpace(d.FirstName),
		LastName:  strings.TrimSpace(d.LastName),
		Email:     strings.TrimSpace(d.Email),
	}
	if err := draftValidator.Struct(trimmed); err != nil {
		return ErrDraftInvalid
	}
	return nil
}

// Payload converts the draft into a remote request body.
func (d Draft) Payload() remote.UserPayload {
	return remote.UserPayload{FirstName: d.FirstName, LastName: d.LastName, Email: d.Email, Avatar: d.Avatar}
}

// Modal is the create/edit form shown over the list.
type Modal struct {
	Open   bool
	Target *User
	Draft  Draft
	Error  string
}

// OpenCreate returns a modal with a blank draft.
func OpenCreate() Modal {
	return Modal{Open: true, Draft: NewDraft(nil)}
}

// OpenEdit returns a modal seeded from u.
func OpenEdit(u User) Modal {
	return Modal{Open: true, Target: &u, Draft: NewDraft(&u)}
}

// Editing reports whether the modal edits an existing record.
func (m Modal) Editing() bool {
	return m.Target != nil
}

// Title is the modal heading.
func (m Modal) Title() string {
	if m.Editing() {
		return "Edit User"
	}
	return "Create User"
}

// SubmitLabel is the text of the submit button.
func (m Modal) SubmitLabel() string {
	if m.Editing() {
		return "Update"
	}
	return "Create"
}

// Submit replaces the draft with d and calls onSubmit when d is valid.
// On a validation failure the draft is kept as typed and onSubmit is not
// called. The modal performs no I/O itself.
func (m *Modal) Submit(d Draft, onSubmit func(Draft) error) error {
	m.Draft = d
	if err := d.Validate(); err != nil {
		m.Error = MsgDraftInvalid
		return err
	}
	m.Error = ""
	return onSubmit(d)
}
