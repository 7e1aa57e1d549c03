package users

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrStaleResponse is returned by a load superseded by a newer one.
	ErrStaleResponse = errors.New("users: response superseded by a newer request")
	// ErrPageOutOfRange is returned when the requested page exceeds the total.
	ErrPageOutOfRange = errors.New("users: page out of range")
)

// Snapshot is a copy of the controller state for rendering.
type Snapshot struct {
	State PageState
	Phase LoadState
	Error string
}

// Controller drives page loads and mutations for one session token.
// Every load or mutation is tagged with a sequence number and only the
// newest one may update the state.
type Controller struct {
	service *Service
	token   string
	reload  bool

	mu    sync.Mutex
	seq   uint64
	phase LoadState
	state PageState
	err   string
}

// ControllerOption customises a Controller.
type ControllerOption func(*Controller)

// WithoutReload skips the page fetch after a successful mutation, for
// callers that redirect to the list and fetch it there.
func WithoutReload() ControllerOption {
	return func(c *Controller) { c.reload = false }
}

// NewController returns an idle controller positioned on page 1.
func NewController(service *Service, token string, opts ...ControllerOption) *Controller {
	c := &Controller{service: service, token: token, reload: true, state: PageState{Page: 1, TotalPages: 1}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.phase = StateLoading
	return c.seq
}

// Load fetches page and replaces the held list on success.
func (c *Controller) Load(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}
	seq := c.begin()
	res, err := c.service.ListUsers(ctx, c.token, page)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return ErrStaleResponse
	}
	if err != nil {
		c.phase = StateError
		c.err = MsgFetchFailed
		return err
	}
	total := res.TotalPages
	if total < 1 {
		total = 1
	}
	if res.Page > total {
		// The held list belongs to a page that no longer exists.
		c.phase = StateIdle
		c.state = PageState{Page: total, TotalPages: total}
		return ErrPageOutOfRange
	}
	if res.Page < 1 {
		res.Page = 1
	}
	res.TotalPages = total
	c.state = res
	c.phase = StateSuccess
	c.err = ""
	return nil
}

// Create submits a new user and reloads the current page.
func (c *Controller) Create(ctx context.Context, d Draft) error {
	return c.mutate(ctx, MsgCreateFailed, func(ctx context.Context) error {
		return c.service.CreateUser(ctx, c.token, d)
	})
}

// Update submits changes to user id and reloads the current page.
func (c *Controller) Update(ctx context.Context, id int64, d Draft) error {
	return c.mutate(ctx, MsgUpdateFailed, func(ctx context.Context) error {
		return c.service.UpdateUser(ctx, c.token, id, d)
	})
}

// Delete removes user id when confirmed and reloads the current page.
// An unconfirmed call does nothing.
func (c *Controller) Delete(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return nil
	}
	return c.mutate(ctx, MsgDeleteFailed, func(ctx context.Context) error {
		return c.service.DeleteUser(ctx, c.token, id)
	})
}

func (c *Controller) mutate(ctx context.Context, failure string, call func(context.Context) error) error {
	seq := c.begin()
	if err := call(ctx); err != nil {
		c.mu.Lock()
		if seq == c.seq {
			c.phase = StateError
			c.err = failure
		}
		c.mu.Unlock()
		return err
	}
	c.mu.Lock()
	page := c.state.Page
	if !c.reload {
		if seq == c.seq {
			c.phase = StateIdle
		}
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	err := c.Load(ctx, page)
	if errors.Is(err, ErrPageOutOfRange) {
		// The mutation emptied the last page; show the new last page.
		return c.Load(ctx, c.Snapshot().State.TotalPages)
	}
	return err
}

// SetPage positions the controller without fetching.
func (c *Controller) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page < 1 {
		page = 1
	}
	c.state.Page = page
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Users = append([]User(nil), c.state.Users...)
	return Snapshot{State: st, Phase: c.phase, Error: c.err}
}
