package users

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/users-console/internal/remote"
	"github.com/odyssey-erp/users-console/internal/shared"
	"github.com/odyssey-erp/users-console/internal/view"
)

const (
	listTemplate = "pages/users.html"

	// MsgLoadUserFailed is shown when a single record cannot be fetched.
	MsgLoadUserFailed = "Failed to load user"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers user routes. Callers must install the session gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.createUser)
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}", h.updateUser)
		r.Get("/{id}/delete", h.confirmDelete)
		r.Post("/{id}/delete", h.deleteUser)
	})
}

// listQuery is the navigation state carried in the URL.
type listQuery struct {
	Page  int
	Query string
	View  ViewMode
}

func (q listQuery) values(page int) url.Values {
	v := url.Values{}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	return v
}

// PageURL links to page n keeping the search text.
func (q listQuery) PageURL(n int) string {
	if enc := q.values(n).Encode(); enc != "" {
		return "/?" + enc
	}
	return "/"
}

// ViewURL links to the current page in mode.
func (q listQuery) ViewURL(mode ViewMode) string {
	v := q.values(q.Page)
	v.Set("view", string(mode))
	return "/?" + v.Encode()
}

// ListURL links back to the current page.
func (q listQuery) ListURL() string {
	return q.PageURL(q.Page)
}

func (q listQuery) withState(path string) string {
	if enc := q.values(q.Page).Encode(); enc != "" {
		return path + "?" + enc
	}
	return path
}

// CreateURL opens the create modal over the current page.
func (q listQuery) CreateURL() string {
	return q.withState("/users/new")
}

// EditURL opens the edit modal for user id over the current page.
func (q listQuery) EditURL(id int64) string {
	return q.withState("/users/" + strconv.FormatInt(id, 10) + "/edit")
}

// DeleteURL opens the delete confirmation for user id.
func (q listQuery) DeleteURL(id int64) string {
	return q.withState("/users/" + strconv.FormatInt(id, 10) + "/delete")
}

// pageLink is one control of the pagination bar. URL is empty when the
// control would not change the page.
type pageLink struct {
	Label    string
	URL      string
	Current  bool
	Ellipsis bool
	Rel      string
}

// PageLinks builds the pagination bar from the navigation rules.
func (d listPageData) PageLinks() []pageLink {
	p := d.Pagination
	link := func(action shared.PageAction, n int, l pageLink) pageLink {
		p.Navigate(action, n, func(target int) { l.URL = d.Nav.PageURL(target) })
		return l
	}
	markers := p.Markers()
	links := make([]pageLink, 0, len(markers)+2)
	links = append(links, link(shared.PagePrev, 0, pageLink{Label: "Previous", Rel: "prev"}))
	for _, m := range markers {
		if m.Ellipsis {
			links = append(links, pageLink{Label: m.String(), Ellipsis: true})
			continue
		}
		links = append(links, link(shared.PageSelect, m.Number, pageLink{Label: m.String(), Current: m.Number == p.Page}))
	}
	links = append(links, link(shared.PageNext, 0, pageLink{Label: "Next", Rel: "next"}))
	return links
}

type listPageData struct {
	Nav        listQuery
	Users      []User
	Fetched    int
	Pagination shared.Pagination
	Error      string
	Modal      *Modal
	Confirm    *User
	ConfirmID  int64
	Account    string
}

// IsTable reports whether the table view is active.
func (d listPageData) IsTable() bool { return d.Nav.View == ViewTable }

func (h *Handler) parseQuery(r *http.Request, source url.Values) listQuery {
	page, _ := strconv.Atoi(source.Get("page"))
	if page < 1 {
		page = 1
	}
	sess := shared.SessionFromContext(r.Context())
	mode := source.Get("view")
	if mode != "" {
		mode = string(ParseViewMode(mode))
		if sess != nil && sess.Get(shared.ViewKey) != mode {
			sess.Set(shared.ViewKey, mode)
		}
	} else if sess != nil {
		mode = sess.Get(shared.ViewKey)
	}
	return listQuery{Page: page, Query: strings.TrimSpace(source.Get("q")), View: ParseViewMode(mode)}
}

// loadList fetches the requested page. It returns false when a response
// has already been written.
func (h *Handler) loadList(w http.ResponseWriter, r *http.Request, q listQuery) (listPageData, bool) {
	data := listPageData{Nav: q, Account: shared.SessionFromContext(r.Context()).User()}
	token, err := shared.TokenFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return data, false
	}

	ctl := NewController(h.service, token)
	err = ctl.Load(r.Context(), q.Page)
	snap := ctl.Snapshot()
	switch {
	case errors.Is(err, ErrPageOutOfRange):
		q.Page = snap.State.TotalPages
		http.Redirect(w, r, q.PageURL(q.Page), http.StatusSeeOther)
		return data, false
	case err != nil:
		h.logger.Error("list users failed", slog.Int("page", q.Page), slog.Any("error", err))
		data.Error = snap.Error
		data.Pagination = shared.NewPagination(q.Page, q.Page)
		return data, true
	}

	data.Nav.Page = snap.State.Page
	data.Fetched = len(snap.State.Users)
	data.Users = Filter(snap.State.Users, q.Query)
	data.Pagination = shared.NewPagination(snap.State.Page, snap.State.TotalPages)
	return data, true
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := h.parseQuery(r, r.URL.Query())
	data, ok := h.loadList(w, r, q)
	if !ok {
		return
	}
	status := http.StatusOK
	if data.Error != "" {
		status = http.StatusBadGateway
	}
	h.render(w, r, data, status)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	q := h.parseQuery(r, r.URL.Query())
	data, ok := h.loadList(w, r, q)
	if !ok {
		return
	}
	modal := OpenCreate()
	data.Modal = &modal
	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	q := h.parseQuery(r, r.URL.Query())
	id, ok := userID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	token, _ := shared.TokenFromContext(r.Context())
	user, err := h.service.GetUser(r.Context(), token, id)
	if err != nil {
		h.logger.Warn("load user for edit", slog.Int64("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, q.ListURL(), "error", MsgLoadUserFailed)
		return
	}
	data, ok := h.loadList(w, r, q)
	if !ok {
		return
	}
	modal := OpenEdit(user)
	data.Modal = &modal
	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, nil)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.submit(w, r, &id)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, id *int64) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	q := h.parseQuery(r, r.PostForm)
	token, _ := shared.TokenFromContext(r.Context())
	ctl := NewController(h.service, token, WithoutReload())
	ctl.SetPage(q.Page)

	draft := DraftFromForm(r.PostForm)
	modal := OpenCreate()
	failure, success := MsgCreateFailed, "User created"
	call := func(d Draft) error { return ctl.Create(r.Context(), d) }
	if id != nil {
		target := User{ID: *id, FirstName: draft.FirstName, LastName: draft.LastName, Email: draft.Email, Avatar: draft.Avatar}
		modal = OpenEdit(target)
		failure, success = MsgUpdateFailed, "User updated"
		call = func(d Draft) error { return ctl.Update(r.Context(), *id, d) }
	}

	err := modal.Submit(draft, call)
	switch {
	case errors.Is(err, ErrDraftInvalid):
		data, ok := h.loadList(w, r, q)
		if !ok {
			return
		}
		data.Modal = &modal
		h.render(w, r, data, http.StatusUnprocessableEntity)
	case err != nil:
		h.logger.Error("submit user failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, q.ListURL(), "error", failure)
	default:
		h.redirectWithFlash(w, r, q.ListURL(), "success", success)
	}
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	q := h.parseQuery(r, r.URL.Query())
	id, ok := userID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	token, _ := shared.TokenFromContext(r.Context())
	user, err := h.service.GetUser(r.Context(), token, id)
	if err != nil {
		if !remote.IsNotFound(err) {
			h.logger.Warn("load user for delete", slog.Int64("id", id), slog.Any("error", err))
		}
		user = User{ID: id}
	}
	data, ok := h.loadList(w, r, q)
	if !ok {
		return
	}
	data.Confirm = &user
	data.ConfirmID = id
	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	q := h.parseQuery(r, r.PostForm)
	confirmed := r.PostFormValue("confirm") == "yes"
	if !confirmed {
		http.Redirect(w, r, q.ListURL(), http.StatusSeeOther)
		return
	}

	token, _ := shared.TokenFromContext(r.Context())
	ctl := NewController(h.service, token, WithoutReload())
	ctl.SetPage(q.Page)
	if err := ctl.Delete(r.Context(), id, confirmed); err != nil {
		h.logger.Error("delete user failed", slog.Int64("id", id), slog.Any("error", err))
		h.redirectWithFlash(w, r, q.ListURL(), "error", MsgDeleteFailed)
		return
	}
	h.redirectWithFlash(w, r, q.ListURL(), "success", "User deleted")
}

func userID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data listPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	flash := sess.PopFlash()
	viewData := view.TemplateData{Title: "Users", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, listTemplate, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
