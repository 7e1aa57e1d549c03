package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/users-console/internal/testing/guard"
)

const remoteToken = "QpwL5tke4Pnpja7X4"

// fakeAPI mimics the user-management API.
type fakeAPI struct {
	mu      sync.Mutex
	created []map[string]string
	deleted []string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body.Email != "eve.holt@reqres.in" || body.Password != "cityslicka" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"user not found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"token":"`+remoteToken+`"}`)
	})
	authorized := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "reqres-free-v1", r.Header.Get("x-api-key"))
			if r.Header.Get("Authorization") != "Bearer "+remoteToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("GET /users", authorized(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		users := `[{"id":1,"email":"george.bluth@reqres.in","first_name":"George","last_name":"Bluth","avatar":"https://reqres.in/img/faces/1-image.jpg"},` +
			`{"id":4,"email":"eve.holt@reqres.in","first_name":"Eve","last_name":"Holt","avatar":"https://reqres.in/img/faces/4-image.jpg"}]`
		if page == 2 {
			users = `[{"id":7,"email":"michael.lawson@reqres.in","first_name":"Michael","last_name":"Lawson","avatar":"https://reqres.in/img/faces/7-image.jpg"}]`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"page":`+strconv.Itoa(page)+`,"per_page":6,"total":12,"total_pages":2,"data":`+users+`}`)
	}))
	mux.HandleFunc("GET /users/{id}", authorized(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "4" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"id":4,"email":"eve.holt@reqres.in","first_name":"Eve","last_name":"Holt","avatar":""}}`)
	}))
	mux.HandleFunc("POST /users", authorized(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.created = append(f.created, body)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"999","createdAt":"2024-01-01T00:00:00Z"}`)
	}))
	mux.HandleFunc("DELETE /users/{id}", authorized(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	return mux
}

type consoleClient struct {
	t      *testing.T
	base   string
	client *http.Client
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func newConsole(t *testing.T) (*consoleClient, *fakeAPI, *Runtime) {
	t.Helper()
	mr := miniredis.RunT(t)
	api := &fakeAPI{}
	remoteServer := httptest.NewServer(api.handler(t))
	t.Cleanup(remoteServer.Close)

	cfg := &Config{
		AppEnv:             "test",
		AppRequestTimeout:  5 * time.Second,
		RedisAddr:          mr.Addr(),
		SessionSecret:      "session-secret",
		SessionTTL:         time.Hour,
		CSRFSecret:         "csrf-secret",
		RemoteBaseURL:      remoteServer.URL,
		RemoteAPIKey:       "reqres-free-v1",
		RemoteTimeout:      2 * time.Second,
		RateLimitPerMinute: 1000,
	}
	rt, err := NewRuntime(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	server := httptest.NewServer(rt.Handler)
	t.Cleanup(server.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &consoleClient{t: t, base: server.URL, client: &http.Client{Jar: jar}}, api, rt
}

func (c *consoleClient) get(path string) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.client.Get(c.base + path)
	require.NoError(c.t, err)
	return resp, readBody(c.t, resp)
}

func (c *consoleClient) post(path string, form url.Values) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.client.PostForm(c.base+path, form)
	require.NoError(c.t, err)
	return resp, readBody(c.t, resp)
}

func (c *consoleClient) login() string {
	c.t.Helper()
	_, body := c.get("/login")
	resp, body := c.post("/login", url.Values{
		"email":      {"eve.holt@reqres.in"},
		"password":   {"cityslicka"},
		"csrf_token": {csrfToken(c.t, body)},
	})
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	require.Equal(c.t, "/", resp.Request.URL.Path)
	return body
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(raw)
}

func csrfToken(t *testing.T, body string) string {
	t.Helper()
	m := csrfPattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "page carries a csrf token")
	return m[1]
}

func TestHealthz(t *testing.T) {
	c, _, _ := newConsole(t)

	resp, body := c.get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestUnauthenticatedListRedirectsToLogin(t *testing.T) {
	c, _, _ := newConsole(t)

	resp, body := c.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, "Test credentials")
}

func TestLoginThenListUsers(t *testing.T) {
	c, _, _ := newConsole(t)

	body := c.login()
	assert.Contains(t, body, "George Bluth")
	assert.Contains(t, body, "Eve Holt")
	assert.Contains(t, body, "eve.holt@reqres.in")

	resp, body := c.get("/?page=2")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Michael Lawson")
	assert.NotContains(t, body, "George Bluth")
}

func TestLoginWithWrongPassword(t *testing.T) {
	c, _, _ := newConsole(t)

	_, body := c.get("/login")
	resp, body := c.post("/login", url.Values{
		"email":      {"eve.holt@reqres.in"},
		"password":   {"nope"},
		"csrf_token": {csrfToken(t, body)},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid credentials")
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	c, api, _ := newConsole(t)
	c.login()

	resp, _ := c.post("/users", url.Values{"first_name": {"a"}, "last_name": {"b"}, "email": {"c@d.io"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, api.created)
}

func TestCreateUserFlashesAndReloads(t *testing.T) {
	c, api, _ := newConsole(t)
	body := c.login()

	resp, body := c.post("/users", url.Values{
		"first_name": {"Morpheus"},
		"last_name":  {"Leader"},
		"email":      {"morpheus@zion.io"},
		"csrf_token": {csrfToken(t, body)},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/", resp.Request.URL.Path)
	assert.Contains(t, body, "User created")
	require.Len(t, api.created, 1)
	assert.Equal(t, "Morpheus", api.created[0]["first_name"])

	_, body = c.get("/")
	assert.NotContains(t, body, "User created", "flash is shown once")
}

func TestDeleteUserAfterConfirmation(t *testing.T) {
	c, api, _ := newConsole(t)
	c.login()

	_, body := c.get("/users/4/delete")
	assert.Contains(t, body, "Delete user Eve Holt?")

	resp, body := c.post("/users/4/delete", url.Values{
		"confirm":    {"yes"},
		"csrf_token": {csrfToken(t, body)},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "User deleted")
	assert.Equal(t, []string{"4"}, api.deleted)
}

func TestLogoutClearsSession(t *testing.T) {
	c, _, _ := newConsole(t)
	body := c.login()

	resp, _ := c.post("/logout", url.Values{"csrf_token": {csrfToken(t, body)}})
	assert.Equal(t, "/login", resp.Request.URL.Path)

	resp, _ = c.get("/")
	assert.Equal(t, "/login", resp.Request.URL.Path, "token is gone after logout")
}

func TestUnknownPathRendersNotFound(t *testing.T) {
	c, _, _ := newConsole(t)

	resp, body := c.get("/no/such/page")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "does not exist")
}

func TestStaticAssetsAreCached(t *testing.T) {
	c, _, _ := newConsole(t)

	resp, _ := c.get("/static/css/app.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/css"))
}

func TestSecurityHeadersAllowRemoteAvatars(t *testing.T) {
	c, _, _ := newConsole(t)

	resp, _ := c.get("/login")
	csp := resp.Header.Get("Content-Security-Policy")
	assert.Contains(t, csp, "img-src 'self' https: data:")
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

func TestMetricsRecordRemoteCalls(t *testing.T) {
	c, _, _ := newConsole(t)
	c.login()

	_, body := c.get("/metrics")
	assert.Contains(t, body, `console_remote_requests_total{op="login",outcome="ok"} 1`)
	assert.Contains(t, body, `console_remote_requests_total{op="list_users",outcome="ok"}`)
	assert.Contains(t, body, `console_http_requests_total{code="303",route="/login"} 1`)
}
