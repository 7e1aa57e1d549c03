package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "test_session", "secret", time.Hour, false), mr
}

func commitAndCookie(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, req, sess))
	for _, c := range rec.Result().Cookies() {
		if c.Name == sm.CookieName() {
			return c
		}
	}
	t.Fatalf("session cookie not written")
	return nil
}

func TestSessionTokenRoundTrip(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Empty(t, sess.Token())

	sess.SetToken("QpwL5tke4Pnpja7X4")
	sess.SetUser("eve.holt@reqres.in")
	cookie := commitAndCookie(t, sm, sess)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, "QpwL5tke4Pnpja7X4", loaded.Token())
	assert.Equal(t, "eve.holt@reqres.in", loaded.User())
}

func TestSessionFlashSurvivesRedirect(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.AddFlash(FlashMessage{Kind: "success", Message: "User created"})
	cookie := commitAndCookie(t, sm, sess)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	next, err := sm.Load(ctx, req)
	require.NoError(t, err)
	flash := next.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "User created", flash.Message)
	commitAndCookie(t, sm, next)

	again, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, again.PopFlash())
}

func TestSessionDestroyRemovesRecord(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetToken("token")
	commitAndCookie(t, sm, sess)
	assert.True(t, mr.Exists(sm.redisKey(sess.ID)))

	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, httptest.NewRequest(http.MethodPost, "/logout", nil), sess))
	assert.False(t, mr.Exists(sm.redisKey(sess.ID)))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestSessionRenewDropsOldRecord(t *testing.T) {
	sm, mr := newTestSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	cookie := commitAndCookie(t, sm, sess)
	oldID := sess.ID

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sm.Renew(loaded)
	loaded.SetToken("token")
	commitAndCookie(t, sm, loaded)

	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists(sm.redisKey(oldID)))
	assert.True(t, mr.Exists(sm.redisKey(loaded.ID)))
}

func TestSessionUnknownCookieGetsFreshID(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "attacker-chosen"})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "attacker-chosen", sess.ID)
}

func TestTokenFromContext(t *testing.T) {
	_, err := TokenFromContext(context.Background())
	assert.ErrorIs(t, err, ErrSessionMissing)

	sess := &Session{}
	ctx := ContextWithSession(context.Background(), sess)
	_, err = TokenFromContext(ctx)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	sess.SetToken("abc")
	token, err := TokenFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}
