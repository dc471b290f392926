package shared_test

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

	"github.com/cleancity/wastetrack/internal/shared"
)

func newManager(t *testing.T) (*shared.SessionManager, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "test_session", "secret", time.Hour, false), client
}

func roundTrip(t *testing.T, sm *shared.SessionManager, id string, fn func(*shared.Session)) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id != "" {
		req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: id})
	}
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	if fn != nil {
		fn(sess)
	}
	require.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), req, sess))
	return sess
}

func TestFlashSurvivesRedirect(t *testing.T) {
	sm, _ := newManager(t)

	first := roundTrip(t, sm, "", func(s *shared.Session) {
		s.AddFlash(shared.FlashMessage{Kind: "success", Message: "Complaint submitted"})
	})

	var popped *shared.FlashMessage
	roundTrip(t, sm, first.ID, func(s *shared.Session) {
		popped = s.PopFlash()
	})
	require.NotNil(t, popped)
	assert.Equal(t, "Complaint submitted", popped.Message)

	roundTrip(t, sm, first.ID, func(s *shared.Session) {
		assert.Nil(t, s.PopFlash())
	})
}

func TestRegenerateRetiresOldRecord(t *testing.T) {
	sm, _ := newManager(t)
	ctx := context.Background()

	first := roundTrip(t, sm, "", func(s *shared.Session) {
		s.SetUser("user-1")
		s.Set("k", "v")
	})
	oldID := first.ID
	exists, err := sm.Exists(ctx, oldID)
	require.NoError(t, err)
	require.True(t, exists)

	regenerated := roundTrip(t, sm, oldID, func(s *shared.Session) {
		sm.Regenerate(s)
		s.AddFlash(shared.FlashMessage{Kind: "error", Message: "Access denied"})
	})
	assert.NotEqual(t, oldID, regenerated.ID)

	exists, err = sm.Exists(ctx, oldID)
	require.NoError(t, err)
	assert.False(t, exists)

	roundTrip(t, sm, regenerated.ID, func(s *shared.Session) {
		assert.Equal(t, "", s.User())
		assert.Equal(t, "", s.Get("k"))
		flash := s.PopFlash()
		require.NotNil(t, flash)
		assert.Equal(t, "Access denied", flash.Message)
	})
}

func TestDestroyClearsCookie(t *testing.T) {
	sm, _ := newManager(t)
	first := roundTrip(t, sm, "", func(s *shared.Session) { s.SetUser("user-1") })

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: first.ID})
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sm.Destroy(sess)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, req, sess))

	exists, err := sm.Exists(context.Background(), first.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestBusyLatch(t *testing.T) {
	_, client := newManager(t)
	latch := shared.NewBusyLatch(client, time.Minute)
	ctx := context.Background()

	release, err := latch.Acquire(ctx, "sess", "submit-complaint")
	require.NoError(t, err)

	_, err = latch.Acquire(ctx, "sess", "submit-complaint")
	assert.ErrorIs(t, err, shared.ErrBusy)

	other, err := latch.Acquire(ctx, "sess", "add-bin")
	require.NoError(t, err)
	other()

	held, err := latch.Held(ctx, "sess", "submit-complaint")
	require.NoError(t, err)
	assert.True(t, held)

	release()
	held, err = latch.Held(ctx, "sess", "submit-complaint")
	require.NoError(t, err)
	assert.False(t, held)

	again, err := latch.Acquire(ctx, "sess", "submit-complaint")
	require.NoError(t, err)
	again()
}

func TestCSRFTokenRoundTrip(t *testing.T) {
	sm, _ := newManager(t)
	csrf := shared.NewCSRFManager("csrfsecret")
	sess := roundTrip(t, sm, "", nil)

	token, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.VerifyToken(context.Background(), sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, "forged"), shared.ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.VerifyToken(context.Background(), sess, ""), shared.ErrCSRFTokenMissing)
}
