package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cleancity/wastetrack/internal/auth"
	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/shared"
	"github.com/cleancity/wastetrack/internal/view"
	_ "github.com/cleancity/wastetrack/testing"
)

type stubRepo struct {
	byEmail map[string]*auth.Identity
}

func newStubRepo() *stubRepo {
	return &stubRepo{byEmail: map[string]*auth.Identity{}}
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*auth.Identity, error) {
	identity, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return identity, nil
}

func (s *stubRepo) FindByID(_ context.Context, id string) (*auth.Identity, error) {
	for _, identity := range s.byEmail {
		if identity.ID == id {
			return identity, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) Create(_ context.Context, identity auth.Identity) (*auth.Identity, error) {
	key := strings.ToLower(identity.Email)
	if _, ok := s.byEmail[key]; ok {
		return nil, auth.ErrEmailTaken
	}
	identity.ID = "id-" + key
	identity.CreatedAt = time.Now()
	s.byEmail[key] = &identity
	return &identity, nil
}

func (s *stubRepo) Delete(_ context.Context, id string) error {
	for key, identity := range s.byEmail {
		if identity.ID == id {
			delete(s.byEmail, key)
			return nil
		}
	}
	return shared.ErrNotFound
}

type stubRoles map[string][]rbac.Role

func (s stubRoles) Roles(_ context.Context, id string) ([]rbac.Role, error) {
	return s[id], nil
}

func (s *stubRepo) add(t *testing.T, id, email, password string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	s.byEmail[email] = &auth.Identity{ID: id, Email: email, PasswordHash: string(hashed), Confirmed: true}
}

type fixture struct {
	handler  *auth.Handler
	service  *auth.Service
	sessions *shared.SessionManager
}

func newAuthHandler(t *testing.T, repo auth.Repository, roles rbac.RoleSource) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)
	service := auth.NewService(repo, sessionManager).WithHashCost(bcrypt.MinCost)
	return fixture{
		handler:  auth.NewHandler(nil, service, roles, templates, sessionManager, csrfManager),
		service:  service,
		sessions: sessionManager,
	}
}

func (f fixture) do(t *testing.T, h http.HandlerFunc, method, target string, form url.Values) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	res := httptest.NewRecorder()
	h(res, req)
	require.NoError(t, f.sessions.Commit(ctx, res, req, sess))
	return res, sess
}

func TestLoginPage(t *testing.T) {
	f := newAuthHandler(t, newStubRepo(), stubRoles{})
	res, sess := f.do(t, f.handler.ShowLoginForTest(auth.AdminPortal), http.MethodGet, "/admin/login", nil)

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	assert.Contains(t, res.Body.String(), "Admin Login")
	assert.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestLoginInvalidCredentials(t *testing.T) {
	repo := newStubRepo()
	repo.add(t, "u1", "user@test.local", "correctpass")
	f := newAuthHandler(t, repo, stubRoles{})

	res, sess := f.do(t, f.handler.HandleLoginForTest(auth.CitizenPortal), http.MethodPost, "/user/login", url.Values{
		"email":    {"user@test.local"},
		"password": {"wrongpass"},
	})

	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid email or password")
	assert.Equal(t, "", sess.User())
}

func TestAdminLoginWithoutRoleIsDenied(t *testing.T) {
	repo := newStubRepo()
	repo.add(t, "citizen-1", "citizen@test.local", "secret1")
	f := newAuthHandler(t, repo, stubRoles{})

	res, sess := f.do(t, f.handler.HandleLoginForTest(auth.AdminPortal), http.MethodPost, "/admin/login", url.Values{
		"email":    {"citizen@test.local"},
		"password": {"secret1"},
	})

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/admin/login", res.Header().Get("Location"))
	assert.Equal(t, "", sess.User())
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, rbac.AccessDeniedMessage, flash.Message)
}

func TestDriverLoginSucceeds(t *testing.T) {
	repo := newStubRepo()
	repo.add(t, "driver-1", "driver@test.local", "secret1")
	f := newAuthHandler(t, repo, stubRoles{"driver-1": {rbac.RoleDriver}})

	res, sess := f.do(t, f.handler.HandleLoginForTest(auth.DriverPortal), http.MethodPost, "/driver/login", url.Values{
		"email":    {"DRIVER@test.local"},
		"password": {"secret1"},
	})

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/driver/dashboard", res.Header().Get("Location"))
	assert.Equal(t, "driver-1", sess.User())
}

func TestSignUp(t *testing.T) {
	repo := newStubRepo()
	f := newAuthHandler(t, repo, stubRoles{})

	res, _ := f.do(t, f.handler.HandleSignUpForTest, http.MethodPost, "/user/signup", url.Values{
		"full_name": {"Asha"},
		"email":     {"not-an-email"},
		"password":  {"123"},
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "invalid email format")
	assert.Contains(t, res.Body.String(), "password must be at least 6 characters")

	res, sess := f.do(t, f.handler.HandleSignUpForTest, http.MethodPost, "/user/signup", url.Values{
		"full_name": {"Asha"},
		"email":     {"asha@test.local"},
		"password":  {"secret1"},
	})
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/user/dashboard", res.Header().Get("Location"))
	assert.NotEmpty(t, sess.User())

	identity, err := f.service.Authenticate(context.Background(), "asha@test.local", "secret1")
	require.NoError(t, err)
	assert.True(t, identity.Confirmed)

	res, _ = f.do(t, f.handler.HandleSignUpForTest, http.MethodPost, "/user/signup", url.Values{
		"full_name": {"Asha"},
		"email":     {"asha@test.local"},
		"password":  {"secret1"},
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Email is already registered")
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	repo.add(t, "u1", "user@test.local", "secret1")
	f := newAuthHandler(t, repo, stubRoles{})

	require.NoError(t, f.service.Delete(context.Background(), "u1"))
	require.NoError(t, f.service.Delete(context.Background(), "u1"))
	_, err := f.service.FindByEmail(context.Background(), "user@test.local")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
