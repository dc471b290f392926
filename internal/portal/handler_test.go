package portal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleancity/wastetrack/internal/bins"
	"github.com/cleancity/wastetrack/internal/complaints"
	"github.com/cleancity/wastetrack/internal/drivers"
	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/shared"
	"github.com/cleancity/wastetrack/internal/view"
	_ "github.com/cleancity/wastetrack/testing"
)

type stubComplaints struct {
	list      []complaints.Complaint
	submitted []complaints.SubmitInput
	changes   []complaints.AdminChange
	moves     []string
	err       error
}

func (s *stubComplaints) Submit(_ context.Context, ownerID string, in complaints.SubmitInput) (complaints.Complaint, error) {
	if s.err != nil {
		return complaints.Complaint{}, s.err
	}
	s.submitted = append(s.submitted, in)
	return complaints.Complaint{ID: "c-1", ComplaintNumber: "WC-20240501-ABC123", UserID: ownerID, Status: complaints.StatusPending}, nil
}

func (s *stubComplaints) AdminList(context.Context, string) ([]complaints.Complaint, error) {
	return s.list, nil
}

func (s *stubComplaints) CitizenList(context.Context, string, string) ([]complaints.Complaint, error) {
	return s.list, nil
}

func (s *stubComplaints) DriverList(_ context.Context, _ string, v complaints.DriverView) ([]complaints.Complaint, error) {
	if v == complaints.DriverHistory {
		return s.list, nil
	}
	var open []complaints.Complaint
	for _, c := range s.list {
		if c.Status != complaints.StatusCompleted {
			open = append(open, c)
		}
	}
	return open, nil
}

func (s *stubComplaints) Assign(_ context.Context, _ string, id string, change complaints.AdminChange) (complaints.Complaint, error) {
	if s.err != nil {
		return complaints.Complaint{}, s.err
	}
	s.changes = append(s.changes, change)
	return complaints.Complaint{ID: id, ComplaintNumber: "WC-20240501-ABC123", Status: change.Status}, nil
}

func (s *stubComplaints) UpdateStatus(_ context.Context, driverID, id string, to complaints.Status) (complaints.Complaint, error) {
	if s.err != nil {
		return complaints.Complaint{}, s.err
	}
	s.moves = append(s.moves, driverID+":"+id+":"+string(to))
	return complaints.Complaint{ID: id, ComplaintNumber: "WC-20240501-ABC123", Status: to}, nil
}

type stubDrivers struct {
	list    []drivers.Driver
	byUser  map[string]drivers.Driver
	created []drivers.Input
	deleted []string
	provErr error
}

func (s *stubDrivers) List(context.Context) ([]drivers.Driver, error) { return s.list, nil }

func (s *stubDrivers) ForIdentity(_ context.Context, identityID string) (drivers.Driver, error) {
	d, ok := s.byUser[identityID]
	if !ok {
		return drivers.Driver{}, drivers.ErrNotFound
	}
	return d, nil
}

func (s *stubDrivers) Provision(_ context.Context, _ string, in drivers.Input) (drivers.Driver, error) {
	if s.provErr != nil {
		return drivers.Driver{}, s.provErr
	}
	s.created = append(s.created, in)
	return drivers.Driver{ID: "drv-9", FullName: in.FullName}, nil
}

func (s *stubDrivers) Update(_ context.Context, _ string, id string, in drivers.Input) (drivers.Driver, error) {
	return drivers.Driver{ID: id, FullName: in.FullName}, nil
}

func (s *stubDrivers) Delete(_ context.Context, _ string, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubBins struct {
	list []bins.Bin
}

func (s *stubBins) List(context.Context) ([]bins.Bin, error) { return s.list, nil }

func (s *stubBins) Create(_ context.Context, in bins.Input) (bins.Bin, error) {
	norm, errs := in.Normalize()
	if !errs.Empty() {
		return bins.Bin{}, errs
	}
	return bins.Bin{ID: "bin-1", Location: norm.Location, Area: norm.Area}, nil
}

func (s *stubBins) Update(_ context.Context, id string, in bins.Input) (bins.Bin, error) {
	return bins.Bin{ID: id, Location: in.Location}, nil
}

func (s *stubBins) Delete(context.Context, string) error { return nil }

type portalFixture struct {
	handler    *Handler
	router     chi.Router
	sessions   *shared.SessionManager
	latch      *shared.BusyLatch
	complaints *stubComplaints
	drivers    *stubDrivers
	bins       *stubBins
}

func newPortalFixture(t *testing.T) *portalFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	templates, err := view.NewEngine()
	require.NoError(t, err)
	f := &portalFixture{
		sessions:   shared.NewSessionManager(client, "test_session", "secret", time.Hour, false),
		latch:      shared.NewBusyLatch(client, time.Minute),
		complaints: &stubComplaints{},
		drivers:    &stubDrivers{byUser: map[string]drivers.Driver{}},
		bins:       &stubBins{},
	}
	f.handler = NewHandler(Params{
		Templates:  templates,
		CSRF:       shared.NewCSRFManager("csrfsecret"),
		Latch:      f.latch,
		Complaints: f.complaints,
		Drivers:    f.drivers,
		Bins:       f.bins,
	})
	f.router = chi.NewRouter()
	f.handler.MountPublic(f.router)
	f.handler.MountCitizen(f.router)
	f.handler.MountAdmin(f.router)
	f.handler.MountDriver(f.router)
	return f
}

// serve runs the request as principal and returns the response and session.
func (f *portalFixture) serve(t *testing.T, principal rbac.Principal, method, target string, form url.Values) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	body := strings.NewReader("")
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	sess.ID = "sess-1"
	sess.SetUser(principal.IdentityID)
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = rbac.ContextWithPrincipal(ctx, principal)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec, sess
}

var (
	citizen = rbac.Principal{IdentityID: "citizen-1", Email: "c@example.com"}
	admin   = rbac.Principal{IdentityID: "admin-1", Email: "a@example.com", Roles: []rbac.Role{rbac.RoleAdmin}}
	driver  = rbac.Principal{IdentityID: "driver-user", Email: "d@example.com", Roles: []rbac.Role{rbac.RoleDriver}}
)

func TestPublicPages(t *testing.T) {
	f := newPortalFixture(t)
	for _, path := range []string{"/", "/about", "/faqs"} {
		rec, _ := f.serve(t, rbac.Principal{}, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "WasteTrack", path)
	}
}

func TestCitizenDashboardListsComplaints(t *testing.T) {
	f := newPortalFixture(t)
	f.complaints.list = []complaints.Complaint{
		{ID: "c-1", ComplaintNumber: "WC-20240501-AAAAAA", Area: "Sector 5", Address: "12 Park Rd", Status: complaints.StatusInProgress},
		{ID: "c-2", ComplaintNumber: "WC-20240502-BBBBBB", Area: "Old Town", Address: "3 Hill St", Status: complaints.StatusCompleted},
	}

	rec, _ := f.serve(t, citizen, http.MethodGet, "/user/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "WC-20240501-AAAAAA")
	assert.Contains(t, body, "In Progress")
	assert.Contains(t, body, "c@example.com")
}

func TestSubmitComplaintValidation(t *testing.T) {
	f := newPortalFixture(t)

	rec, _ := f.serve(t, citizen, http.MethodPost, "/user/complaints", url.Values{"area": {"Sector 5"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "is required")
	assert.Contains(t, rec.Body.String(), `value="Sector 5"`)
	assert.Empty(t, f.complaints.submitted)
}

func TestSubmitComplaintRedirectsWithFlash(t *testing.T) {
	f := newPortalFixture(t)

	rec, sess := f.serve(t, citizen, http.MethodPost, "/user/complaints", url.Values{"area": {"Sector 5"}, "address": {"12 Park Rd"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/user/dashboard", rec.Header().Get("Location"))
	require.Len(t, f.complaints.submitted, 1)
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "success", flash.Kind)
	assert.Contains(t, flash.Message, "WC-20240501-ABC123")

	held, err := f.latch.Held(context.Background(), "sess-1", "complaint.submit")
	require.NoError(t, err)
	assert.False(t, held, "latch released after the action")
}

func TestBusyLatchRejectsDuplicateSubmission(t *testing.T) {
	f := newPortalFixture(t)
	release, err := f.latch.Acquire(context.Background(), "sess-1", "complaint.assign")
	require.NoError(t, err)
	defer release()

	rec, sess := f.serve(t, admin, http.MethodPost, "/admin/complaints/c-1/assign", url.Values{"status": {"assigned"}, "driver_id": {"drv-1"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, f.complaints.changes)
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, shared.ErrBusy.Error(), flash.Message)
}

func TestAssignComplaint(t *testing.T) {
	f := newPortalFixture(t)

	rec, sess := f.serve(t, admin, http.MethodPost, "/admin/complaints/c-1/assign", url.Values{
		"status":        {"assigned"},
		"driver_id":     {" drv-1 "},
		"admin_remarks": {"bring gloves"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))
	require.Len(t, f.complaints.changes, 1)
	assert.Equal(t, complaints.AdminChange{Status: complaints.StatusAssigned, DriverID: "drv-1", Remarks: "bring gloves"}, f.complaints.changes[0])
	assert.Equal(t, "success", sess.PopFlash().Kind)
}

func TestAssignComplaintFailureFlashes(t *testing.T) {
	f := newPortalFixture(t)
	f.complaints.err = complaints.ErrDriverInactive

	_, sess := f.serve(t, admin, http.MethodPost, "/admin/complaints/c-1/assign", url.Values{"status": {"assigned"}, "driver_id": {"drv-2"}})
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "error", flash.Kind)
	assert.Equal(t, "The selected driver is not active", flash.Message)

	_, sess = f.serve(t, admin, http.MethodPost, "/admin/complaints/c-1/assign", url.Values{"status": {"closed"}})
	assert.Equal(t, "That status change is not allowed", sess.PopFlash().Message)
}

func TestAdminDashboardRendersAllSections(t *testing.T) {
	f := newPortalFixture(t)
	driverID := "drv-1"
	assignedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f.complaints.list = []complaints.Complaint{
		{ID: "c-1", ComplaintNumber: "WC-20240501-AAAAAA", Area: "Sector 5", Address: "12 Park Rd", Status: complaints.StatusAssigned, AssignedDriverID: &driverID, AssignedAt: &assignedAt},
		{ID: "c-2", ComplaintNumber: "WC-20240501-BBBBBB", Area: "Old Town", Address: "3 Hill St", Status: complaints.StatusPending},
	}
	f.drivers.list = []drivers.Driver{
		{ID: "drv-1", FullName: "Ravi Kumar", Phone: "9123456789", Status: drivers.StatusActive},
		{ID: "drv-2", FullName: "Asha Rao", Phone: "9876543210", Status: drivers.StatusInactive},
	}
	f.bins.list = []bins.Bin{{ID: "bin-1", Location: "Market Gate", Area: "Sector 5", Capacity: bins.CapacityLarge, Status: bins.StatusActive}}

	rec, _ := f.serve(t, admin, http.MethodGet, "/admin/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "WC-20240501-AAAAAA")
	assert.Contains(t, body, "Ravi Kumar")
	assert.Contains(t, body, "Asha Rao")
	assert.Contains(t, body, "Market Gate")
	assert.Contains(t, body, `action="/admin/complaints/c-2/assign"`)
}

func TestDriverCRUD(t *testing.T) {
	f := newPortalFixture(t)

	_, sess := f.serve(t, admin, http.MethodPost, "/admin/drivers", url.Values{
		"full_name": {"Ravi Kumar"}, "phone": {"9123456789"}, "email": {"ravi@city.gov"}, "password": {"secret1"},
	})
	require.Len(t, f.drivers.created, 1)
	assert.Equal(t, "Driver Ravi Kumar created", sess.PopFlash().Message)

	f.drivers.provErr = errors.New("boom")
	_, sess = f.serve(t, admin, http.MethodPost, "/admin/drivers", url.Values{"full_name": {"X"}})
	assert.Equal(t, genericFailure, sess.PopFlash().Message)

	_, sess = f.serve(t, admin, http.MethodPost, "/admin/drivers/drv-1/delete", url.Values{})
	assert.Equal(t, []string{"drv-1"}, f.drivers.deleted)
	assert.Equal(t, "Driver deleted", sess.PopFlash().Message)
}

func TestCreateBinValidation(t *testing.T) {
	f := newPortalFixture(t)

	_, sess := f.serve(t, admin, http.MethodPost, "/admin/bins", url.Values{"location": {"Market Gate"}})
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "error", flash.Kind)
	assert.Contains(t, flash.Message, "area: is required")
}

func TestDriverDashboard(t *testing.T) {
	f := newPortalFixture(t)

	rec, _ := f.serve(t, driver, http.MethodGet, "/driver/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No driver profile")

	f.drivers.byUser["driver-user"] = drivers.Driver{ID: "drv-1", FullName: "Ravi Kumar"}
	f.complaints.list = []complaints.Complaint{
		{ID: "c-1", ComplaintNumber: "WC-20240501-AAAAAA", Status: complaints.StatusAssigned},
		{ID: "c-2", ComplaintNumber: "WC-20240501-BBBBBB", Status: complaints.StatusCompleted},
	}
	rec, _ = f.serve(t, driver, http.MethodGet, "/driver/dashboard", nil)
	body := rec.Body.String()
	assert.Contains(t, body, "WC-20240501-AAAAAA")
	assert.NotContains(t, body, "WC-20240501-BBBBBB")
	assert.Contains(t, body, `value="in_progress"`)

	rec, _ = f.serve(t, driver, http.MethodGet, "/driver/dashboard?view=history", nil)
	assert.Contains(t, rec.Body.String(), "WC-20240501-BBBBBB")
}

func TestDriverStatusUpdateUsesLinkedDriver(t *testing.T) {
	f := newPortalFixture(t)
	f.drivers.byUser["driver-user"] = drivers.Driver{ID: "drv-1"}

	rec, sess := f.serve(t, driver, http.MethodPost, "/driver/complaints/c-1/status", url.Values{"status": {"in_progress"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/driver/dashboard", rec.Header().Get("Location"))
	assert.Equal(t, []string{"drv-1:c-1:in_progress"}, f.complaints.moves)
	assert.Contains(t, sess.PopFlash().Message, "In Progress")

	f.complaints.err = complaints.ErrNotAssignedDriver
	_, sess = f.serve(t, driver, http.MethodPost, "/driver/complaints/c-9/status", url.Values{"status": {"completed"}})
	assert.Equal(t, "This complaint is not assigned to you", sess.PopFlash().Message)
}
