package drivers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleancity/wastetrack/internal/auth"
	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/validation"
)

type mockRepository struct {
	drivers   map[string]Driver
	roles     map[string][]rbac.Role
	seq       int
	insertErr error
	grantErr  error
}

func newMockRepository() *mockRepository {
	return &mockRepository{drivers: map[string]Driver{}, roles: map[string][]rbac.Role{}}
}

func (m *mockRepository) List(context.Context) ([]Driver, error) {
	out := make([]Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockRepository) Get(_ context.Context, id string) (Driver, error) {
	d, ok := m.drivers[id]
	if !ok {
		return Driver{}, ErrNotFound
	}
	return d, nil
}

func (m *mockRepository) GetByUserID(_ context.Context, userID string) (Driver, error) {
	for _, d := range m.drivers {
		if d.UserID != nil && *d.UserID == userID {
			return d, nil
		}
	}
	return Driver{}, ErrNotFound
}

// WithTx stages writes on copies and only publishes them when fn succeeds.
func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	staged := &mockRepository{drivers: map[string]Driver{}, roles: map[string][]rbac.Role{}, seq: m.seq, insertErr: m.insertErr, grantErr: m.grantErr}
	for k, v := range m.drivers {
		staged.drivers[k] = v
	}
	for k, v := range m.roles {
		staged.roles[k] = append([]rbac.Role(nil), v...)
	}
	if err := fn(ctx, &mockTxRepo{mock: staged}); err != nil {
		return err
	}
	m.drivers, m.roles, m.seq = staged.drivers, staged.roles, staged.seq
	return nil
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) Insert(_ context.Context, d Driver) (Driver, error) {
	if t.mock.insertErr != nil {
		return Driver{}, t.mock.insertErr
	}
	t.mock.seq++
	d.ID = fmt.Sprintf("drv-%d", t.mock.seq)
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	t.mock.drivers[d.ID] = d
	return d, nil
}

func (t *mockTxRepo) Update(_ context.Context, d Driver) (Driver, error) {
	existing, ok := t.mock.drivers[d.ID]
	if !ok {
		return Driver{}, ErrNotFound
	}
	d.UserID = existing.UserID
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = time.Now()
	t.mock.drivers[d.ID] = d
	return d, nil
}

func (t *mockTxRepo) Delete(_ context.Context, id string) (Driver, error) {
	d, ok := t.mock.drivers[id]
	if !ok {
		return Driver{}, ErrNotFound
	}
	delete(t.mock.drivers, id)
	return d, nil
}

func (t *mockTxRepo) GrantRole(_ context.Context, identityID string, role rbac.Role) error {
	if t.mock.grantErr != nil {
		return t.mock.grantErr
	}
	t.mock.roles[identityID] = append(t.mock.roles[identityID], role)
	return nil
}

func (t *mockTxRepo) RevokeRole(_ context.Context, identityID string, role rbac.Role) error {
	var kept []rbac.Role
	for _, r := range t.mock.roles[identityID] {
		if r != role {
			kept = append(kept, r)
		}
	}
	t.mock.roles[identityID] = kept
	return nil
}

type mockIdentities struct {
	byEmail map[string]string
	deleted []string
}

func (m *mockIdentities) CreateConfirmed(_ context.Context, email, _, _ string) (*auth.Identity, error) {
	if _, ok := m.byEmail[email]; ok {
		return nil, auth.ErrEmailTaken
	}
	id := "idn-" + email
	m.byEmail[email] = id
	return &auth.Identity{ID: id, Email: email, Confirmed: true}, nil
}

func (m *mockIdentities) Delete(_ context.Context, id string) error {
	for email, existing := range m.byEmail {
		if existing == id {
			delete(m.byEmail, email)
		}
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type recordingObserver struct {
	events []rbac.RoleEvent
}

func (r *recordingObserver) RoleChanged(_ context.Context, evt rbac.RoleEvent) {
	r.events = append(r.events, evt)
}

func newTestService() (*Service, *mockRepository, *mockIdentities, *recordingObserver) {
	repo := newMockRepository()
	identities := &mockIdentities{byEmail: map[string]string{}}
	obs := &recordingObserver{}
	svc := NewService(repo, identities, nil, nil)
	svc.Subscribe(obs)
	return svc, repo, identities, obs
}

func validInput() Input {
	return Input{
		FullName:      "Ravi Kumar",
		Phone:         "9123456789",
		Email:         "ravi@example.com",
		Password:      "secret1",
		VehicleNumber: "ka01ab1234",
	}
}

func TestProvision(t *testing.T) {
	ctx := context.Background()

	t.Run("creates driver, identity and role", func(t *testing.T) {
		svc, repo, identities, obs := newTestService()
		d, err := svc.Provision(ctx, "admin-1", validInput())
		require.NoError(t, err)

		require.NotNil(t, d.VehicleNumber)
		assert.Equal(t, "KA01AB1234", *d.VehicleNumber)
		assert.Equal(t, StatusActive, d.Status)
		require.NotNil(t, d.UserID)
		assert.Equal(t, identities.byEmail["ravi@example.com"], *d.UserID)
		assert.Equal(t, []rbac.Role{rbac.RoleDriver}, repo.roles[*d.UserID])
		require.Len(t, obs.events, 1)
		assert.True(t, obs.events[0].Granted)
	})

	t.Run("rejects invalid fields before creating an identity", func(t *testing.T) {
		svc, _, identities, _ := newTestService()
		in := validInput()
		in.Phone = "5123456789"
		in.VehicleNumber = "KA1AB1234"
		_, err := svc.Provision(ctx, "admin-1", in)

		require.ErrorIs(t, err, validation.ErrInvalid)
		errs, ok := validation.AsErrors(err)
		require.True(t, ok)
		assert.Equal(t, validation.ErrPhoneFormat.Error(), errs["phone"])
		assert.Equal(t, validation.ErrVehicleFormat.Error(), errs["vehicle_number"])
		assert.Empty(t, identities.byEmail)
	})

	t.Run("requires email and password", func(t *testing.T) {
		svc, _, _, _ := newTestService()
		in := validInput()
		in.Email, in.Password = "", ""
		_, err := svc.Provision(ctx, "admin-1", in)
		errs, ok := validation.AsErrors(err)
		require.True(t, ok)
		assert.Contains(t, errs, "email")
		assert.Contains(t, errs, "password")
	})

	t.Run("role failure deletes the identity", func(t *testing.T) {
		svc, repo, identities, obs := newTestService()
		repo.grantErr = errors.New("role insert failed")
		_, err := svc.Provision(ctx, "admin-1", validInput())

		require.Error(t, err)
		assert.NotContains(t, identities.byEmail, "ravi@example.com")
		assert.Len(t, identities.deleted, 1)
		assert.Empty(t, repo.drivers)
		assert.Empty(t, obs.events)
	})

	t.Run("driver insert failure deletes the identity", func(t *testing.T) {
		svc, repo, identities, _ := newTestService()
		repo.insertErr = errors.New("insert failed")
		_, err := svc.Provision(ctx, "admin-1", validInput())

		require.Error(t, err)
		assert.NotContains(t, identities.byEmail, "ravi@example.com")
	})

	t.Run("taken email surfaces the identity error", func(t *testing.T) {
		svc, _, identities, _ := newTestService()
		identities.byEmail["ravi@example.com"] = "existing"
		_, err := svc.Provision(ctx, "admin-1", validInput())
		assert.ErrorIs(t, err, auth.ErrEmailTaken)
		assert.Empty(t, identities.deleted)
	})
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, obs := newTestService()
	d, err := svc.Provision(ctx, "admin-1", validInput())
	require.NoError(t, err)

	in := validInput()
	in.Password = ""
	in.Status = StatusInactive
	in.LicenseNumber = "KA0120190012345"
	updated, err := svc.Update(ctx, "admin-1", d.ID, in)
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, updated.Status)
	assert.False(t, updated.Status.CanTakeAssignments())
	require.NotNil(t, updated.LicenseNumber)

	_, err = svc.Update(ctx, "admin-1", "missing", in)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(ctx, "admin-1", d.ID))
	assert.Empty(t, repo.roles[*d.UserID])
	require.Len(t, obs.events, 2)
	assert.False(t, obs.events[1].Granted)

	assert.ErrorIs(t, svc.Delete(ctx, "admin-1", d.ID), ErrNotFound)
}
