package drivers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cleancity/wastetrack/internal/platform/db"
	"github.com/cleancity/wastetrack/internal/rbac"
)

// Repository provides driver persistence.
type Repository interface {
	List(ctx context.Context) ([]Driver, error)
	Get(ctx context.Context, id string) (Driver, error)
	GetByUserID(ctx context.Context, userID string) (Driver, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Insert(ctx context.Context, d Driver) (Driver, error)
	Update(ctx context.Context, d Driver) (Driver, error)
	Delete(ctx context.Context, id string) (Driver, error)
	GrantRole(ctx context.Context, identityID string, role rbac.Role) error
	RevokeRole(ctx context.Context, identityID string, role rbac.Role) error
}

// PGRepository stores drivers in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepo struct {
	tx    pgx.Tx
	roles *rbac.Store
}

// WithTx wraps callback in repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, roles: rbac.NewStore(tx)})
	})
}

const driverColumns = `id, full_name, phone, email, license_number, vehicle_number, status, user_id, created_at, updated_at`

func scanDriver(row pgx.Row) (Driver, error) {
	var d Driver
	err := row.Scan(&d.ID, &d.FullName, &d.Phone, &d.Email, &d.LicenseNumber, &d.VehicleNumber, &d.Status, &d.UserID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Driver{}, ErrNotFound
		}
		return Driver{}, err
	}
	return d, nil
}

// List returns every driver newest first.
func (r *PGRepository) List(ctx context.Context) ([]Driver, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("drivers: list: %w", err)
	}
	defer rows.Close()
	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Get fetches a driver by id.
func (r *PGRepository) Get(ctx context.Context, id string) (Driver, error) {
	return scanDriver(r.pool.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id))
}

// GetByUserID fetches the driver linked to an identity.
func (r *PGRepository) GetByUserID(ctx context.Context, userID string) (Driver, error) {
	return scanDriver(r.pool.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE user_id = $1`, userID))
}

func (t *txRepo) Insert(ctx context.Context, d Driver) (Driver, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO drivers (full_name, phone, email, license_number, vehicle_number, status, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+driverColumns, d.FullName, d.Phone, d.Email, d.LicenseNumber, d.VehicleNumber, string(d.Status), d.UserID)
	created, err := scanDriver(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Driver{}, ErrDuplicateLogin
		}
		return Driver{}, fmt.Errorf("drivers: insert: %w", err)
	}
	return created, nil
}

func (t *txRepo) Update(ctx context.Context, d Driver) (Driver, error) {
	row := t.tx.QueryRow(ctx, `UPDATE drivers
SET full_name = $2, phone = $3, email = $4, license_number = $5, vehicle_number = $6, status = $7, updated_at = NOW()
WHERE id = $1
RETURNING `+driverColumns, d.ID, d.FullName, d.Phone, d.Email, d.LicenseNumber, d.VehicleNumber, string(d.Status))
	updated, err := scanDriver(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Driver{}, fmt.Errorf("drivers: update: %w", err)
	}
	return updated, err
}

func (t *txRepo) Delete(ctx context.Context, id string) (Driver, error) {
	deleted, err := scanDriver(t.tx.QueryRow(ctx, `DELETE FROM drivers WHERE id = $1 RETURNING `+driverColumns, id))
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Driver{}, ErrHasComplaints
		}
		if errors.Is(err, ErrNotFound) {
			return Driver{}, err
		}
		return Driver{}, fmt.Errorf("drivers: delete: %w", err)
	}
	return deleted, nil
}

func (t *txRepo) GrantRole(ctx context.Context, identityID string, role rbac.Role) error {
	return t.roles.Grant(ctx, identityID, role)
}

func (t *txRepo) RevokeRole(ctx context.Context, identityID string, role rbac.Role) error {
	return t.roles.Revoke(ctx, identityID, role)
}

var _ Repository = (*PGRepository)(nil)
