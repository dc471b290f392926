package complaints

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cleancity/wastetrack/internal/platform/db"
)

// Order selects the timestamp a listing is sorted by, newest first.
type Order int

const (
	OrderCreated Order = iota
	OrderAssigned
)

// ListFilter narrows a complaint listing.
type ListFilter struct {
	UserID          string
	DriverID        string
	Search          string
	ExcludeStatuses []Status
	Order           Order
}

// Repository provides complaint persistence.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Complaint, error)
	Get(ctx context.Context, id string) (Complaint, error)
	Insert(ctx context.Context, c Complaint) (Complaint, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id string) (Complaint, error)
	Save(ctx context.Context, c Complaint) (Complaint, error)
}

// PGRepository stores complaints in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const complaintColumns = `id, complaint_number, user_id, area, locality, landmark, address, description, notes,
status, admin_remarks, assigned_driver_id, created_at, assigned_at, resolved_at, updated_at`

func scanComplaint(row pgx.Row) (Complaint, error) {
	var c Complaint
	err := row.Scan(&c.ID, &c.ComplaintNumber, &c.UserID, &c.Area, &c.Locality, &c.Landmark, &c.Address,
		&c.Description, &c.Notes, &c.Status, &c.AdminRemarks, &c.AssignedDriverID,
		&c.CreatedAt, &c.AssignedAt, &c.ResolvedAt, &c.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Complaint{}, ErrNotFound
		}
		return Complaint{}, err
	}
	return c, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// likeEscaper makes search text match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildListQuery renders the SELECT for filter.
func buildListQuery(filter ListFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.DriverID != "" {
		add("assigned_driver_id = $%d", filter.DriverID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+likeEscaper.Replace(search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(`(complaint_number ILIKE $%d ESCAPE '\' OR area ILIKE $%d ESCAPE '\')`, n, n))
	}
	if len(filter.ExcludeStatuses) > 0 {
		add("NOT (status = ANY($%d))", statusStrings(filter.ExcludeStatuses))
	}

	query := `SELECT ` + complaintColumns + ` FROM complaints`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	switch filter.Order {
	case OrderAssigned:
		query += " ORDER BY assigned_at DESC NULLS LAST, created_at DESC"
	default:
		query += " ORDER BY created_at DESC"
	}
	return query, args
}

// List returns complaints matching filter.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Complaint, error) {
	query, args := buildListQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("complaints: list: %w", err)
	}
	defer rows.Close()
	var out []Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get fetches a complaint by id.
func (r *PGRepository) Get(ctx context.Context, id string) (Complaint, error) {
	return scanComplaint(r.pool.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id))
}

// Insert stores a new complaint.
func (r *PGRepository) Insert(ctx context.Context, c Complaint) (Complaint, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO complaints
(complaint_number, user_id, area, locality, landmark, address, description, notes, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
RETURNING `+complaintColumns,
		c.ComplaintNumber, c.UserID, c.Area, c.Locality, c.Landmark, c.Address, c.Description, c.Notes, string(c.Status), c.CreatedAt)
	created, err := scanComplaint(row)
	if err != nil {
		if db.IsUniqueViolation(err) && db.ConstraintName(err) == "complaints_complaint_number_key" {
			return Complaint{}, ErrDuplicateNumber
		}
		return Complaint{}, writeError("insert", err)
	}
	return created, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id string) (Complaint, error) {
	return scanComplaint(t.tx.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) Save(ctx context.Context, c Complaint) (Complaint, error) {
	row := t.tx.QueryRow(ctx, `UPDATE complaints
SET status = $2, admin_remarks = $3, assigned_driver_id = $4, assigned_at = $5, resolved_at = $6, updated_at = $7
WHERE id = $1
RETURNING `+complaintColumns,
		c.ID, string(c.Status), c.AdminRemarks, c.AssignedDriverID, c.AssignedAt, c.ResolvedAt, c.UpdatedAt)
	saved, err := scanComplaint(row)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Complaint{}, writeError("save", err)
	}
	return saved, err
}

// writeError wraps a failed write; CHECK constraint rejections surface as
// status invariant violations.
func writeError(op string, err error) error {
	if db.IsCheckViolation(err) {
		return fmt.Errorf("%w: %s", errInvariant, db.ConstraintName(err))
	}
	return fmt.Errorf("complaints: %s: %w", op, err)
}

var _ Repository = (*PGRepository)(nil)
