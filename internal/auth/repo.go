package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/cleancity/wastetrack/internal/platform/db"
	"github.com/cleancity/wastetrack/internal/shared"
)

// Repository defines persistence operations for identities.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	FindByID(ctx context.Context, id string) (*Identity, error)
	Create(ctx context.Context, identity Identity) (*Identity, error)
	Delete(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db db.Querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(q db.Querier) *PGRepository {
	return &PGRepository{db: q}
}

const identityColumns = `id, email, password_hash, full_name, confirmed, created_at`

func scanIdentity(row interface{ Scan(dest ...any) error }) (*Identity, error) {
	var identity Identity
	if err := row.Scan(&identity.ID, &identity.Email, &identity.PasswordHash, &identity.FullName, &identity.Confirmed, &identity.CreatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &identity, nil
}

// FindByEmail fetches an identity by email, ignoring case.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email))
	return scanIdentity(row)
}

// FindByID fetches an identity by id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

// Create inserts an identity and returns the stored row.
func (r *PGRepository) Create(ctx context.Context, identity Identity) (*Identity, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO identities (email, password_hash, full_name, confirmed)
VALUES ($1, $2, $3, $4)
RETURNING `+identityColumns, strings.ToLower(strings.TrimSpace(identity.Email)), identity.PasswordHash, identity.FullName, identity.Confirmed)
	created, err := scanIdentity(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("auth: create identity: %w", err)
	}
	return created, nil
}

// Delete removes an identity. Role rows cascade.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("auth: delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
