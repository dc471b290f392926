package rbac

import (
	"context"
	"fmt"

	"github.com/cleancity/wastetrack/internal/platform/db"
)

// RoleSource resolves the roles held by an identity.
type RoleSource interface {
	Roles(ctx context.Context, identityID string) ([]Role, error)
}

// Store reads and writes user_roles. It accepts any db.Querier so grants can
// run inside a caller's transaction.
type Store struct {
	db db.Querier
}

// NewStore constructs a Store.
func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

// Roles lists the roles of an identity ordered by name.
func (s *Store) Roles(ctx context.Context, identityID string) ([]Role, error) {
	rows, err := s.db.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, identityID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		role, err := ParseRole(raw)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Grant assigns role to the identity. Granting an existing role is a no-op.
func (s *Store) Grant(ctx context.Context, identityID string, role Role) error {
	if !role.IsValid() {
		return ErrUnknownRole
	}
	_, err := s.db.Exec(ctx, `INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT (user_id, role) DO NOTHING`, identityID, string(role))
	if err != nil {
		return fmt.Errorf("rbac: grant %s: %w", role, err)
	}
	return nil
}

// Revoke removes role from the identity.
func (s *Store) Revoke(ctx context.Context, identityID string, role Role) error {
	_, err := s.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`, identityID, string(role))
	if err != nil {
		return fmt.Errorf("rbac: revoke %s: %w", role, err)
	}
	return nil
}

var _ RoleSource = (*Store)(nil)
