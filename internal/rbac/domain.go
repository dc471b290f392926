package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role is a privileged capability stored in user_roles. Citizens hold no role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
)

// ErrUnknownRole is returned when a role string is not one of the known roles.
var ErrUnknownRole = errors.New("rbac: unknown role")

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// IsValid reports whether the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDriver:
		return true
	}
	return false
}

// LoginPath is the sign-in page for the portal guarded by this role.
func (r Role) LoginPath() string {
	switch r {
	case RoleAdmin:
		return "/admin/login"
	case RoleDriver:
		return "/driver/login"
	}
	return "/user/login"
}

// DashboardPath is where a signed-in holder of the role lands.
func (r Role) DashboardPath() string {
	switch r {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleDriver:
		return "/driver/dashboard"
	}
	return "/user/dashboard"
}

// Principal is the identity and roles resolved for a single request.
type Principal struct {
	IdentityID string
	Email      string
	Roles      []Role
}

// Has reports whether the principal holds role.
func (p Principal) Has(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authenticated reports whether the principal belongs to a signed-in identity.
func (p Principal) Authenticated() bool {
	return p.IdentityID != ""
}

// RoleEvent describes a grant or revocation.
type RoleEvent struct {
	IdentityID string
	Role       Role
	Granted    bool
}

// RoleObserver is notified after role assignments change.
type RoleObserver interface {
	RoleChanged(ctx context.Context, evt RoleEvent)
}

// Observers fans a RoleEvent out to every subscriber.
type Observers []RoleObserver

// Publish notifies all observers in order.
func (o Observers) Publish(ctx context.Context, evt RoleEvent) {
	for _, obs := range o {
		if obs != nil {
			obs.RoleChanged(ctx, evt)
		}
	}
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal placed by the gate.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
