package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cleancity/wastetrack/internal/shared"
)

// AccessDeniedMessage is flashed after a session is signed out for lacking a role.
const AccessDeniedMessage = "Access denied"

// IdentityDirectory resolves the email of a signed-in identity. It returns
// shared.ErrNotFound when the identity no longer exists.
type IdentityDirectory interface {
	IdentityEmail(ctx context.Context, identityID string) (string, error)
}

// DenialRecorder counts gate refusals.
type DenialRecorder interface {
	RecordDenied(role string)
}

// Gate protects route groups by role.
type Gate struct {
	Roles     RoleSource
	Directory IdentityDirectory
	Sessions  *shared.SessionManager
	Logger    *slog.Logger
	Metrics   DenialRecorder
}

// Resolve builds the principal of an identity.
func (g Gate) Resolve(ctx context.Context, identityID string) (Principal, error) {
	email, err := g.Directory.IdentityEmail(ctx, identityID)
	if err != nil {
		return Principal{}, err
	}
	roles, err := g.Roles.Roles(ctx, identityID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{IdentityID: identityID, Email: email, Roles: roles}, nil
}

// Require lets the request through only when the session identity holds role.
// Anonymous visitors are sent to loginPath. An identity lacking the role is
// signed out and sent home with an access denied flash.
func (g Gate) Require(role Role, loginPath string) func(http.Handler) http.Handler {
	return g.guard(loginPath, func(p Principal) bool { return p.Has(role) }, string(role))
}

// RequireIdentity admits any signed-in identity, with or without roles.
func (g Gate) RequireIdentity(loginPath string) func(http.Handler) http.Handler {
	return g.guard(loginPath, func(Principal) bool { return true }, "identity")
}

// Identify attaches the principal of a signed-in visitor to the request
// without enforcing any role. Lookup failures leave the request anonymous.
func (g Gate) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || strings.TrimSpace(sess.User()) == "" {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := g.Resolve(r.Context(), strings.TrimSpace(sess.User()))
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				g.logger().Warn("rbac identify", slog.Any("error", err))
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	})
}

func (g Gate) guard(loginPath string, allowed func(Principal) bool, label string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			identityID := ""
			if sess != nil {
				identityID = strings.TrimSpace(sess.User())
			}
			if identityID == "" {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			principal, err := g.Resolve(r.Context(), identityID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					g.Sessions.Regenerate(sess)
					http.Redirect(w, r, loginPath, http.StatusSeeOther)
					return
				}
				g.logger().Error("rbac resolve principal", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed(principal) {
				g.logger().Warn("rbac access denied", slog.String("identity", identityID), slog.String("required", label), slog.String("path", r.URL.Path))
				if g.Metrics != nil {
					g.Metrics.RecordDenied(label)
				}
				g.Sessions.Regenerate(sess)
				sess.AddFlash(shared.FlashMessage{Kind: "error", Message: AccessDeniedMessage})
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

func (g Gate) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
