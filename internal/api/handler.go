// Package api serves the bearer-authenticated JSON endpoints used by
// operator tooling.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cleancity/wastetrack/internal/auth"
	"github.com/cleancity/wastetrack/internal/drivers"
	"github.com/cleancity/wastetrack/internal/platform/httpx"
	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/shared"
	"github.com/cleancity/wastetrack/internal/validation"
)

const maxBodyBytes = 1 << 20

// Response messages.
const (
	msgNoAuthorization = "No authorization header"
	msgInvalidToken    = "Invalid token"
	msgAdminsOnly      = "Only admins can create drivers"
	msgMissingFields   = "Missing required fields: email, password, full_name, phone"
	msgBadCredentials  = "Invalid email or password"
	msgMalformedBody   = "Invalid request body"
	msgEmailTaken      = "Email is already registered"
)

// Identities authenticates credentials and resolves token subjects.
type Identities interface {
	Authenticate(ctx context.Context, email, password string) (*auth.Identity, error)
	FindByID(ctx context.Context, id string) (*auth.Identity, error)
}

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	Issue(identityID string) (string, error)
	Verify(raw string) (string, error)
}

// DriverProvisioner creates drivers with their login identity.
type DriverProvisioner interface {
	Provision(ctx context.Context, actorID string, in drivers.Input) (drivers.Driver, error)
}

// Handler wires the JSON API.
type Handler struct {
	logger     *slog.Logger
	identities Identities
	tokens     Tokens
	expiresIn  int
	roles      rbac.RoleSource
	drivers    DriverProvisioner
}

// NewHandler constructs the API handler. expiresIn is reported to token
// clients in seconds.
func NewHandler(logger *slog.Logger, identities Identities, tokens Tokens, expiresIn int, roles rbac.RoleSource, provisioner DriverProvisioner) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, identities: identities, tokens: tokens, expiresIn: expiresIn, roles: roles, drivers: provisioner}
}

// MountRoutes registers the API under /api.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(cors)
		r.Post("/auth/token", h.issueToken)
		r.Post("/drivers", h.createDriver)
	})
}

// cors answers preflight requests before routing.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, msgMalformedBody)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		httpx.Error(w, http.StatusBadRequest, "Missing required fields: email, password")
		return
	}
	identity, err := h.identities.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Error(w, http.StatusUnauthorized, msgBadCredentials)
			return
		}
		h.logger.Error("api: authenticate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	token, err := h.tokens.Issue(identity.ID)
	if err != nil {
		h.logger.Error("api: issue token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresIn: h.expiresIn})
}

type createDriverRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	LicenseNumber string `json:"license_number"`
	VehicleNumber string `json:"vehicle_number"`
}

func (req createDriverRequest) complete() bool {
	for _, v := range []string{req.Email, req.Password, req.FullName, req.Phone} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

type createDriverResponse struct {
	Success bool           `json:"success"`
	Driver  drivers.Driver `json:"driver"`
}

func (h *Handler) createDriver(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.bearer(w, r)
	if !ok {
		return
	}
	roles, err := h.roles.Roles(r.Context(), caller.ID)
	if err != nil {
		h.logger.Error("api: load roles", slog.String("identity", caller.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if !(rbac.Principal{IdentityID: caller.ID, Roles: roles}).Has(rbac.RoleAdmin) {
		httpx.RespondError(w, httpx.WithStatus(http.StatusForbidden, msgAdminsOnly, httpx.ErrForbidden))
		return
	}

	var req createDriverRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, msgMalformedBody)
		return
	}
	if !req.complete() {
		httpx.Error(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	driver, err := h.drivers.Provision(r.Context(), caller.ID, drivers.Input{
		FullName:      req.FullName,
		Phone:         req.Phone,
		Email:         req.Email,
		Password:      req.Password,
		LicenseNumber: req.LicenseNumber,
		VehicleNumber: req.VehicleNumber,
	})
	if err != nil {
		h.provisionFailed(w, err)
		return
	}
	h.logger.Info("api: driver created", slog.String("driver", driver.ID), slog.String("actor", caller.ID))
	httpx.JSON(w, http.StatusOK, createDriverResponse{Success: true, Driver: driver})
}

func (h *Handler) provisionFailed(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalid):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		httpx.Error(w, http.StatusBadRequest, msgEmailTaken)
	case errors.Is(err, drivers.ErrDuplicateLogin):
		httpx.Error(w, http.StatusBadRequest, "Identity is already linked to a driver")
	default:
		h.logger.Error("api: provision driver", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// bearer resolves the identity named by the Authorization header. It writes
// the 401 response itself when the header is missing or invalid.
func (h *Handler) bearer(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		httpx.Error(w, http.StatusUnauthorized, msgNoAuthorization)
		return nil, false
	}
	raw := header
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		raw = strings.TrimSpace(header[7:])
	}
	subject, err := h.tokens.Verify(raw)
	if err != nil {
		httpx.Error(w, http.StatusUnauthorized, msgInvalidToken)
		return nil, false
	}
	identity, err := h.identities.FindByID(r.Context(), subject)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Warn("api: resolve token subject", slog.String("subject", subject), slog.Any("error", err))
		}
		httpx.Error(w, http.StatusUnauthorized, msgInvalidToken)
		return nil, false
	}
	return identity, true
}
