// Package portal serves the server-rendered pages of the three portals and
// the public information pages.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cleancity/wastetrack/internal/auth"
	"github.com/cleancity/wastetrack/internal/bins"
	"github.com/cleancity/wastetrack/internal/complaints"
	"github.com/cleancity/wastetrack/internal/drivers"
	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/shared"
	"github.com/cleancity/wastetrack/internal/validation"
	"github.com/cleancity/wastetrack/internal/view"
)

// Complaints is the lifecycle service used by the dashboards.
type Complaints interface {
	Submit(ctx context.Context, ownerID string, in complaints.SubmitInput) (complaints.Complaint, error)
	AdminList(ctx context.Context, search string) ([]complaints.Complaint, error)
	CitizenList(ctx context.Context, ownerID, search string) ([]complaints.Complaint, error)
	DriverList(ctx context.Context, driverID string, view complaints.DriverView) ([]complaints.Complaint, error)
	Assign(ctx context.Context, adminID, id string, change complaints.AdminChange) (complaints.Complaint, error)
	UpdateStatus(ctx context.Context, driverID, id string, to complaints.Status) (complaints.Complaint, error)
}

// Drivers is the driver registry.
type Drivers interface {
	List(ctx context.Context) ([]drivers.Driver, error)
	ForIdentity(ctx context.Context, identityID string) (drivers.Driver, error)
	Provision(ctx context.Context, actorID string, in drivers.Input) (drivers.Driver, error)
	Update(ctx context.Context, actorID, id string, in drivers.Input) (drivers.Driver, error)
	Delete(ctx context.Context, actorID, id string) error
}

// Bins is the bin registry.
type Bins interface {
	List(ctx context.Context) ([]bins.Bin, error)
	Create(ctx context.Context, in bins.Input) (bins.Bin, error)
	Update(ctx context.Context, id string, in bins.Input) (bins.Bin, error)
	Delete(ctx context.Context, id string) error
}

// Params groups the handler dependencies.
type Params struct {
	Logger     *slog.Logger
	Templates  *view.Engine
	CSRF       *shared.CSRFManager
	Latch      *shared.BusyLatch
	Complaints Complaints
	Drivers    Drivers
	Bins       Bins
}

// Handler serves the portal pages.
type Handler struct {
	logger     *slog.Logger
	templates  *view.Engine
	csrf       *shared.CSRFManager
	latch      *shared.BusyLatch
	complaints Complaints
	drivers    Drivers
	bins       Bins
}

// NewHandler constructs a Handler.
func NewHandler(p Params) *Handler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		templates:  p.Templates,
		csrf:       p.CSRF,
		latch:      p.Latch,
		complaints: p.Complaints,
		drivers:    p.Drivers,
		bins:       p.Bins,
	}
}

// MountPublic registers the information pages.
func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/", h.page("pages/home.html", "Home"))
	r.Get("/about", h.page("pages/about.html", "About"))
	r.Get("/faqs", h.page("pages/faqs.html", "FAQs"))
}

// MountCitizen registers citizen routes. The caller applies the gate.
func (h *Handler) MountCitizen(r chi.Router) {
	r.Get("/user/dashboard", h.citizenDashboard)
	r.Post("/user/complaints", h.submitComplaint)
}

// MountAdmin registers admin routes. The caller applies the gate.
func (h *Handler) MountAdmin(r chi.Router) {
	r.Get("/admin/dashboard", h.adminDashboard)
	r.Post("/admin/complaints/{id}/assign", h.assignComplaint)
	r.Post("/admin/drivers", h.createDriver)
	r.Post("/admin/drivers/{id}", h.updateDriver)
	r.Post("/admin/drivers/{id}/delete", h.deleteDriver)
	r.Post("/admin/bins", h.createBin)
	r.Post("/admin/bins/{id}", h.updateBin)
	r.Post("/admin/bins/{id}/delete", h.deleteBin)
}

// MountDriver registers driver routes. The caller applies the gate.
func (h *Handler) MountDriver(r chi.Router) {
	r.Get("/driver/dashboard", h.driverDashboard)
	r.Post("/driver/complaints/{id}/status", h.updateStatus)
}

func (h *Handler) page(tmpl, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, http.StatusOK, tmpl, title, nil)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, tmpl, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	principal, _ := rbac.PrincipalFromContext(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := h.templates.Render(w, tmpl, view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Principal:   principal,
		Data:        data,
	})
	if err != nil {
		h.logger.Error("render portal page", slog.String("template", tmpl), slog.Any("error", err))
	}
}

func (h *Handler) serverError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// mutate runs fn under the busy latch of action and answers with a flash and
// a 303 to redirect.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, action, redirect string, fn func(ctx context.Context, p rbac.Principal) (string, error)) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Could not read the form"})
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	release, err := h.latch.Acquire(r.Context(), sess.ID, action)
	if err != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: h.failureMessage(action, err)})
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	defer release()

	principal, _ := rbac.PrincipalFromContext(r.Context())
	success, err := fn(r.Context(), principal)
	if err != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: h.failureMessage(action, err)})
	} else {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: success})
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

const genericFailure = "Something went wrong, please try again"

func (h *Handler) failureMessage(action string, err error) string {
	if fieldErrs, ok := validation.AsErrors(err); ok {
		return "Please correct the form: " + fieldErrs.Error()
	}
	switch {
	case errors.Is(err, shared.ErrBusy):
		return shared.ErrBusy.Error()
	case errors.Is(err, complaints.ErrDriverInactive):
		return "The selected driver is not active"
	case errors.Is(err, complaints.ErrDriverRequired):
		return "Select a driver for this status"
	case errors.Is(err, complaints.ErrInvalidTransition):
		return "That status change is not allowed"
	case errors.Is(err, complaints.ErrNotAssignedDriver):
		return "This complaint is not assigned to you"
	case errors.Is(err, complaints.ErrNotFound), errors.Is(err, drivers.ErrNotFound), errors.Is(err, bins.ErrNotFound):
		return "Record not found"
	case errors.Is(err, drivers.ErrHasComplaints):
		return "The driver still has complaints assigned"
	case errors.Is(err, drivers.ErrDuplicateLogin):
		return "That login is already linked to a driver"
	case errors.Is(err, auth.ErrEmailTaken):
		return "Email is already registered"
	}
	h.logger.Error("portal action failed", slog.String("action", action), slog.Any("error", err))
	return genericFailure
}
