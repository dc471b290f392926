package portal

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/cleancity/wastetrack/internal/complaints"
	"github.com/cleancity/wastetrack/internal/drivers"
	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/view"
)

const driverDashboardPath = "/driver/dashboard"

type driverComplaintRow struct {
	Complaint complaints.Complaint
	Targets   []complaints.Status
}

type driverDashboardData struct {
	Driver    *drivers.Driver
	Rows      []driverComplaintRow
	Stats     complaints.DriverStats
	View      complaints.DriverView
	IsHistory bool
}

func (h *Handler) driverDashboard(w http.ResponseWriter, r *http.Request) {
	principal, _ := rbac.PrincipalFromContext(r.Context())
	viewName := complaints.ParseDriverView(r.URL.Query().Get("view"))
	data := driverDashboardData{View: viewName, IsHistory: viewName == complaints.DriverHistory}

	driver, err := h.drivers.ForIdentity(r.Context(), principal.IdentityID)
	if err != nil {
		if !errors.Is(err, drivers.ErrNotFound) {
			h.serverError(w, "load driver profile", err)
			return
		}
		h.render(w, r, http.StatusOK, "pages/driver_dashboard.html", "My Assignments", data)
		return
	}
	data.Driver = &driver

	var list, history []complaints.Complaint
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		list, err = h.complaints.DriverList(ctx, driver.ID, viewName)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = h.complaints.DriverList(ctx, driver.ID, complaints.DriverHistory)
		return err
	})
	if err := g.Wait(); err != nil {
		h.serverError(w, "load driver dashboard", err)
		return
	}

	for _, c := range list {
		data.Rows = append(data.Rows, driverComplaintRow{Complaint: c, Targets: complaints.DriverTargets(c.Status)})
	}
	data.Stats = complaints.DriverSummary(history)
	h.render(w, r, http.StatusOK, "pages/driver_dashboard.html", "My Assignments", data)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(w, r, "complaint.status", driverDashboardPath, func(ctx context.Context, p rbac.Principal) (string, error) {
		to, err := complaints.ParseStatus(r.PostFormValue("status"))
		if err != nil {
			return "", err
		}
		driver, err := h.drivers.ForIdentity(ctx, p.IdentityID)
		if err != nil {
			return "", err
		}
		updated, err := h.complaints.UpdateStatus(ctx, driver.ID, id, to)
		if err != nil {
			return "", err
		}
		return "Complaint " + updated.ComplaintNumber + " marked " + view.Label(string(updated.Status)), nil
	})
}
