package portal

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/cleancity/wastetrack/internal/bins"
	"github.com/cleancity/wastetrack/internal/complaints"
	"github.com/cleancity/wastetrack/internal/drivers"
	"github.com/cleancity/wastetrack/internal/rbac"
)

const adminDashboardPath = "/admin/dashboard"

type adminComplaintRow struct {
	Complaint  complaints.Complaint
	DriverName string
}

type statusCard struct {
	Status complaints.Status
	Count  int
}

type adminDashboardData struct {
	Rows          []adminComplaintRow
	Cards         []statusCard
	Total         int
	Statuses      []complaints.Status
	Search        string
	Drivers       []drivers.Driver
	ActiveDrivers []drivers.Driver
	Bins          []bins.Bin
	Capacities    []bins.Capacity
}

func (h *Handler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		list, all  []complaints.Complaint
		driverList []drivers.Driver
		binList    []bins.Bin
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		list, err = h.complaints.AdminList(ctx, search)
		return err
	})
	if search != "" {
		g.Go(func() error {
			var err error
			all, err = h.complaints.AdminList(ctx, "")
			return err
		})
	}
	g.Go(func() error {
		var err error
		driverList, err = h.drivers.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		binList, err = h.bins.List(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.serverError(w, "load admin dashboard", err)
		return
	}
	if search == "" {
		all = list
	}

	names := make(map[string]string, len(driverList))
	var active []drivers.Driver
	for _, d := range driverList {
		names[d.ID] = d.FullName
		if d.Status.CanTakeAssignments() {
			active = append(active, d)
		}
	}
	rows := make([]adminComplaintRow, 0, len(list))
	for _, c := range list {
		row := adminComplaintRow{Complaint: c}
		if c.AssignedDriverID != nil {
			row.DriverName = names[*c.AssignedDriverID]
		}
		rows = append(rows, row)
	}
	counts := complaints.Tally(all)
	cards := make([]statusCard, 0, len(complaints.Statuses))
	for _, s := range complaints.Statuses {
		cards = append(cards, statusCard{Status: s, Count: counts[s]})
	}
	h.render(w, r, http.StatusOK, "pages/admin_dashboard.html", "Admin Dashboard", adminDashboardData{
		Rows:          rows,
		Cards:         cards,
		Total:         counts.Total(),
		Statuses:      complaints.Statuses,
		Search:        search,
		Drivers:       driverList,
		ActiveDrivers: active,
		Bins:          binList,
		Capacities:    []bins.Capacity{bins.CapacitySmall, bins.CapacityMedium, bins.CapacityLarge},
	})
}

func (h *Handler) assignComplaint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(w, r, "complaint.assign", adminDashboardPath, func(ctx context.Context, p rbac.Principal) (string, error) {
		status, err := complaints.ParseStatus(r.PostFormValue("status"))
		if err != nil {
			return "", err
		}
		updated, err := h.complaints.Assign(ctx, p.IdentityID, id, complaints.AdminChange{
			Status:   status,
			DriverID: strings.TrimSpace(r.PostFormValue("driver_id")),
			Remarks:  r.PostFormValue("admin_remarks"),
		})
		if err != nil {
			return "", err
		}
		return "Complaint " + updated.ComplaintNumber + " updated", nil
	})
}

func driverInput(r *http.Request) drivers.Input {
	return drivers.Input{
		FullName:      r.PostFormValue("full_name"),
		Phone:         r.PostFormValue("phone"),
		Email:         r.PostFormValue("email"),
		Password:      r.PostFormValue("password"),
		LicenseNumber: r.PostFormValue("license_number"),
		VehicleNumber: r.PostFormValue("vehicle_number"),
		Status:        drivers.Status(strings.TrimSpace(r.PostFormValue("status"))),
	}
}

func (h *Handler) createDriver(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "driver.create", adminDashboardPath, func(ctx context.Context, p rbac.Principal) (string, error) {
		d, err := h.drivers.Provision(ctx, p.IdentityID, driverInput(r))
		if err != nil {
			return "", err
		}
		return "Driver " + d.FullName + " created", nil
	})
}

func (h *Handler) updateDriver(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(w, r, "driver.update", adminDashboardPath, func(ctx context.Context, p rbac.Principal) (string, error) {
		d, err := h.drivers.Update(ctx, p.IdentityID, id, driverInput(r))
		if err != nil {
			return "", err
		}
		return "Driver " + d.FullName + " updated", nil
	})
}

func (h *Handler) deleteDriver(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(w, r, "driver.delete", adminDashboardPath, func(ctx context.Context, p rbac.Principal) (string, error) {
		if err := h.drivers.Delete(ctx, p.IdentityID, id); err != nil {
			return "", err
		}
		return "Driver deleted", nil
	})
}

func binInput(r *http.Request) bins.Input {
	return bins.Input{
		Location: r.PostFormValue("location"),
		Area:     r.PostFormValue("area"),
		Locality: r.PostFormValue("locality"),
		Capacity: bins.Capacity(r.PostFormValue("capacity")),
		Status:   bins.Status(r.PostFormValue("status")),
	}
}

func (h *Handler) createBin(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "bin.create", adminDashboardPath, func(ctx context.Context, _ rbac.Principal) (string, error) {
		b, err := h.bins.Create(ctx, binInput(r))
		if err != nil {
			return "", err
		}
		return "Bin at " + b.Location + " added", nil
	})
}

func (h *Handler) updateBin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(w, r, "bin.update", adminDashboardPath, func(ctx context.Context, _ rbac.Principal) (string, error) {
		b, err := h.bins.Update(ctx, id, binInput(r))
		if err != nil {
			return "", err
		}
		return "Bin at " + b.Location + " updated", nil
	})
}

func (h *Handler) deleteBin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.mutate(w, r, "bin.delete", adminDashboardPath, func(ctx context.Context, _ rbac.Principal) (string, error) {
		if err := h.bins.Delete(ctx, id); err != nil {
			return "", err
		}
		return "Bin deleted", nil
	})
}
