package portal

import (
	"net/http"
	"strings"

	"github.com/cleancity/wastetrack/internal/complaints"
	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/shared"
	"github.com/cleancity/wastetrack/internal/validation"
)

type citizenDashboardData struct {
	Complaints []complaints.Complaint
	Stats      complaints.CitizenStats
	Search     string
	Form       complaints.SubmitInput
	Errors     validation.Errors
}

func (h *Handler) citizenDashboard(w http.ResponseWriter, r *http.Request) {
	principal, _ := rbac.PrincipalFromContext(r.Context())
	search := strings.TrimSpace(r.URL.Query().Get("q"))
	data, err := h.citizenData(r, principal, search)
	if err != nil {
		h.serverError(w, "load citizen dashboard", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/user_dashboard.html", "My Complaints", data)
}

func (h *Handler) citizenData(r *http.Request, principal rbac.Principal, search string) (citizenDashboardData, error) {
	list, err := h.complaints.CitizenList(r.Context(), principal.IdentityID, search)
	if err != nil {
		return citizenDashboardData{}, err
	}
	all := list
	if search != "" {
		if all, err = h.complaints.CitizenList(r.Context(), principal.IdentityID, ""); err != nil {
			return citizenDashboardData{}, err
		}
	}
	return citizenDashboardData{Complaints: list, Stats: complaints.CitizenSummary(all), Search: search}, nil
}

func (h *Handler) submitComplaint(w http.ResponseWriter, r *http.Request) {
	const redirect = "/user/dashboard"
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	principal, _ := rbac.PrincipalFromContext(r.Context())
	in := complaints.SubmitInput{
		Area:        r.PostFormValue("area"),
		Locality:    r.PostFormValue("locality"),
		Landmark:    r.PostFormValue("landmark"),
		Address:     r.PostFormValue("address"),
		Description: r.PostFormValue("description"),
		Notes:       r.PostFormValue("notes"),
	}
	if errs := in.Validate(); !errs.Empty() {
		h.rerenderCitizen(w, r, principal, in, errs)
		return
	}

	release, err := h.latch.Acquire(r.Context(), sess.ID, "complaint.submit")
	if err != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: h.failureMessage("complaint.submit", err)})
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	defer release()

	created, err := h.complaints.Submit(r.Context(), principal.IdentityID, in)
	if err != nil {
		if errs, ok := validation.AsErrors(err); ok {
			h.rerenderCitizen(w, r, principal, in, errs)
			return
		}
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: h.failureMessage("complaint.submit", err)})
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Complaint " + created.ComplaintNumber + " submitted"})
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (h *Handler) rerenderCitizen(w http.ResponseWriter, r *http.Request, principal rbac.Principal, in complaints.SubmitInput, errs validation.Errors) {
	data, err := h.citizenData(r, principal, "")
	if err != nil {
		h.serverError(w, "load citizen dashboard", err)
		return
	}
	data.Form = in
	data.Errors = errs
	h.render(w, r, http.StatusBadRequest, "pages/user_dashboard.html", "My Complaints", data)
}
