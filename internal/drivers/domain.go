package drivers

import (
	"errors"
	"strings"
	"time"

	"github.com/cleancity/wastetrack/internal/validation"
)

// ============================================================================
// DRIVER STATUS
// ============================================================================

// Status marks whether a driver can take assignments.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive:
		return true
	default:
		return false
	}
}

// CanTakeAssignments reports whether complaints may be assigned.
func (s Status) CanTakeAssignments() bool {
	return s == StatusActive
}

// ============================================================================
// DRIVER ENTITY
// ============================================================================

// Driver is a collection-vehicle operator with a login identity.
type Driver struct {
	ID            string    `json:"id"`
	FullName      string    `json:"full_name"`
	Phone         string    `json:"phone"`
	Email         *string   `json:"email"`
	LicenseNumber *string   `json:"license_number"`
	VehicleNumber *string   `json:"vehicle_number"`
	Status        Status    `json:"status"`
	UserID        *string   `json:"user_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var (
	ErrNotFound       = errors.New("drivers: driver not found")
	ErrHasComplaints  = errors.New("drivers: driver still has complaints assigned")
	ErrDuplicateLogin = errors.New("drivers: identity already linked to a driver")
)

// Input carries the editable driver fields. Password is only used when
// provisioning a new login.
type Input struct {
	FullName      string
	Phone         string
	Email         string
	Password      string
	LicenseNumber string
	VehicleNumber string
	Status        Status
}

// Normalize trims and validates the input. Provisioning requires email and
// password; updates accept an empty email and ignore the password.
func (in Input) Normalize(provisioning bool) (Input, validation.Errors) {
	out := Input{
		FullName:      strings.TrimSpace(in.FullName),
		Phone:         strings.TrimSpace(in.Phone),
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		Password:      in.Password,
		LicenseNumber: strings.TrimSpace(in.LicenseNumber),
		Status:        in.Status,
	}
	errs := validation.Errors{}
	errs.Check("full_name", validation.Required(out.FullName))
	errs.Check("phone", validation.Phone(out.Phone))
	if provisioning {
		errs.Check("email", validation.Email(out.Email))
		errs.Check("password", validation.Password(out.Password))
	} else {
		errs.Check("email", validation.OptionalEmail(out.Email))
		out.Password = ""
	}
	errs.Check("license_number", validation.LicenseNumber(out.LicenseNumber))
	vehicle, err := validation.VehicleNumber(in.VehicleNumber)
	errs.Check("vehicle_number", err)
	out.VehicleNumber = vehicle
	if out.Status == "" {
		out.Status = StatusActive
	}
	if !out.Status.IsValid() {
		errs.Add("status", "must be one of: active inactive")
	}
	return out, errs
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (in Input) apply(d Driver) Driver {
	d.FullName = in.FullName
	d.Phone = in.Phone
	d.Email = optional(in.Email)
	d.LicenseNumber = optional(in.LicenseNumber)
	d.VehicleNumber = optional(in.VehicleNumber)
	d.Status = in.Status
	return d
}
