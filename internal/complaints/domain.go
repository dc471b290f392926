package complaints

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleancity/wastetrack/internal/validation"
)

// ============================================================================
// COMPLAINT STATUS
// ============================================================================

// Status represents the lifecycle of a complaint.
type Status string

const (
	StatusPending    Status = "pending"     // filed by a citizen, waiting for review
	StatusAssigned   Status = "assigned"    // handed to a driver
	StatusInProgress Status = "in_progress" // driver is working on it
	StatusCompleted  Status = "completed"   // resolved, terminal
	StatusRejected   Status = "rejected"    // dismissed by an admin, terminal
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusRejected}

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, raw)
	}
	return s, nil
}

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further driver or standard admin move exists.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// RequiresDriver reports whether the status can only hold with a driver assigned.
func (s Status) RequiresDriver() bool {
	return s == StatusAssigned || s == StatusInProgress || s == StatusCompleted
}

// Actor identifies who drives a transition.
type Actor string

const (
	ActorAdmin   Actor = "admin"
	ActorDriver  Actor = "driver"
	ActorCitizen Actor = "citizen"
)

// ============================================================================
// COMPLAINT ENTITY
// ============================================================================

// Complaint is a citizen-filed waste report.
type Complaint struct {
	ID               string     `json:"id"`
	ComplaintNumber  string     `json:"complaint_number"`
	UserID           string     `json:"user_id"`
	Area             string     `json:"area"`
	Locality         *string    `json:"locality"`
	Landmark         *string    `json:"landmark"`
	Address          string     `json:"address"`
	Description      *string    `json:"description"`
	Notes            *string    `json:"notes"`
	Status           Status     `json:"status"`
	AdminRemarks     *string    `json:"admin_remarks"`
	AssignedDriverID *string    `json:"assigned_driver_id"`
	CreatedAt        time.Time  `json:"created_at"`
	AssignedAt       *time.Time `json:"assigned_at"`
	ResolvedAt       *time.Time `json:"resolved_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

var (
	ErrNotFound          = errors.New("complaints: complaint not found")
	ErrInvalidTransition = errors.New("complaints: invalid status transition")
	ErrNotAssignedDriver = errors.New("complaints: complaint is not assigned to this driver")
	ErrDriverRequired    = errors.New("complaints: a driver is required for this status")
	ErrDriverInactive    = errors.New("complaints: driver is not active")
	ErrDuplicateNumber   = errors.New("complaints: complaint number already exists")
	errInvariant         = errors.New("complaints: status invariant violated")
)

// CheckInvariant verifies the status/driver/timestamp relationship.
func (c Complaint) CheckInvariant() error {
	if c.AssignedDriverID == nil && c.Status != StatusPending && c.Status != StatusRejected {
		return fmt.Errorf("%w: %s without driver", errInvariant, c.Status)
	}
	if c.Status.RequiresDriver() && c.AssignedAt == nil {
		return fmt.Errorf("%w: %s without assigned_at", errInvariant, c.Status)
	}
	if c.Status == StatusCompleted && c.ResolvedAt == nil {
		return fmt.Errorf("%w: completed without resolved_at", errInvariant)
	}
	return nil
}

// IsActionable reports whether a driver still has work to do.
func (c Complaint) IsActionable() bool {
	return c.Status == StatusAssigned || c.Status == StatusInProgress
}

// NewComplaintNumber formats WC-YYYYMMDD-XXXXXX using six upper-case hex
// characters of a random UUID.
func NewComplaintNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "WC-" + now.UTC().Format("20060102") + "-" + suffix
}

// SubmitInput carries the citizen form.
type SubmitInput struct {
	Area        string
	Locality    string
	Landmark    string
	Address     string
	Description string
	Notes       string
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// Validate checks the required fields.
func (in SubmitInput) Validate() validation.Errors {
	errs := validation.Errors{}
	errs.Check("area", validation.Required(in.Area))
	errs.Check("address", validation.Required(in.Address))
	return errs
}

// NewComplaint builds a pending complaint owned by ownerID.
func NewComplaint(ownerID string, in SubmitInput, number string, now time.Time) (Complaint, error) {
	if errs := in.Validate(); !errs.Empty() {
		return Complaint{}, errs
	}
	if ownerID == "" {
		return Complaint{}, errors.New("complaints: owner required")
	}
	return Complaint{
		ComplaintNumber: number,
		UserID:          ownerID,
		Area:            strings.TrimSpace(in.Area),
		Locality:        optional(in.Locality),
		Landmark:        optional(in.Landmark),
		Address:         strings.TrimSpace(in.Address),
		Description:     optional(in.Description),
		Notes:           optional(in.Notes),
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
