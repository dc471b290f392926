package complaints

import (
	"strings"
	"time"
)

var driverMoves = map[Status][]Status{
	StatusAssigned:   {StatusInProgress, StatusCompleted},
	StatusInProgress: {StatusCompleted},
}

// CanDriverMove reports whether a driver may move a complaint from one status to another.
func CanDriverMove(from, to Status) bool {
	for _, allowed := range driverMoves[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// DriverTargets lists the statuses a driver may pick next.
func DriverTargets(from Status) []Status {
	return driverMoves[from]
}

// DriverTransition applies a driver's status update.
func DriverTransition(c Complaint, driverID string, to Status, now time.Time) (Complaint, error) {
	if c.AssignedDriverID == nil || *c.AssignedDriverID != driverID {
		return Complaint{}, ErrNotAssignedDriver
	}
	if !CanDriverMove(c.Status, to) {
		return Complaint{}, ErrInvalidTransition
	}
	c.Status = to
	if to == StatusCompleted {
		resolved := now
		c.ResolvedAt = &resolved
	}
	c.UpdatedAt = now
	return c, nil
}

// AdminChange is the admin review form: target status, driver and remarks.
type AdminChange struct {
	Status   Status
	DriverID string
	Remarks  string
}

// IsStandardAdminMove reports the regular review moves out of pending.
func IsStandardAdminMove(from, to Status) bool {
	return from == StatusPending && (to == StatusAssigned || to == StatusRejected)
}

// AdminOverride applies an admin change. Admins may pick any status,
// including moves backwards out of terminal states; the driver and timestamp
// fields are kept consistent with the chosen status. The second result is
// true when the change is not a standard review move.
func AdminOverride(c Complaint, change AdminChange, now time.Time) (Complaint, bool, error) {
	if !change.Status.IsValid() {
		return Complaint{}, false, ErrInvalidTransition
	}
	driverID := strings.TrimSpace(change.DriverID)
	if driverID == "" && change.Status.RequiresDriver() {
		return Complaint{}, false, ErrDriverRequired
	}
	overridden := !IsStandardAdminMove(c.Status, change.Status)

	if driverID == "" {
		c.AssignedDriverID = nil
		c.AssignedAt = nil
	} else if c.AssignedDriverID == nil || *c.AssignedDriverID != driverID || c.AssignedAt == nil {
		id := driverID
		assigned := now
		c.AssignedDriverID = &id
		c.AssignedAt = &assigned
	}

	if change.Status == StatusCompleted {
		if c.ResolvedAt == nil {
			resolved := now
			c.ResolvedAt = &resolved
		}
	} else {
		c.ResolvedAt = nil
	}

	c.Status = change.Status
	c.AdminRemarks = optional(change.Remarks)
	c.UpdatedAt = now
	return c, overridden, nil
}
