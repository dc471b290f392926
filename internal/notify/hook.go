// Package notify tells drivers about new assignments. The web process only
// enqueues; delivery happens in the worker.
package notify

import (
	"context"
	"errors"
	"time"
)

// Assignment is the payload handed to the hook after an admin assigns a driver.
type Assignment struct {
	DriverID        string    `json:"driver_id"`
	ComplaintID     string    `json:"complaint_id"`
	ComplaintNumber string    `json:"complaint_number"`
	Area            string    `json:"area"`
	Address         string    `json:"address"`
	AssignedAt      time.Time `json:"assigned_at,omitempty"`
}

// Hook is invoked after an assignment commits. Failures never roll the
// assignment back.
type Hook interface {
	NotifyAssignment(ctx context.Context, a Assignment) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, a Assignment) error

// NotifyAssignment implements Hook.
func (f HookFunc) NotifyAssignment(ctx context.Context, a Assignment) error {
	return f(ctx, a)
}

// NopHook drops every notification.
type NopHook struct{}

// NotifyAssignment implements Hook.
func (NopHook) NotifyAssignment(context.Context, Assignment) error { return nil }

// ErrDriverMissing is returned when the assigned driver no longer exists.
var ErrDriverMissing = errors.New("notify: driver not found")

// Validate checks the fields needed to deliver an assignment.
func (a Assignment) Validate() error {
	if a.DriverID == "" || a.ComplaintID == "" {
		return errors.New("notify: driver_id and complaint_id required")
	}
	return nil
}
