package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cleancity/wastetrack/internal/drivers"
)

// DriverLookup loads the assigned driver.
type DriverLookup interface {
	Get(ctx context.Context, id string) (drivers.Driver, error)
}

// ResultRecorder counts delivery outcomes.
type ResultRecorder interface {
	RecordNotification(result string)
}

// Processor turns an Assignment into a delivered Notification.
type Processor struct {
	Drivers DriverLookup
	Sender  Sender
	Logger  *slog.Logger
	Metrics ResultRecorder
	Now     func() time.Time
}

// Deliver loads the driver, builds the notification, logs it and sends it.
func (p Processor) Deliver(ctx context.Context, a Assignment) (Notification, error) {
	if err := a.Validate(); err != nil {
		p.record("invalid")
		return Notification{}, err
	}
	driver, err := p.Drivers.Get(ctx, a.DriverID)
	if err != nil {
		if errors.Is(err, drivers.ErrNotFound) {
			p.record("driver_missing")
			return Notification{}, fmt.Errorf("%w: %s", ErrDriverMissing, a.DriverID)
		}
		p.record("error")
		return Notification{}, err
	}

	n := Notification{
		DriverName:      driver.FullName,
		DriverPhone:     driver.Phone,
		ComplaintNumber: a.ComplaintNumber,
		Area:            a.Area,
		Address:         a.Address,
		AssignedAt:      a.AssignedAt,
	}
	if driver.Email != nil {
		n.DriverEmail = *driver.Email
	}
	if n.AssignedAt.IsZero() {
		n.AssignedAt = p.now()
	}

	p.logger().Info("notify driver assignment",
		slog.String("driver_id", driver.ID),
		slog.String("complaint_number", n.ComplaintNumber),
		slog.Time("assigned_at", n.AssignedAt),
	)
	if p.Sender != nil {
		if err := p.Sender.Send(ctx, n); err != nil {
			p.record("send_failed")
			return n, err
		}
	}
	p.record("sent")
	return n, nil
}

func (p Processor) record(result string) {
	if p.Metrics != nil {
		p.Metrics.RecordNotification(result)
	}
}

func (p Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func (p Processor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
