package complaints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cleancity/wastetrack/internal/drivers"
	"github.com/cleancity/wastetrack/internal/notify"
	"github.com/cleancity/wastetrack/internal/shared"
)

const submitAttempts = 3

// DriverDirectory resolves drivers for assignment checks.
type DriverDirectory interface {
	Get(ctx context.Context, id string) (drivers.Driver, error)
}

// Recorder receives lifecycle metrics.
type Recorder interface {
	RecordTransition(from, to, actor string)
	RecordHookFailure()
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(string, string, string) {}
func (nopRecorder) RecordHookFailure()                      {}

// Service runs the complaint lifecycle.
type Service struct {
	repo    Repository
	drivers DriverDirectory
	hook    notify.Hook
	audit   shared.AuditRecorder
	metrics Recorder
	logger  *slog.Logger
	now     func() time.Time
	number  func(time.Time) string
}

// NewService constructs the lifecycle service.
func NewService(repo Repository, directory DriverDirectory, hook notify.Hook, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if hook == nil {
		hook = notify.NopHook{}
	}
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		drivers: directory,
		hook:    hook,
		audit:   audit,
		metrics: nopRecorder{},
		logger:  logger,
		now:     time.Now,
		number:  NewComplaintNumber,
	}
}

// WithMetrics sets the transition and hook failure recorder.
func (s *Service) WithMetrics(rec Recorder) *Service {
	if rec != nil {
		s.metrics = rec
	}
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Submit files a new pending complaint for ownerID.
func (s *Service) Submit(ctx context.Context, ownerID string, in SubmitInput) (Complaint, error) {
	if errs := in.Validate(); !errs.Empty() {
		return Complaint{}, errs
	}
	var lastErr error
	for attempt := 0; attempt < submitAttempts; attempt++ {
		now := s.now().UTC()
		c, err := NewComplaint(ownerID, in, s.number(now), now)
		if err != nil {
			return Complaint{}, err
		}
		created, err := s.repo.Insert(ctx, c)
		if err == nil {
			s.metrics.RecordTransition("", string(StatusPending), string(ActorCitizen))
			return created, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return Complaint{}, err
		}
		lastErr = err
	}
	return Complaint{}, lastErr
}

// Get fetches a complaint by id.
func (s *Service) Get(ctx context.Context, id string) (Complaint, error) {
	return s.repo.Get(ctx, id)
}

// AdminList returns every complaint newest first, optionally filtered by
// complaint number or area.
func (s *Service) AdminList(ctx context.Context, search string) ([]Complaint, error) {
	return s.repo.List(ctx, ListFilter{Search: search, Order: OrderCreated})
}

// CitizenList returns the complaints filed by ownerID.
func (s *Service) CitizenList(ctx context.Context, ownerID, search string) ([]Complaint, error) {
	if ownerID == "" {
		return nil, nil
	}
	return s.repo.List(ctx, ListFilter{UserID: ownerID, Search: search, Order: OrderCreated})
}

// DriverView selects the driver dashboard listing.
type DriverView string

const (
	DriverActionable DriverView = "actionable"
	DriverHistory    DriverView = "history"
)

// ParseDriverView defaults unknown values to the actionable view.
func ParseDriverView(raw string) DriverView {
	if DriverView(raw) == DriverHistory {
		return DriverHistory
	}
	return DriverActionable
}

// DriverList returns complaints assigned to driverID, most recently assigned
// first. The actionable view hides completed complaints.
func (s *Service) DriverList(ctx context.Context, driverID string, view DriverView) ([]Complaint, error) {
	if driverID == "" {
		return nil, nil
	}
	filter := ListFilter{DriverID: driverID, Order: OrderAssigned}
	if view != DriverHistory {
		filter.ExcludeStatuses = []Status{StatusCompleted}
	}
	return s.repo.List(ctx, filter)
}

// Assign applies an admin review or override. When the resulting status is
// assigned the notification hook fires after the write commits.
func (s *Service) Assign(ctx context.Context, adminID, id string, change AdminChange) (Complaint, error) {
	if change.Status.RequiresDriver() && change.DriverID != "" {
		d, err := s.drivers.Get(ctx, change.DriverID)
		if err != nil {
			if errors.Is(err, drivers.ErrNotFound) {
				return Complaint{}, fmt.Errorf("%w: driver %s not found", ErrDriverInactive, change.DriverID)
			}
			return Complaint{}, err
		}
		if !d.Status.CanTakeAssignments() {
			return Complaint{}, ErrDriverInactive
		}
	}

	var (
		before     Complaint
		saved      Complaint
		overridden bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, over, err := AdminOverride(current, change, s.now().UTC())
		if err != nil {
			return err
		}
		if err := next.CheckInvariant(); err != nil {
			return err
		}
		out, err := tx.Save(ctx, next)
		if err != nil {
			return err
		}
		before, saved, overridden = current, out, over
		return nil
	})
	if err != nil {
		return Complaint{}, err
	}

	s.metrics.RecordTransition(string(before.Status), string(saved.Status), string(ActorAdmin))
	meta := map[string]any{"from": string(before.Status), "to": string(saved.Status)}
	if saved.AssignedDriverID != nil {
		meta["driver_id"] = *saved.AssignedDriverID
	}
	action := "complaint.reviewed"
	if overridden {
		action = "complaint.overridden"
	}
	s.record(ctx, adminID, action, saved.ID, meta)

	if saved.Status == StatusAssigned {
		s.notify(ctx, saved)
	}
	return saved, nil
}

// UpdateStatus applies a driver transition on a complaint assigned to driverID.
func (s *Service) UpdateStatus(ctx context.Context, driverID, id string, to Status) (Complaint, error) {
	var (
		from  Status
		saved Complaint
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := DriverTransition(current, driverID, to, s.now().UTC())
		if err != nil {
			return err
		}
		if err := next.CheckInvariant(); err != nil {
			return err
		}
		out, err := tx.Save(ctx, next)
		if err != nil {
			return err
		}
		from, saved = current.Status, out
		return nil
	})
	if err != nil {
		return Complaint{}, err
	}
	s.metrics.RecordTransition(string(from), string(saved.Status), string(ActorDriver))
	s.record(ctx, driverID, "complaint.status_updated", saved.ID, map[string]any{"from": string(from), "to": string(saved.Status)})
	return saved, nil
}

func (s *Service) notify(ctx context.Context, c Complaint) {
	a := notify.Assignment{
		DriverID:        *c.AssignedDriverID,
		ComplaintID:     c.ID,
		ComplaintNumber: c.ComplaintNumber,
		Area:            c.Area,
		Address:         c.Address,
	}
	if c.AssignedAt != nil {
		a.AssignedAt = *c.AssignedAt
	}
	if err := s.hook.NotifyAssignment(context.WithoutCancel(ctx), a); err != nil {
		s.metrics.RecordHookFailure()
		s.logger.Error("complaints: notify assignment",
			slog.String("complaint", c.ID),
			slog.String("driver", a.DriverID),
			slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "complaint", EntityID: entityID, Meta: meta})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("complaints: audit", slog.String("action", action), slog.Any("error", err))
	}
}
