package drivers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cleancity/wastetrack/internal/auth"
	"github.com/cleancity/wastetrack/internal/rbac"
	"github.com/cleancity/wastetrack/internal/shared"
)

// IdentityProvisioner creates and removes login identities.
type IdentityProvisioner interface {
	CreateConfirmed(ctx context.Context, email, password, fullName string) (*auth.Identity, error)
	Delete(ctx context.Context, id string) error
}

// Service provides business logic for the driver registry.
type Service struct {
	repo       Repository
	identities IdentityProvisioner
	observers  rbac.Observers
	audit      shared.AuditRecorder
	logger     *slog.Logger
}

// NewService constructs a driver service.
func NewService(repo Repository, identities IdentityProvisioner, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, identities: identities, audit: audit, logger: logger}
}

// Subscribe registers an observer for driver role grants and revocations.
func (s *Service) Subscribe(obs rbac.RoleObserver) {
	s.observers = append(s.observers, obs)
}

// List returns every driver newest first.
func (s *Service) List(ctx context.Context) ([]Driver, error) {
	return s.repo.List(ctx)
}

// Get fetches a driver by id.
func (s *Service) Get(ctx context.Context, id string) (Driver, error) {
	return s.repo.Get(ctx, id)
}

// ForIdentity returns the driver record linked to a login identity.
func (s *Service) ForIdentity(ctx context.Context, identityID string) (Driver, error) {
	return s.repo.GetByUserID(ctx, identityID)
}

// Provision creates the login identity, the driver row and the driver role.
// The driver row and role are written in one transaction; when it fails the
// identity is deleted again so the email stays free.
func (s *Service) Provision(ctx context.Context, actorID string, in Input) (Driver, error) {
	norm, errs := in.Normalize(true)
	if !errs.Empty() {
		return Driver{}, errs
	}
	identity, err := s.identities.CreateConfirmed(ctx, norm.Email, norm.Password, norm.FullName)
	if err != nil {
		return Driver{}, fmt.Errorf("drivers: create identity: %w", err)
	}

	var created Driver
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d := norm.apply(Driver{UserID: &identity.ID})
		inserted, err := tx.Insert(ctx, d)
		if err != nil {
			return err
		}
		if err := tx.GrantRole(ctx, identity.ID, rbac.RoleDriver); err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		if delErr := s.identities.Delete(context.WithoutCancel(ctx), identity.ID); delErr != nil {
			s.logger.Error("drivers: compensate identity", slog.String("identity", identity.ID), slog.Any("error", delErr))
		}
		return Driver{}, err
	}

	s.observers.Publish(ctx, rbac.RoleEvent{IdentityID: identity.ID, Role: rbac.RoleDriver, Granted: true})
	s.record(ctx, actorID, "driver.provisioned", created.ID, map[string]any{"identity_id": identity.ID})
	return created, nil
}

// Update re-validates and stores the editable fields.
func (s *Service) Update(ctx context.Context, actorID, id string, in Input) (Driver, error) {
	norm, errs := in.Normalize(false)
	if !errs.Empty() {
		return Driver{}, errs
	}
	var updated Driver
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.Update(ctx, norm.apply(Driver{ID: id}))
		if err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return Driver{}, err
	}
	s.record(ctx, actorID, "driver.updated", updated.ID, map[string]any{"status": string(updated.Status)})
	return updated, nil
}

// Delete removes a driver and the driver role of its identity.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	var deleted Driver
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, err := tx.Delete(ctx, id)
		if err != nil {
			return err
		}
		if d.UserID != nil {
			if err := tx.RevokeRole(ctx, *d.UserID, rbac.RoleDriver); err != nil {
				return err
			}
		}
		deleted = d
		return nil
	})
	if err != nil {
		return err
	}
	if deleted.UserID != nil {
		s.observers.Publish(ctx, rbac.RoleEvent{IdentityID: *deleted.UserID, Role: rbac.RoleDriver, Granted: false})
	}
	s.record(ctx, actorID, "driver.deleted", deleted.ID, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "driver", EntityID: entityID, Meta: meta})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("drivers: audit", slog.String("action", action), slog.Any("error", err))
	}
}
