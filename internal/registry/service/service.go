// Package service implements the registry's ownership ledger and the
// authorization gate every mutation goes through.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	registrymetrics "deedbook/internal/registry/metrics"
	"deedbook/internal/registry/models"
	"deedbook/internal/registry/store"
	id "deedbook/pkg/domain"
	dErrors "deedbook/pkg/domain-errors"
	audit "deedbook/pkg/platform/audit"
	"deedbook/pkg/platform/sentinel"
	"deedbook/pkg/requestcontext"
)

// MaxBatchSize caps bulk registration.
const MaxBatchSize = 10

// AuditPublisher is the subset of the audit publisher the service needs.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Registry orchestrates the ownership ledger and attribute tables.
//
// Authorization model: the administrator address is captured once at
// construction and compared explicitly on registration paths; every other
// mutation requires the caller to be the property's current owner. Absence
// of a property is treated as "caller is not the owner", not as a distinct
// error, except on the transfer path where NotFound is part of the
// contract.
type Registry struct {
	store   store.Store
	admin   id.Address
	logger  *slog.Logger
	metrics *registrymetrics.Metrics
	audit   AuditPublisher
}

// Option configures the Registry service.
type Option func(*Registry)

// WithLogger sets a logger for audit delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *registrymetrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithAuditPublisher sets the audit event publisher.
func WithAuditPublisher(p AuditPublisher) Option {
	return func(r *Registry) { r.audit = p }
}

// New constructs the registry service.
func New(st store.Store, admin id.Address, opts ...Option) (*Registry, error) {
	if st == nil {
		return nil, fmt.Errorf("registry store is required")
	}
	if admin.IsZero() {
		return nil, fmt.Errorf("administrator address is required")
	}
	r := &Registry{store: st, admin: admin}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// canonical domain errors
func errNotAdmin() error {
	return dErrors.New(dErrors.CodeUnauthorized, "caller is not the administrator")
}

func errNotOwner() error {
	return dErrors.New(dErrors.CodeUnauthorized, "caller is not the property owner")
}

func errPropertyNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "property not found")
}

func errAlreadyTransferred() error {
	return dErrors.New(dErrors.CodeConflict, "property already transferred")
}

// Register mints a new property owned by the administrator. Allocation,
// ownership record and description are one failure-atomic step in the
// store; a partial registration is never observable.
func (r *Registry) Register(ctx context.Context, caller id.Address, description string) (*models.Property, error) {
	start := time.Now()
	if caller != r.admin {
		return nil, errNotAdmin()
	}
	if err := models.ValidateDescription(description); err != nil {
		return nil, err
	}

	p, err := r.store.CreateProperty(ctx, caller, description, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register property")
	}

	r.emit(ctx, audit.Event{
		PropertyID: p.ID,
		Action:     string(audit.EventPropertyRegistered),
		Actor:      caller,
	})
	if r.metrics != nil {
		r.metrics.IncrementRegistered(1)
		r.metrics.ObserveRegister(start)
	}
	return p, nil
}

// BulkRegister registers up to MaxBatchSize descriptions in order. The
// batch is all-or-nothing: descriptions are validated before any id is
// allocated, so one invalid entry commits nothing.
func (r *Registry) BulkRegister(ctx context.Context, caller id.Address, descriptions []string) ([]*models.Property, error) {
	start := time.Now()
	if caller != r.admin {
		return nil, errNotAdmin()
	}
	if len(descriptions) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one description is required")
	}
	if len(descriptions) > MaxBatchSize {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "batch size exceeds %d", MaxBatchSize)
	}
	for _, description := range descriptions {
		if err := models.ValidateDescription(description); err != nil {
			return nil, err
		}
	}

	created, err := r.store.CreateProperties(ctx, caller, descriptions, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register batch")
	}

	for _, p := range created {
		r.emit(ctx, audit.Event{
			PropertyID: p.ID,
			Action:     string(audit.EventPropertyRegistered),
			Actor:      caller,
		})
	}
	if r.metrics != nil {
		r.metrics.IncrementRegistered(len(created))
		r.metrics.ObserveRegister(start)
	}
	return created, nil
}

// AuthorizeOwner reports whether caller currently owns the property.
// Absence of the property reads as false, never as an error.
func (r *Registry) AuthorizeOwner(ctx context.Context, propertyID id.PropertyID, caller id.Address) (bool, error) {
	p, err := r.store.FindProperty(ctx, propertyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property")
	}
	return p.OwnedBy(caller), nil
}

// Transfer hands the property to recipient and permanently sets the
// transfer lock. At most one transfer ever succeeds per property; a second
// attempt fails with a conflict regardless of caller.
//
// The store holds its lock across validation and mutation, so ownership
// and lock state cannot change between the checks and the write.
func (r *Registry) Transfer(ctx context.Context, caller id.Address, propertyID id.PropertyID, recipient id.Address) (*models.Property, error) {
	start := time.Now()
	if recipient.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "recipient address is required")
	}

	p, err := r.store.ExecuteProperty(ctx, propertyID,
		func(rec *models.Property) error {
			if !rec.OwnedBy(caller) {
				return errNotOwner()
			}
			if err := rec.CanTransfer(); err != nil {
				return errAlreadyTransferred()
			}
			return nil
		},
		func(rec *models.Property) {
			rec.ApplyTransfer(recipient)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errPropertyNotFound()
		}
		return nil, wrapStoreErr(err, "failed to transfer property")
	}

	r.emit(ctx, audit.Event{
		PropertyID: p.ID,
		Action:     string(audit.EventPropertyTransferred),
		Actor:      caller,
		Recipient:  recipient,
	})
	if r.metrics != nil {
		r.metrics.IncrementTransferred()
		r.metrics.ObserveTransfer(start)
	}
	return p, nil
}

// Freeze sets the transfer lock without changing the owner: a manual
// opt-out of future transfers. Idempotent for the owner; absence of the
// property reads as non-ownership.
func (r *Registry) Freeze(ctx context.Context, caller id.Address, propertyID id.PropertyID) (*models.Property, error) {
	p, err := r.store.ExecuteProperty(ctx, propertyID,
		func(rec *models.Property) error {
			if !rec.OwnedBy(caller) {
				return errNotOwner()
			}
			return nil
		},
		func(rec *models.Property) {
			rec.ApplyFreeze()
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, errNotOwner()
		}
		return nil, wrapStoreErr(err, "failed to freeze property")
	}

	r.emit(ctx, audit.Event{
		PropertyID: p.ID,
		Action:     string(audit.EventPropertyFrozen),
		Actor:      caller,
	})
	if r.metrics != nil {
		r.metrics.IncrementFrozen()
	}
	return p, nil
}

// ApproveTransfer records candidate on the property's transfer allow-list.
//
// The allow-list is bookkeeping only: the transfer path deliberately does
// not consult it, mirroring the ledger's original behavior. Enforcing it
// would change transfer semantics and is tracked as a possible future
// contract change.
func (r *Registry) ApproveTransfer(ctx context.Context, caller id.Address, propertyID id.PropertyID, candidate id.Address) error {
	if candidate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "candidate address is required")
	}
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	if err := r.store.SetTransferApproval(ctx, propertyID, candidate, true); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record transfer approval")
	}
	r.emit(ctx, audit.Event{
		PropertyID: propertyID,
		Action:     string(audit.EventTransferApproved),
		Actor:      caller,
		Recipient:  candidate,
	})
	return nil
}

// RevokeTransferApproval clears a previously recorded approval.
func (r *Registry) RevokeTransferApproval(ctx context.Context, caller id.Address, propertyID id.PropertyID, candidate id.Address) error {
	if candidate.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "candidate address is required")
	}
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	if err := r.store.SetTransferApproval(ctx, propertyID, candidate, false); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke transfer approval")
	}
	r.emit(ctx, audit.Event{
		PropertyID: propertyID,
		Action:     string(audit.EventTransferDisapproved),
		Actor:      caller,
		Recipient:  candidate,
	})
	return nil
}

// IsTransferApproved reports the recorded allow-list decision; false when
// absent.
func (r *Registry) IsTransferApproved(ctx context.Context, propertyID id.PropertyID, candidate id.Address) (bool, error) {
	approved, err := r.store.TransferApproval(ctx, propertyID, candidate)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read transfer approval")
	}
	return approved, nil
}

// requireOwner is the shared authorization gate for attribute mutation:
// the caller must currently own the property, with absence treated as
// non-ownership.
func (r *Registry) requireOwner(ctx context.Context, propertyID id.PropertyID, caller id.Address) error {
	ok, err := r.AuthorizeOwner(ctx, propertyID, caller)
	if err != nil {
		return err
	}
	if !ok {
		return errNotOwner()
	}
	return nil
}

func (r *Registry) emit(ctx context.Context, event audit.Event) {
	if r.audit == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := r.audit.Emit(ctx, event); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "audit emit failed",
			"action", event.Action,
			"property_id", event.PropertyID,
			"error", err,
		)
	}
}

// wrapStoreErr passes coded domain errors through and wraps raw store
// failures as internal.
func wrapStoreErr(err error, message string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
