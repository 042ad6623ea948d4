package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"deedbook/internal/registry/models"
	id "deedbook/pkg/domain"
	dErrors "deedbook/pkg/domain-errors"
	audit "deedbook/pkg/platform/audit"
	"deedbook/pkg/platform/sentinel"
)

// Attribute setters share one contract: the caller must currently own the
// property (absence reads as non-ownership), textual fields must be
// non-empty, and each call is its own atomic unit. There is no cross-call
// transaction; partial application across separate calls is expected.

func (r *Registry) SetCategory(ctx context.Context, caller id.Address, propertyID id.PropertyID, category string) error {
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	if err := models.ValidateText("category", category); err != nil {
		return err
	}
	return r.updateAttribute(ctx, caller, propertyID, "category", func(a *models.Attributes) {
		a.Category = &category
	})
}

func (r *Registry) SetLocation(ctx context.Context, caller id.Address, propertyID id.PropertyID, location string) error {
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	if err := models.ValidateText("location", location); err != nil {
		return err
	}
	return r.updateAttribute(ctx, caller, propertyID, "location", func(a *models.Attributes) {
		a.Location = &location
	})
}

func (r *Registry) SetValue(ctx context.Context, caller id.Address, propertyID id.PropertyID, value uint64) error {
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	return r.updateAttribute(ctx, caller, propertyID, "value", func(a *models.Attributes) {
		a.Value = &value
	})
}

func (r *Registry) SetTax(ctx context.Context, caller id.Address, propertyID id.PropertyID, amount uint64) error {
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	return r.updateAttribute(ctx, caller, propertyID, "tax_amount", func(a *models.Attributes) {
		a.TaxAmount = &amount
	})
}

func (r *Registry) SetInsurance(ctx context.Context, caller id.Address, propertyID id.PropertyID, insured bool, provider string) error {
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	if err := models.ValidateText("insurance provider", provider); err != nil {
		return err
	}
	return r.updateAttribute(ctx, caller, propertyID, "insurance", func(a *models.Attributes) {
		a.Insurance = &models.Insurance{Insured: insured, Provider: provider}
	})
}

func (r *Registry) SetOccupancy(ctx context.Context, caller id.Address, propertyID id.PropertyID, occupied bool) error {
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	return r.updateAttribute(ctx, caller, propertyID, "occupied", func(a *models.Attributes) {
		a.Occupied = &occupied
	})
}

func (r *Registry) SetZoning(ctx context.Context, caller id.Address, propertyID id.PropertyID, zoning string) error {
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	if err := models.ValidateText("zoning", zoning); err != nil {
		return err
	}
	return r.updateAttribute(ctx, caller, propertyID, "zoning", func(a *models.Attributes) {
		a.Zoning = &zoning
	})
}

func (r *Registry) SetConstructionYear(ctx context.Context, caller id.Address, propertyID id.PropertyID, year uint16) error {
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	return r.updateAttribute(ctx, caller, propertyID, "construction_year", func(a *models.Attributes) {
		a.ConstructionYear = &year
	})
}

// SetListed flips the listing flag; List/Delist at the HTTP surface both
// land here.
func (r *Registry) SetListed(ctx context.Context, caller id.Address, propertyID id.PropertyID, listed bool) error {
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	return r.updateAttribute(ctx, caller, propertyID, "listed", func(a *models.Attributes) {
		a.Listed = &listed
	})
}

// AppendMaintenance upserts a maintenance log entry keyed by its sequence
// number. Entries are never deleted.
func (r *Registry) AppendMaintenance(ctx context.Context, caller id.Address, propertyID id.PropertyID, rec models.MaintenanceRecord) error {
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := r.store.UpsertMaintenance(ctx, propertyID, rec); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append maintenance entry")
	}
	r.emit(ctx, audit.Event{
		PropertyID: propertyID,
		Action:     string(audit.EventAttributeUpdated),
		Actor:      caller,
		Detail:     "maintenance",
	})
	return nil
}

// AppendAppraisal upserts an appraisal log entry keyed by its timestamp.
func (r *Registry) AppendAppraisal(ctx context.Context, caller id.Address, propertyID id.PropertyID, rec models.Appraisal) error {
	if err := r.requireOwner(ctx, propertyID, caller); err != nil {
		return err
	}
	if err := r.store.UpsertAppraisal(ctx, propertyID, rec); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append appraisal")
	}
	r.emit(ctx, audit.Event{
		PropertyID: propertyID,
		Action:     string(audit.EventAttributeUpdated),
		Actor:      caller,
		Detail:     "appraisal",
	})
	return nil
}

func (r *Registry) updateAttribute(ctx context.Context, caller id.Address, propertyID id.PropertyID, name string, mutate func(*models.Attributes)) error {
	if err := r.store.UpdateAttributes(ctx, propertyID, mutate); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update "+name)
	}
	r.emit(ctx, audit.Event{
		PropertyID: propertyID,
		Action:     string(audit.EventAttributeUpdated),
		Actor:      caller,
		Detail:     name,
	})
	return nil
}

// ---------------------------------------------------------------------------
// Read side. Getters follow the ledger's no-throw convention: a missing
// property or unset attribute reads as absent, never as an error. The one
// exception is Property, which backs the HTTP resource and reports
// not_found for unregistered ids.
// ---------------------------------------------------------------------------

// Property returns the ledger record for the id.
func (r *Registry) Property(ctx context.Context, propertyID id.PropertyID) (*models.Property, error) {
	p, err := r.store.FindProperty(ctx, propertyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, errPropertyNotFound()
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property")
	}
	return p, nil
}

// Attributes returns the property's attribute record; all fields nil when
// nothing has been set or the property does not exist.
func (r *Registry) Attributes(ctx context.Context, propertyID id.PropertyID) (*models.Attributes, error) {
	attrs, err := r.store.Attributes(ctx, propertyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attributes")
	}
	return attrs, nil
}

// MaintenanceLog returns maintenance entries ordered by sequence number.
func (r *Registry) MaintenanceLog(ctx context.Context, propertyID id.PropertyID) ([]models.MaintenanceRecord, error) {
	log, err := r.store.MaintenanceLog(ctx, propertyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load maintenance log")
	}
	return log, nil
}

// Appraisals returns appraisal entries ordered by timestamp.
func (r *Registry) Appraisals(ctx context.Context, propertyID id.PropertyID) ([]models.Appraisal, error) {
	log, err := r.store.Appraisals(ctx, propertyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load appraisals")
	}
	return log, nil
}

// Exists is the canonical existence predicate: true iff the id has an
// ownership record.
func (r *Registry) Exists(ctx context.Context, propertyID id.PropertyID) (bool, error) {
	_, err := r.store.FindProperty(ctx, propertyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property")
	}
	return true, nil
}

// IsTransferred reports the one-shot transfer lock; false for unregistered
// ids.
func (r *Registry) IsTransferred(ctx context.Context, propertyID id.PropertyID) (bool, error) {
	p, err := r.store.FindProperty(ctx, propertyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property")
	}
	return p.Transferred, nil
}

// CanTransfer reports whether a transfer could still succeed: the property
// exists and its lock is not set.
func (r *Registry) CanTransfer(ctx context.Context, propertyID id.PropertyID) (bool, error) {
	p, err := r.store.FindProperty(ctx, propertyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property")
	}
	return !p.Transferred, nil
}

// LastID returns the highest assigned id; 0 before any registration.
func (r *Registry) LastID(ctx context.Context) (id.PropertyID, error) {
	last, err := r.store.LastID(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read id counter")
	}
	return last, nil
}

// NextID returns the id the next registration will receive.
func (r *Registry) NextID(ctx context.Context) (id.PropertyID, error) {
	last, err := r.LastID(ctx)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// Count returns the number of registered properties. Ids are dense and
// never retired, so the count equals the last assigned id.
func (r *Registry) Count(ctx context.Context) (uint64, error) {
	last, err := r.LastID(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(last), nil
}

// IsValidRange reports whether [lo, hi] lies within the assigned id space.
func (r *Registry) IsValidRange(ctx context.Context, lo, hi id.PropertyID) (bool, error) {
	last, err := r.LastID(ctx)
	if err != nil {
		return false, err
	}
	return lo >= 1 && lo <= hi && hi <= last, nil
}

// Snapshot is the aggregate read model for one property.
type Snapshot struct {
	Property    *models.Property           `json:"property"`
	Attributes  *models.Attributes         `json:"attributes"`
	Maintenance []models.MaintenanceRecord `json:"maintenance"`
	Appraisals  []models.Appraisal         `json:"appraisals"`
}

// Snapshot loads the property and all of its side tables. The side-table
// reads are independent and fan out concurrently.
func (r *Registry) Snapshot(ctx context.Context, propertyID id.PropertyID) (*Snapshot, error) {
	p, err := r.Property(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Property: p}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		attrs, err := r.Attributes(gctx, propertyID)
		if err == nil {
			snap.Attributes = attrs
		}
		return err
	})
	g.Go(func() error {
		log, err := r.MaintenanceLog(gctx, propertyID)
		if err == nil {
			snap.Maintenance = log
		}
		return err
	})
	g.Go(func() error {
		log, err := r.Appraisals(gctx, propertyID)
		if err == nil {
			snap.Appraisals = log
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
