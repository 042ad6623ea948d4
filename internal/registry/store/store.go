// Package store persists the registry's ledger and attribute tables.
//
// Implementations return sentinel errors (pkg/platform/sentinel) for
// factual failures; the service layer translates them into domain errors.
// Every multi-write operation (property creation, Execute mutations) is
// atomic within a single implementation: the in-memory store serializes on
// one mutex, the Postgres store on transactions with row locks.
package store

import (
	"context"
	"time"

	"deedbook/internal/registry/models"
	id "deedbook/pkg/domain"
)

// Store is the durable substrate behind the registry service.
type Store interface {
	// LastID returns the highest assigned property id; 0 before any
	// registration. The next id is always LastID+1.
	LastID(ctx context.Context) (id.PropertyID, error)

	// CreateProperty allocates the next id and records ownership plus
	// description as one atomic step. A partially applied registration
	// must never be observable.
	CreateProperty(ctx context.Context, owner id.Address, description string, now time.Time) (*models.Property, error)

	// CreateProperties registers descriptions in order within one atomic
	// unit: either all ids commit or none do.
	CreateProperties(ctx context.Context, owner id.Address, descriptions []string, now time.Time) ([]*models.Property, error)

	// FindProperty returns the ledger record or sentinel.ErrNotFound.
	FindProperty(ctx context.Context, propertyID id.PropertyID) (*models.Property, error)

	// ExecuteProperty atomically validates and mutates a ledger record.
	// The implementation holds its lock (mutex or FOR UPDATE) across both
	// callbacks; validate errors abort without any write. Returns the
	// mutated record, or sentinel.ErrNotFound for unregistered ids.
	ExecuteProperty(ctx context.Context, propertyID id.PropertyID,
		validate func(*models.Property) error,
		mutate func(*models.Property)) (*models.Property, error)

	// Attributes returns the attribute record for a property; all-nil
	// fields (never an error) when nothing has been set or the property
	// does not exist, matching the ledger's no-throw read convention.
	Attributes(ctx context.Context, propertyID id.PropertyID) (*models.Attributes, error)

	// UpdateAttributes applies mutate to the property's attribute record
	// under the store's lock. The callback sees the current record and
	// overwrites in place.
	UpdateAttributes(ctx context.Context, propertyID id.PropertyID, mutate func(*models.Attributes)) error

	// UpsertMaintenance writes a maintenance log entry keyed by its
	// sequence number.
	UpsertMaintenance(ctx context.Context, propertyID id.PropertyID, rec models.MaintenanceRecord) error

	// MaintenanceLog returns entries ordered by sequence number; empty
	// for unknown properties.
	MaintenanceLog(ctx context.Context, propertyID id.PropertyID) ([]models.MaintenanceRecord, error)

	// UpsertAppraisal writes an appraisal log entry keyed by its timestamp.
	UpsertAppraisal(ctx context.Context, propertyID id.PropertyID, rec models.Appraisal) error

	// Appraisals returns entries ordered by timestamp; empty for unknown
	// properties.
	Appraisals(ctx context.Context, propertyID id.PropertyID) ([]models.Appraisal, error)

	// SetTransferApproval records an allow-list decision for a candidate
	// recipient. The transfer path deliberately does not consult it.
	SetTransferApproval(ctx context.Context, propertyID id.PropertyID, candidate id.Address, approved bool) error

	// TransferApproval reports the recorded decision; false if absent.
	TransferApproval(ctx context.Context, propertyID id.PropertyID, candidate id.Address) (bool, error)
}
