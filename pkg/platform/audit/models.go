package audit

import (
	"context"
	"time"

	id "deedbook/pkg/domain"
)

// Event is emitted from domain logic to capture key ledger actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time     `json:"timestamp"`
	PropertyID id.PropertyID `json:"property_id"`
	Action     string        `json:"action"`
	// Actor is the caller that performed the action.
	Actor id.Address `json:"actor"`
	// Recipient is set for transfers and approval changes.
	Recipient id.Address `json:"recipient,omitempty"`
	// RequestID is the correlation id from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
	// Detail carries the attribute name for attribute updates.
	Detail string `json:"detail,omitempty"`
}

// AuditEvent names the ledger actions worth a trail entry.
type AuditEvent string

const (
	EventPropertyRegistered  AuditEvent = "property_registered"
	EventPropertyTransferred AuditEvent = "property_transferred"
	EventPropertyFrozen      AuditEvent = "property_frozen"
	EventTransferApproved    AuditEvent = "transfer_approved"
	EventTransferDisapproved AuditEvent = "transfer_disapproved"
	EventAttributeUpdated    AuditEvent = "attribute_updated"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByProperty(ctx context.Context, propertyID id.PropertyID) ([]Event, error)
}

// Sink receives a copy of every event for external fan-out (e.g. Kafka).
// Sinks are best-effort: failures are logged by the publisher, never
// returned to domain logic.
type Sink interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}
