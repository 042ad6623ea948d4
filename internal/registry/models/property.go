package models

import (
	"time"
	"unicode/utf8"

	id "deedbook/pkg/domain"
	dErrors "deedbook/pkg/domain-errors"
)

// Description length bounds, in Unicode code points.
const (
	MinDescriptionLen = 1
	MaxDescriptionLen = 256
)

// Property is the aggregate root of the ownership ledger.
//
// Invariants:
//   - ID is dense, 1-based and never reused
//   - Description length is within [1, 256] code points and immutable
//   - Transferred is one-shot: once true it never resets
//   - Once Transferred is true, Owner never changes again
//
// The transferred flag is a deliberate single-use design: a property can
// change hands at most once for the lifetime of the registry. Freezing sets
// the same flag without changing the owner, so a frozen property can never
// be transferred either. Attribute mutation by the current owner stays
// legal after the flag is set.
type Property struct {
	ID          id.PropertyID `json:"id"`
	Owner       id.Address    `json:"owner"`
	Description string        `json:"description"`
	Transferred bool          `json:"transferred"`
	CreatedAt   time.Time     `json:"created_at"`
}

// OwnedBy reports whether addr is the current owner.
func (p *Property) OwnedBy(addr id.Address) bool {
	return !addr.IsZero() && p.Owner == addr
}

// CanTransfer checks if the property can still change hands.
// Use with ApplyTransfer in Execute callbacks so the store holds its lock
// across validation and mutation.
func (p *Property) CanTransfer() error {
	if p.Transferred {
		return dErrors.New(dErrors.CodeInvariantViolation, "property already transferred")
	}
	return nil
}

// ApplyTransfer hands the property to recipient and permanently sets the
// transfer lock. Call CanTransfer first to validate the transition.
func (p *Property) ApplyTransfer(recipient id.Address) {
	p.Owner = recipient
	p.Transferred = true
}

// ApplyFreeze sets the transfer lock without changing the owner.
// Idempotent: freezing an already-locked property is a no-op.
func (p *Property) ApplyFreeze() {
	p.Transferred = true
}

// ValidateDescription enforces the description length bounds.
func ValidateDescription(description string) error {
	n := utf8.RuneCountInString(description)
	if n < MinDescriptionLen || n > MaxDescriptionLen {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"description must be between %d and %d characters", MinDescriptionLen, MaxDescriptionLen)
	}
	return nil
}

// NewProperty validates and builds a registered property record.
func NewProperty(propertyID id.PropertyID, owner id.Address, description string, now time.Time) (*Property, error) {
	if err := ValidateDescription(description); err != nil {
		return nil, err
	}
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "owner address is required")
	}
	return &Property{
		ID:          propertyID,
		Owner:       owner,
		Description: description,
		CreatedAt:   now,
	}, nil
}
