package domain

import (
	"strconv"
	"strings"

	dErrors "deedbook/pkg/domain-errors"
)

// PropertyID identifies a registered property. IDs are dense, 1-based and
// strictly increasing; zero is never a valid id.
//
// Usage: construct via ParsePropertyID at trust boundaries to enforce the
// range invariant; direct casting bypasses validation.
type PropertyID uint64

// IsValid reports whether the id is in the assignable range (>= 1).
func (p PropertyID) IsValid() bool {
	return p >= 1
}

func (p PropertyID) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// ParsePropertyID validates and returns a PropertyID from its decimal form.
func ParsePropertyID(s string) (PropertyID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "property id is required")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "property id must be a positive integer")
	}
	id := PropertyID(v)
	if !id.IsValid() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "property id must be at least 1")
	}
	return id, nil
}

// Address identifies a caller (administrator, owner, or transfer recipient).
// The registry treats addresses as opaque; the only invariant is that they
// are non-empty after trimming.
type Address string

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}

// ParseAddress validates and returns an Address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	return Address(s), nil
}
