package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These represent factual states about stored records, not validation
// failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a uniqueness or state constraint rejected the write
// - ErrInvalidState: record in wrong state for the requested mutation
//   (e.g. transfer attempted on a locked property)
// - ErrUnavailable: backing store temporarily unreachable
//
// For validation errors (bad input, length bounds), use pkg/domain-errors
// directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
