package domain

import "errors"

var (
	// ErrValidation marks input that fails domain validation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a lookup for an entity that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation rejected because of the entity's current state.
	ErrConflict = errors.New("conflict")
	// ErrConfig marks a deployment defect, e.g. a missing content template.
	// These abort the operation instead of being aggregated.
	ErrConfig = errors.New("configuration error")
)
