package catalog

import (
	"errors"

	"omnia/internal/hashing"
)

var (
	// ErrValidation marks an entity built with a missing or invalid field.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a referenced collection, file object or document that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a save that would collide with an existing unique key.
	ErrConflict = errors.New("unique key conflict")

	// ErrIntegrity marks more than one persisted record sharing a unique key.
	// It is never resolved automatically.
	ErrIntegrity = errors.New("data integrity fault")

	// ErrIO marks a file that could not be read while deriving its identity.
	ErrIO = hashing.ErrIO
)
