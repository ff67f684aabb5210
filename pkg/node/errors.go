package node

import "github.com/pkg/errors"

var (
	// ErrTreeNotFound is returned when no tree exists under the requested ID
	ErrTreeNotFound = errors.New("tree not found")

	// ErrTooManyLeaves is returned when a create request exceeds the configured MaxLeaves
	ErrTooManyLeaves = errors.New("too many leaves")

	// ErrRootMismatch is returned when a persisted tree rebuilds to a different root
	ErrRootMismatch = errors.New("rebuilt root does not match stored root")

	// ErrInvalidRequest is returned for malformed create requests
	ErrInvalidRequest = errors.New("invalid request")
)
