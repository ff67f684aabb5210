package merkle

import "github.com/pkg/errors"

// Validation failures. None are retryable; callers match them with errors.Is.
var (
	// ErrEmptyInput is returned when a tree is built from zero leaves
	ErrEmptyInput = errors.New("cannot build hash tree from empty leaf list")

	// ErrEmptyTree is returned when the root or a proof is requested from a tree with no layers
	ErrEmptyTree = errors.New("hash tree has no layers")

	// ErrIndexOutOfRange is returned for leaf indices at or beyond the original leaf count
	ErrIndexOutOfRange = errors.New("leaf index out of range")

	// ErrInvalidLeafCount is returned when planning or pre-sizing a tree for zero leaves
	ErrInvalidLeafCount = errors.New("leaf count must be positive")

	// ErrNilHasher is returned when no hash function is supplied
	ErrNilHasher = errors.New("hasher cannot be nil")

	// ErrIncompleteTree is returned when committing a partial tree with empty slots
	ErrIncompleteTree = errors.New("partial tree has unfilled leaf slots")

	// ErrCommitted is returned when writing to a partial tree after Commit
	ErrCommitted = errors.New("partial tree is already committed")
)
