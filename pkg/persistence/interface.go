package persistence

// ITreePersistence defines the interface for persisting built hash trees across restarts.
// All implementations must be thread-safe as Node operations are concurrent.
//
// Only the original leaves and the root of a tree are stored. The layers are
// rebuilt on load and the rebuilt root is checked against the stored one.
type ITreePersistence interface {
	// SaveTree persists a tree record keyed by its ID.
	// Overwrites any existing record with the same ID.
	SaveTree(record *TreeRecord) error

	// LoadTree retrieves a tree record by ID.
	// Returns nil if the tree doesn't exist, error only on storage failure.
	LoadTree(id string) (*TreeRecord, error)

	// ListTrees returns all persisted tree records sorted by CreatedAt, then ID.
	// Returns empty slice if no trees exist, error only on storage failure.
	ListTrees() ([]*TreeRecord, error)

	// DeleteTree removes a tree record by ID.
	// Idempotent - returns nil if the tree doesn't exist.
	DeleteTree(id string) error

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
