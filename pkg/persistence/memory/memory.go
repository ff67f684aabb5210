package memory

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Layr-Labs/hashtree-go/pkg/persistence"
)

// MemoryPersistence is an in-memory implementation of ITreePersistence.
// This implementation is intended for TESTING and local development.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Tree storage: id -> TreeRecord
	trees map[string]*persistence.TreeRecord

	// Closed flag
	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
// Logs a loud warning since stored trees do not survive a restart.
func NewMemoryPersistence(l *zap.Logger) *MemoryPersistence {
	if l != nil {
		l.Sugar().Warnw("Using in-memory persistence - ALL TREES WILL BE LOST ON RESTART",
			"hint", "set HASHTREE_PERSISTENCE_TYPE=badger for durable storage",
		)
	}

	return &MemoryPersistence{
		trees: make(map[string]*persistence.TreeRecord),
	}
}

// SaveTree persists a tree record.
func (m *MemoryPersistence) SaveTree(record *persistence.TreeRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil TreeRecord")
	}
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid tree record: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	// Deep copy to prevent external mutation
	m.trees[record.ID] = record.Clone()

	return nil
}

// LoadTree retrieves a tree record by ID.
func (m *MemoryPersistence) LoadTree(id string) (*persistence.TreeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, exists := m.trees[id]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return record.Clone(), nil
}

// ListTrees returns all tree records sorted by creation time.
func (m *MemoryPersistence) ListTrees() ([]*persistence.TreeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*persistence.TreeRecord, 0, len(m.trees))
	for _, record := range m.trees {
		result = append(result, record.Clone())
	}
	persistence.SortTreeRecords(result)

	return result, nil
}

// DeleteTree removes a tree record.
func (m *MemoryPersistence) DeleteTree(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.trees, id)
	return nil
}

// Close shuts down the persistence layer.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return nil
}
