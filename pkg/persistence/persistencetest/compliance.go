// Package persistencetest provides a behavioural test suite shared by every
// persistence.ITreePersistence backend.
package persistencetest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/hashtree-go/pkg/persistence"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

// Factory returns a fresh, empty backend. The suite closes it.
type Factory func(t *testing.T) persistence.ITreePersistence

// NewRecord builds a valid record with leafCount deterministic leaves.
func NewRecord(id string, leafCount int, createdAt int64) *persistence.TreeRecord {
	leaves := make([]types.Digest, leafCount)
	for i := range leaves {
		leaves[i][0] = byte(i)
		leaves[i][31] = byte(len(id))
	}
	var root types.Digest
	root[0] = 0xaa
	root[1] = byte(leafCount)

	return &persistence.TreeRecord{
		ID:            id,
		HashAlgorithm: "sha256",
		Leaves:        leaves,
		Root:          root,
		LeafCount:     uint64(leafCount),
		CreatedAt:     createdAt,
	}
}

// TestPersistenceCompliance runs the shared contract against a backend.
func TestPersistenceCompliance(t *testing.T, newBackend Factory) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		p := newBackend(t)
		defer func() { _ = p.Close() }()

		record := NewRecord("tree-a", 5, 1000)
		require.NoError(t, p.SaveTree(record))

		loaded, err := p.LoadTree("tree-a")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, record, loaded)
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		p := newBackend(t)
		defer func() { _ = p.Close() }()

		loaded, err := p.LoadTree("does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveNil", func(t *testing.T) {
		p := newBackend(t)
		defer func() { _ = p.Close() }()

		err := p.SaveTree(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil TreeRecord")
	})

	t.Run("SaveInvalid", func(t *testing.T) {
		p := newBackend(t)
		defer func() { _ = p.Close() }()

		record := NewRecord("bad", 2, 1)
		record.LeafCount = 7
		require.Error(t, p.SaveTree(record))
	})

	t.Run("Overwrite", func(t *testing.T) {
		p := newBackend(t)
		defer func() { _ = p.Close() }()

		require.NoError(t, p.SaveTree(NewRecord("tree-a", 2, 1000)))
		require.NoError(t, p.SaveTree(NewRecord("tree-a", 3, 1000)))

		loaded, err := p.LoadTree("tree-a")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), loaded.LeafCount)

		all, err := p.ListTrees()
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		p := newBackend(t)
		defer func() { _ = p.Close() }()

		require.NoError(t, p.SaveTree(NewRecord("tree-a", 2, 1000)))
		require.NoError(t, p.DeleteTree("tree-a"))

		loaded, err := p.LoadTree("tree-a")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		// Idempotent
		require.NoError(t, p.DeleteTree("tree-a"))
	})

	t.Run("ListSorted", func(t *testing.T) {
		p := newBackend(t)
		defer func() { _ = p.Close() }()

		empty, err := p.ListTrees()
		require.NoError(t, err)
		assert.Empty(t, empty)

		require.NoError(t, p.SaveTree(NewRecord("c", 1, 300)))
		require.NoError(t, p.SaveTree(NewRecord("b", 1, 100)))
		require.NoError(t, p.SaveTree(NewRecord("a", 1, 300)))

		all, err := p.ListTrees()
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "b", all[0].ID)
		assert.Equal(t, "a", all[1].ID)
		assert.Equal(t, "c", all[2].ID)
	})

	t.Run("ExternalMutation", func(t *testing.T) {
		p := newBackend(t)
		defer func() { _ = p.Close() }()

		record := NewRecord("tree-a", 2, 1000)
		original := record.Leaves[0]
		require.NoError(t, p.SaveTree(record))
		record.Leaves[0] = types.Digest{0xff}

		loaded, err := p.LoadTree("tree-a")
		require.NoError(t, err)
		assert.Equal(t, original, loaded.Leaves[0])

		loaded.Leaves[0] = types.Digest{0xee}
		again, err := p.LoadTree("tree-a")
		require.NoError(t, err)
		assert.Equal(t, original, again.Leaves[0])
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		p := newBackend(t)
		defer func() { _ = p.Close() }()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("tree-%d", i)
				assert.NoError(t, p.SaveTree(NewRecord(id, i+1, int64(i))))
				loaded, err := p.LoadTree(id)
				assert.NoError(t, err)
				assert.NotNil(t, loaded)
			}(i)
		}
		wg.Wait()

		all, err := p.ListTrees()
		require.NoError(t, err)
		assert.Len(t, all, 10)
	})

	t.Run("HealthCheckAndClose", func(t *testing.T) {
		p := newBackend(t)

		require.NoError(t, p.HealthCheck())
		require.NoError(t, p.Close())

		// Idempotent
		require.NoError(t, p.Close())

		require.Error(t, p.HealthCheck())
		require.Error(t, p.SaveTree(NewRecord("x", 1, 1)))
		_, err := p.LoadTree("x")
		require.Error(t, err)
		_, err = p.ListTrees()
		require.Error(t, err)
		require.Error(t, p.DeleteTree("x"))
	})
}
