package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

func TestNewPartialTree(t *testing.T) {
	h := sha256Hasher()

	_, err := NewPartialTree(h, 0)
	require.ErrorIs(t, err, ErrInvalidLeafCount)

	_, err = NewPartialTree(nil, 4)
	require.ErrorIs(t, err, ErrNilHasher)

	p, err := NewPartialTree(h, 5)
	require.NoError(t, err)
	require.Equal(t, uint64(5), p.LeafCount())
	require.Zero(t, p.Filled())
	require.Equal(t, []uint64{0, 1, 2, 3, 4}, p.Missing())
	require.False(t, p.IsComplete())
	require.Equal(t, []uint64{1, 2, 4, 6}, p.Layout().LevelSizes)
}

// TestPartialTreeOutOfOrderFill tests that filling slots in any order builds the same tree as Build
func TestPartialTreeOutOfOrderFill(t *testing.T) {
	h := sha256Hasher()
	leaves := createTestLeaves(7)

	p, err := NewPartialTree(h, uint64(len(leaves)))
	require.NoError(t, err)

	for _, i := range []int{6, 0, 3, 5, 1, 4, 2} {
		require.NoError(t, p.SetLeaf(uint64(i), leaves[i]))
	}
	require.True(t, p.IsComplete())
	require.Empty(t, p.Missing())

	committed, err := p.Commit()
	require.NoError(t, err)

	expected, err := Build(h, leaves)
	require.NoError(t, err)
	require.Equal(t, expected.Layers(), committed.Layers())
}

func TestPartialTreeSlots(t *testing.T) {
	h := sha256Hasher()
	p, err := NewPartialTree(h, 3)
	require.NoError(t, err)

	slot, err := p.Slot(1)
	require.NoError(t, err)
	require.Equal(t, Slot{}, slot)

	require.NoError(t, p.SetLeafData(1, []byte("b")))
	slot, err = p.Slot(1)
	require.NoError(t, err)
	require.True(t, slot.Filled)
	require.Equal(t, h.Hash([]byte("b")), slot.Digest)

	// A zero digest is still a filled slot
	require.NoError(t, p.SetLeaf(0, types.Digest{}))
	slot, err = p.Slot(0)
	require.NoError(t, err)
	require.True(t, slot.Filled)

	require.Equal(t, uint64(2), p.Filled())
	require.Equal(t, []uint64{2}, p.Missing())

	_, err = p.Slot(3)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	require.ErrorIs(t, p.SetLeaf(3, randomDigest()), ErrIndexOutOfRange)
}

func TestPartialTreeCommitIncomplete(t *testing.T) {
	p, err := NewPartialTree(sha256Hasher(), 4)
	require.NoError(t, err)
	require.NoError(t, p.SetLeaf(0, randomDigest()))

	tree, err := p.Commit()
	require.ErrorIs(t, err, ErrIncompleteTree)
	require.Nil(t, tree)
	require.False(t, p.Committed())
}

// TestPartialTreeFrozenAfterCommit tests that writes are rejected once committed
func TestPartialTreeFrozenAfterCommit(t *testing.T) {
	p, err := NewPartialTree(sha256Hasher(), 2)
	require.NoError(t, err)
	require.NoError(t, p.SetLeafData(0, []byte("a")))
	require.NoError(t, p.SetLeafData(1, []byte("b")))

	tree, err := p.Commit(WithParallelism(2))
	require.NoError(t, err)
	require.True(t, p.Committed())

	root, err := tree.Root()
	require.NoError(t, err)
	require.Equal(t, "e5a01fee14e0ed5c48714f22180f25ad8365b53f9779f79dc4a3d7e93963f94a", root.Hex())

	require.ErrorIs(t, p.SetLeaf(0, randomDigest()), ErrCommitted)

	again, err := p.Commit()
	require.NoError(t, err)
	require.Same(t, tree, again)
}
