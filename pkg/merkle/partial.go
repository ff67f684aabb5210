package merkle

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"

	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

// PartialTree is a pre-sized tree whose leaves are filled in after its shape is known.
//
// Create one with [NewPartialTree], fill every slot with [*PartialTree.SetLeaf],
// then call [*PartialTree.Commit] to build the immutable [HashTree].
// A PartialTree has a single owner: it is not safe for concurrent use.
// After Commit it rejects further writes.
type PartialTree struct {
	hasher hasher.Hasher
	layout *Layout

	leaves []types.Digest
	filled *bitset.BitSet

	committed *HashTree
}

// NewPartialTree allocates placeholder slots for leafCount leaves.
func NewPartialTree(h hasher.Hasher, leafCount uint64) (*PartialTree, error) {
	if h == nil {
		return nil, ErrNilHasher
	}
	layout, err := PlanLayout(leafCount)
	if err != nil {
		return nil, err
	}

	return &PartialTree{
		hasher: h,
		layout: layout,
		leaves: make([]types.Digest, leafCount),
		filled: bitset.New(uint(leafCount)),
	}, nil
}

// SetLeaf fills slot index with a leaf digest. Filling a slot twice overwrites it.
func (p *PartialTree) SetLeaf(index uint64, leaf types.Digest) error {
	if p.committed != nil {
		return ErrCommitted
	}
	if index >= uint64(len(p.leaves)) {
		return errors.Wrapf(ErrIndexOutOfRange, "slot %d (tree has %d slots)", index, len(p.leaves))
	}
	p.leaves[index] = leaf
	p.filled.Set(uint(index))
	return nil
}

// SetLeafData fills slot index with H(data)
func (p *PartialTree) SetLeafData(index uint64, data []byte) error {
	return p.SetLeaf(index, p.hasher.Hash(data))
}

// Slot returns the state of one leaf slot
func (p *PartialTree) Slot(index uint64) (Slot, error) {
	if index >= uint64(len(p.leaves)) {
		return Slot{}, errors.Wrapf(ErrIndexOutOfRange, "slot %d (tree has %d slots)", index, len(p.leaves))
	}
	if !p.filled.Test(uint(index)) {
		return Slot{}, nil
	}
	return Slot{Digest: p.leaves[index], Filled: true}, nil
}

// LeafCount is the number of slots
func (p *PartialTree) LeafCount() uint64 {
	return uint64(len(p.leaves))
}

// Filled is the number of slots holding a leaf
func (p *PartialTree) Filled() uint64 {
	return uint64(p.filled.Count())
}

// Missing returns the indices of empty slots in ascending order
func (p *PartialTree) Missing() []uint64 {
	var missing []uint64
	for i := range p.leaves {
		if !p.filled.Test(uint(i)) {
			missing = append(missing, uint64(i))
		}
	}
	return missing
}

// IsComplete reports whether every slot is filled
func (p *PartialTree) IsComplete() bool {
	return p.Filled() == p.LeafCount()
}

// Layout returns the planned shape of the tree
func (p *PartialTree) Layout() *Layout {
	return p.layout
}

// Commit builds the tree from the filled slots. It fails with ErrIncompleteTree
// while any slot is empty. Once committed, the same HashTree is returned on
// every further call and the partial tree becomes read-only.
func (p *PartialTree) Commit(opts ...BuildOption) (*HashTree, error) {
	if p.committed != nil {
		return p.committed, nil
	}
	if !p.IsComplete() {
		missing := p.Missing()
		return nil, errors.Wrapf(ErrIncompleteTree, "%d of %d slots empty (first: %d)", len(missing), len(p.leaves), missing[0])
	}

	tree, err := Build(p.hasher, p.leaves, opts...)
	if err != nil {
		return nil, err
	}
	p.committed = tree
	return tree, nil
}

// Committed reports whether Commit has succeeded
func (p *PartialTree) Committed() bool {
	return p.committed != nil
}
