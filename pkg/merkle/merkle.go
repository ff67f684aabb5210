package merkle

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

// Build creates a binary merkle tree over the given ordered leaf digests.
//
// Layers are built bottom-up. If a layer has an odd number of nodes, its last
// node is duplicated and the padded layer is what gets stored, so proofs can
// always find a sibling. Each parent is H(left || right).
// A single leaf is its own root; no hashing happens.
func Build(h hasher.Hasher, leaves []types.Digest, opts ...BuildOption) (*HashTree, error) {
	if h == nil {
		return nil, ErrNilHasher
	}
	if len(leaves) == 0 {
		return nil, ErrEmptyInput
	}

	cfg := newBuildConfig(opts)

	// Copy so the tree never aliases caller memory
	current := make([]types.Digest, len(leaves))
	copy(current, leaves)

	layers := make([][]types.Digest, 0, depthFor(uint64(len(leaves)))+1)
	for len(current) > 1 {
		current = padLayer(current)
		next := hashLayer(h, current, cfg)

		layers = append(layers, current)
		current = next
	}
	layers = append(layers, current)

	return &HashTree{
		leafCount: uint64(len(leaves)),
		layers:    layers,
		hasher:    h,
	}, nil
}

// BuildFromData hashes every input with h to form the leaves, then calls Build.
func BuildFromData(h hasher.Hasher, data [][]byte, opts ...BuildOption) (*HashTree, error) {
	if h == nil {
		return nil, ErrNilHasher
	}
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	return Build(h, HashLeaves(h, data), opts...)
}

// HashLeaves returns H(data[i]) for every input
func HashLeaves(h hasher.Hasher, data [][]byte) []types.Digest {
	leaves := make([]types.Digest, len(data))
	for i, d := range data {
		leaves[i] = h.Hash(d)
	}
	return leaves
}

// HashPair computes H(left || right).
func HashPair(h hasher.Hasher, left, right types.Digest) types.Digest {
	var buf [2 * types.DigestSize]byte
	copy(buf[:types.DigestSize], left[:])
	copy(buf[types.DigestSize:], right[:])
	return h.Hash(buf[:])
}

// ParentLayer computes one level of the tree: the layer is padded (on a copy)
// if odd and each adjacent pair is hashed into a parent.
// A layer with fewer than two entries is returned as a copy unchanged.
func ParentLayer(h hasher.Hasher, layer []types.Digest) []types.Digest {
	if len(layer) < 2 {
		out := make([]types.Digest, len(layer))
		copy(out, layer)
		return out
	}
	padded := make([]types.Digest, len(layer))
	copy(padded, layer)
	return hashLayer(h, padLayer(padded), newBuildConfig(nil))
}

// padLayer duplicates the last element of an odd-length layer.
func padLayer(layer []types.Digest) []types.Digest {
	if len(layer)%2 == 1 {
		layer = append(layer, layer[len(layer)-1])
	}
	return layer
}

// hashLayer hashes each adjacent pair of an even-length layer.
// With parallelism enabled, large layers are split into contiguous chunks;
// every parent still lands at index i/2, so the result equals the serial one.
func hashLayer(h hasher.Hasher, layer []types.Digest, cfg *buildConfig) []types.Digest {
	pairs := len(layer) / 2
	next := make([]types.Digest, pairs)

	if cfg.parallelism <= 1 || pairs < cfg.parallelThreshold {
		for i := 0; i < pairs; i++ {
			next[i] = HashPair(h, layer[2*i], layer[2*i+1])
		}
		return next
	}

	chunk := (pairs + cfg.parallelism - 1) / cfg.parallelism
	var g errgroup.Group
	g.SetLimit(cfg.parallelism)
	for start := 0; start < pairs; start += chunk {
		start, end := start, min(start+chunk, pairs)
		g.Go(func() error {
			for i := start; i < end; i++ {
				next[i] = HashPair(h, layer[2*i], layer[2*i+1])
			}
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	return next
}

// Root returns the single digest of the top layer.
func (t *HashTree) Root() (types.Digest, error) {
	if t == nil || len(t.layers) == 0 {
		return types.Digest{}, ErrEmptyTree
	}
	top := t.layers[len(t.layers)-1]
	if len(top) != 1 {
		return types.Digest{}, fmt.Errorf("hash tree root layer has %d nodes instead of 1", len(top))
	}
	return top[0], nil
}

// Prove creates an inclusion proof for the leaf at leafIndex.
// The proof holds one sibling per layer below the root, leaf to root.
func (t *HashTree) Prove(leafIndex uint64) (*types.Proof, error) {
	if t == nil || len(t.layers) == 0 {
		return nil, ErrEmptyTree
	}
	if leafIndex >= t.leafCount {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "leaf index %d (tree has %d leaves)", leafIndex, t.leafCount)
	}

	steps := make([]types.ProofStep, 0, len(t.layers)-1)
	index := leafIndex

	for level := 0; level < len(t.layers)-1; level++ {
		layer := t.layers[level]

		// Padded layers always have even length, so i^1 is in range
		sibling := index ^ 1
		side := types.SideLeft
		if sibling > index {
			side = types.SideRight
		}
		steps = append(steps, types.ProofStep{
			Sibling: layer[sibling],
			Side:    side,
		})

		index /= 2
	}

	return &types.Proof{
		LeafIndex: leafIndex,
		Leaf:      t.layers[0][leafIndex],
		Steps:     steps,
	}, nil
}

// VerifyProof recomputes the root from leaf and proof and compares it with expectedRoot.
// It is a pure predicate: a mismatch, a nil proof or a nil hasher yields false.
// proof.Leaf and proof.LeafIndex are not consulted; the caller names the leaf.
func VerifyProof(h hasher.Hasher, leaf types.Digest, proof *types.Proof, expectedRoot types.Digest) bool {
	if h == nil || proof == nil {
		return false
	}

	acc := leaf
	for _, step := range proof.Steps {
		switch step.Side {
		case types.SideLeft:
			acc = HashPair(h, step.Sibling, acc)
		case types.SideRight:
			acc = HashPair(h, acc, step.Sibling)
		default:
			return false
		}
	}

	return acc == expectedRoot
}

// Verify checks proof for leaf against this tree's own root and hasher.
func (t *HashTree) Verify(leaf types.Digest, proof *types.Proof) bool {
	root, err := t.Root()
	if err != nil {
		return false
	}
	return VerifyProof(t.hasher, leaf, proof, root)
}

// LeafCount returns the number of leaves the tree was built from, before padding
func (t *HashTree) LeafCount() uint64 {
	if t == nil {
		return 0
	}
	return t.leafCount
}

// Depth returns the number of layers above the leaves (0 for a single leaf or an empty tree)
func (t *HashTree) Depth() int {
	if t == nil || len(t.layers) == 0 {
		return 0
	}
	return len(t.layers) - 1
}

// HasherName returns the name of the hash function the tree was built with
func (t *HashTree) HasherName() string {
	if t == nil || t.hasher == nil {
		return ""
	}
	return t.hasher.Name()
}

// Leaf returns the leaf digest at index (pre-padding positions only)
func (t *HashTree) Leaf(index uint64) (types.Digest, error) {
	if t == nil || len(t.layers) == 0 {
		return types.Digest{}, ErrEmptyTree
	}
	if index >= t.leafCount {
		return types.Digest{}, errors.Wrapf(ErrIndexOutOfRange, "leaf index %d (tree has %d leaves)", index, t.leafCount)
	}
	return t.layers[0][index], nil
}

// Leaves returns a copy of the original leaves, without padding
func (t *HashTree) Leaves() []types.Digest {
	if t == nil || len(t.layers) == 0 {
		return nil
	}
	out := make([]types.Digest, t.leafCount)
	copy(out, t.layers[0][:t.leafCount])
	return out
}

// Layer returns a copy of one stored layer; level 0 is the padded leaf layer.
func (t *HashTree) Layer(level int) ([]types.Digest, error) {
	if t == nil || len(t.layers) == 0 {
		return nil, ErrEmptyTree
	}
	if level < 0 || level >= len(t.layers) {
		return nil, fmt.Errorf("layer %d out of range (tree has %d layers)", level, len(t.layers))
	}
	out := make([]types.Digest, len(t.layers[level]))
	copy(out, t.layers[level])
	return out, nil
}

// Layers returns a deep copy of every stored layer, leaves first.
func (t *HashTree) Layers() [][]types.Digest {
	if t == nil {
		return nil
	}
	out := make([][]types.Digest, len(t.layers))
	for i, layer := range t.layers {
		out[i] = make([]types.Digest, len(layer))
		copy(out[i], layer)
	}
	return out
}

// String renders every layer as hex, root first.
func (t *HashTree) String() string {
	if t == nil || len(t.layers) == 0 {
		return "<empty hash tree>"
	}

	var sb strings.Builder
	for level := len(t.layers) - 1; level >= 0; level-- {
		fmt.Fprintf(&sb, "level %d:", len(t.layers)-1-level)
		for _, d := range t.layers[level] {
			sb.WriteByte(' ')
			sb.WriteString(d.Hex())
		}
		if level > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func depthFor(leafCount uint64) int {
	if leafCount <= 1 {
		return 0
	}
	return bits.Len64(leafCount - 1)
}
