package merkle

import (
	"math/bits"

	"github.com/pkg/errors"
)

// PlanLayout computes the shape of a tree over leafCount leaves before any leaf is known.
//
// Depth is ceil(log2(leafCount)). LevelSizes are the padded layer lengths Build
// produces and are the ones to allocate against. AdvisoryLevelSizes keep the
// leafCount / 2^(Depth-d) sizing for display; use Consistent to detect when the
// two disagree.
func PlanLayout(leafCount uint64) (*Layout, error) {
	if leafCount == 0 {
		return nil, errors.Wrap(ErrInvalidLeafCount, "cannot plan layout for 0 leaves")
	}

	depth := depthFor(leafCount)

	sizes, err := builtLevelSizes(leafCount, depth)
	if err != nil {
		return nil, err
	}

	advisory := make([]uint64, depth+1)
	for d := 0; d <= depth; d++ {
		advisory[d] = leafCount >> uint(depth-d)
	}

	return &Layout{
		LeafCount:          leafCount,
		Depth:              depth,
		LevelSizes:         sizes,
		AdvisoryLevelSizes: advisory,
	}, nil
}

// builtLevelSizes replays the padding rule of Build, root first.
// Counts whose padded layers or slot total do not fit in a uint64 are rejected.
func builtLevelSizes(leafCount uint64, depth int) ([]uint64, error) {
	sizes := make([]uint64, depth+1)

	n := leafCount
	total := uint64(1)
	for level := depth; level > 0; level-- {
		padded, carry := bits.Add64(n, n%2, 0)
		if carry != 0 {
			return nil, errors.Wrapf(ErrInvalidLeafCount, "padded level %d of %d leaves overflows uint64", level, leafCount)
		}
		if total, carry = bits.Add64(total, padded, 0); carry != 0 {
			return nil, errors.Wrapf(ErrInvalidLeafCount, "slot total for %d leaves overflows uint64", leafCount)
		}
		sizes[level] = padded
		n = padded / 2
	}
	sizes[0] = 1

	return sizes, nil
}

// Consistent reports whether the advisory sizing agrees with the built sizing at every level.
// It holds exactly when LeafCount is a power of two.
func (l *Layout) Consistent() bool {
	return len(l.Discrepancies()) == 0
}

// Discrepancies lists every level where advisory and built sizes differ
func (l *Layout) Discrepancies() []LevelDiscrepancy {
	var out []LevelDiscrepancy
	for level := range l.LevelSizes {
		if l.AdvisoryLevelSizes[level] != l.LevelSizes[level] {
			out = append(out, LevelDiscrepancy{
				Level:    level,
				Advisory: l.AdvisoryLevelSizes[level],
				Actual:   l.LevelSizes[level],
			})
		}
	}
	return out
}

// TotalSlots is the number of digests a fully built tree stores, padding included.
// PlanLayout guarantees the sum fits in a uint64.
func (l *Layout) TotalSlots() uint64 {
	var total uint64
	for _, size := range l.LevelSizes {
		total += size
	}
	return total
}

// LeafLevelSize is the padded length of the leaf layer
func (l *Layout) LeafLevelSize() uint64 {
	return l.LevelSizes[len(l.LevelSizes)-1]
}
