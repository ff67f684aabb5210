package merkle

import (
	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

// HashTree is a binary merkle tree stored as flat layers addressed by (level, index).
// A built tree is immutable and safe for concurrent reads.
type HashTree struct {
	// leafCount is the number of leaves before duplication padding
	leafCount uint64

	// layers[0] = leaves (padded), layers[len-1] = root.
	// Every layer except the root has even length.
	layers [][]types.Digest

	hasher hasher.Hasher
}

// Layout describes the per-level slot counts of a tree with a known leaf count.
// Level 0 is the root and level Depth holds the leaves.
type Layout struct {
	LeafCount uint64
	Depth     int

	// LevelSizes are the padded layer lengths Build actually produces.
	LevelSizes []uint64

	// AdvisoryLevelSizes follow leafCount / 2^(Depth-d), which under-allocates
	// whenever leafCount is not a power of two. Display only.
	AdvisoryLevelSizes []uint64
}

// LevelDiscrepancy records a level where the advisory size differs from the built size
type LevelDiscrepancy struct {
	Level    int
	Advisory uint64
	Actual   uint64
}

// Slot is one placeholder leaf position in a PartialTree
type Slot struct {
	Digest types.Digest
	Filled bool
}

type buildConfig struct {
	parallelism       int
	parallelThreshold int
}

// BuildOption tunes tree construction without changing its result
type BuildOption func(*buildConfig)

// DefaultParallelThreshold is the smallest number of pairs in a layer
// that is hashed concurrently when parallelism is enabled.
const DefaultParallelThreshold = 1024

// WithParallelism hashes the pairs of large layers with up to n goroutines.
// n <= 1 keeps construction serial.
func WithParallelism(n int) BuildOption {
	return func(c *buildConfig) {
		c.parallelism = n
	}
}

// WithParallelThreshold overrides DefaultParallelThreshold
func WithParallelThreshold(pairs int) BuildOption {
	return func(c *buildConfig) {
		c.parallelThreshold = pairs
	}
}

func newBuildConfig(opts []BuildOption) *buildConfig {
	cfg := &buildConfig{
		parallelism:       1,
		parallelThreshold: DefaultParallelThreshold,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.parallelThreshold < 1 {
		cfg.parallelThreshold = 1
	}
	return cfg
}
