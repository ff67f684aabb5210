package merkle

import (
	"fmt"
	"runtime"
	"testing"
)

// BenchmarkBuild benchmarks tree construction with various sizes
func BenchmarkBuild(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}
	h := sha256Hasher()

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			leaves := createTestLeaves(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = Build(h, leaves)
			}
		})
	}
}

// BenchmarkBuildParallel benchmarks construction with concurrent layer hashing
func BenchmarkBuildParallel(b *testing.B) {
	sizes := []int{10000, 100000}
	h := sha256Hasher()

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			leaves := createTestLeaves(size)
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = Build(h, leaves, WithParallelism(runtime.NumCPU()))
			}
		})
	}
}

// BenchmarkProve benchmarks proof generation
func BenchmarkProve(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}
	h := sha256Hasher()

	for _, size := range sizes {
		tree, _ := Build(h, createTestLeaves(size))

		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.Prove(uint64(i % size))
			}
		})
	}
}

// BenchmarkVerifyProof benchmarks proof verification
func BenchmarkVerifyProof(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}
	h := sha256Hasher()

	for _, size := range sizes {
		leaves := createTestLeaves(size)
		tree, _ := Build(h, leaves)
		root, _ := tree.Root()
		proof, _ := tree.Prove(0)

		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = VerifyProof(h, leaves[0], proof, root)
			}
		})
	}
}
