// Package hashertest contains a compliance suite that every hasher.Hasher must pass.
package hashertest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

type HasherFactory func() hasher.Hasher

func TestHasherCompliance(t *testing.T, f HasherFactory) {
	t.Run("hash is deterministic", func(t *testing.T) {
		t.Parallel()

		h := f()
		require.Equal(t, h.Hash([]byte("deterministic_data")), h.Hash([]byte("deterministic_data")))
	})

	t.Run("hash respects input", func(t *testing.T) {
		t.Parallel()

		h := f()
		require.NotEqual(t, h.Hash([]byte("hello")), h.Hash([]byte("hellp")))
		require.NotEqual(t, h.Hash(nil), h.Hash([]byte{0}))
	})

	t.Run("hash is not zero", func(t *testing.T) {
		t.Parallel()

		h := f()
		require.NotEqual(t, types.ZeroDigest, h.Hash(nil))
	})

	t.Run("hash does not retain input", func(t *testing.T) {
		t.Parallel()

		h := f()
		in := []byte("mutable")
		before := h.Hash(in)
		in[0] = 'M'
		require.NotEqual(t, before, h.Hash(in))
		in[0] = 'm'
		require.Equal(t, before, h.Hash(in))
	})

	t.Run("hash is safe for concurrent use", func(t *testing.T) {
		t.Parallel()

		h := f()
		want := h.Hash([]byte("concurrent"))

		var wg sync.WaitGroup
		results := make([]types.Digest, 16)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = h.Hash([]byte("concurrent"))
			}(i)
		}
		wg.Wait()

		for _, got := range results {
			require.Equal(t, want, got)
		}
	})

	t.Run("name is set", func(t *testing.T) {
		t.Parallel()

		require.NotEmpty(t, f().Name())
	})
}
