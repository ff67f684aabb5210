package hasher

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	sha256 "github.com/minio/sha256-simd"
	merkletree "github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

// SHA256 is a Hasher backed by SHA-256 (SIMD accelerated where the CPU allows).
type SHA256 struct{}

func (SHA256) Hash(data []byte) types.Digest {
	return types.Digest(sha256.Sum256(data))
}

func (SHA256) Name() string { return AlgorithmSHA256 }

// Keccak256 is a Hasher backed by legacy Keccak-256, matching Solidity's keccak256.
type Keccak256 struct{}

func (Keccak256) Hash(data []byte) types.Digest {
	return types.Digest(crypto.Keccak256Hash(data))
}

func (Keccak256) Name() string { return AlgorithmKeccak256 }

// SHA3 is a Hasher backed by FIPS-202 SHA3-256.
type SHA3 struct{}

func (SHA3) Hash(data []byte) types.Digest {
	return types.Digest(sha3.Sum256(data))
}

func (SHA3) Name() string { return AlgorithmSHA3 }

// HashTypeAdapter lets any go-merkletree HashType with a 32 byte output act as a Hasher.
type HashTypeAdapter struct {
	name     string
	hashType merkletree.HashType
}

// NewHashTypeAdapter wraps ht under the given name.
// It fails if ht does not produce digests of types.DigestSize bytes.
func NewHashTypeAdapter(name string, ht merkletree.HashType) (*HashTypeAdapter, error) {
	if ht == nil {
		return nil, fmt.Errorf("hash type cannot be nil")
	}
	if name == "" {
		return nil, fmt.Errorf("hash type name cannot be empty")
	}
	if ht.HashLength() != types.DigestSize {
		return nil, fmt.Errorf("hash type %s produces %d byte digests, need %d", name, ht.HashLength(), types.DigestSize)
	}
	return &HashTypeAdapter{name: name, hashType: ht}, nil
}

// NewBLAKE2b256 returns a BLAKE2b-256 Hasher
func NewBLAKE2b256() *HashTypeAdapter {
	a, err := NewHashTypeAdapter(AlgorithmBLAKE2b256, blake2b.New())
	if err != nil {
		// blake2b.New is fixed at 32 bytes
		panic(err)
	}
	return a
}

func (a *HashTypeAdapter) Hash(data []byte) types.Digest {
	var d types.Digest
	copy(d[:], a.hashType.Hash(data))
	return d
}

func (a *HashTypeAdapter) Name() string { return a.name }
