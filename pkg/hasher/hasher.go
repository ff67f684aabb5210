// Package hasher provides the digest function used to build hash trees.
//
// The tree treats the hash as an opaque collaborator H(bytes) -> 32-byte digest.
// Any implementation must be deterministic, collision resistant,
// and safe to call from multiple goroutines.
package hasher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

// Hasher hashes arbitrary bytes into a fixed-size digest.
type Hasher interface {
	Hash(data []byte) types.Digest

	// Name identifies the algorithm, e.g. "sha256". It is stored alongside
	// persisted trees so they can be rebuilt with the same function.
	Name() string
}

// Supported algorithm names
const (
	AlgorithmSHA256     = "sha256"
	AlgorithmKeccak256  = "keccak256"
	AlgorithmSHA3       = "sha3-256"
	AlgorithmBLAKE2b256 = "blake2b-256"

	DefaultAlgorithm = AlgorithmSHA256
)

// ErrUnknownAlgorithm is returned by New for names it does not recognise
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

var constructors = map[string]func() Hasher{
	AlgorithmSHA256:     func() Hasher { return SHA256{} },
	AlgorithmKeccak256:  func() Hasher { return Keccak256{} },
	AlgorithmSHA3:       func() Hasher { return SHA3{} },
	AlgorithmBLAKE2b256: func() Hasher { return NewBLAKE2b256() },
}

// New returns the Hasher registered under name. Names are case-insensitive
// and an empty name selects DefaultAlgorithm.
func New(name string) (Hasher, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultAlgorithm
	}
	ctor, ok := constructors[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAlgorithm, "%q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// MustNew is like New but panics on an unknown name
func MustNew(name string) Hasher {
	h, err := New(name)
	if err != nil {
		panic(fmt.Sprintf("hasher: %v", err))
	}
	return h
}

// Names returns the supported algorithm names in sorted order
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
