package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// DigestSize is the width in bytes of every digest handled by the tree.
const DigestSize = 32

// Digest is a fixed-size hash output.
type Digest [DigestSize]byte

// ZeroDigest is the all-zero digest
var ZeroDigest = Digest{}

// Hex returns the lowercase hex encoding of the digest (64 characters, no prefix).
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

// Bytes returns a copy of the digest as a byte slice
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestSize)
	copy(out, d[:])
	return out
}

// IsZero reports whether every byte of the digest is zero
func (d Digest) IsZero() bool {
	return d == ZeroDigest
}

// MarshalText encodes the digest as lowercase hex so it reads naturally in JSON.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText decodes a hex digest, with or without a 0x prefix.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest decodes a 64 character hex string into a Digest.
// A leading "0x" or "0X" is accepted.
func ParseDigest(s string) (Digest, error) {
	var d Digest

	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != DigestSize*2 {
		return d, fmt.Errorf("digest must be %d hex chars, got %d", DigestSize*2, len(s))
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("invalid digest hex: %w", err)
	}
	copy(d[:], b)
	return d, nil
}

// MustParseDigest is like ParseDigest but panics on malformed input.
// Intended for constants and tests.
func MustParseDigest(s string) Digest {
	d, err := ParseDigest(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseDigests decodes a list of hex digests, reporting the position of the first bad entry.
func ParseDigests(hexDigests []string) ([]Digest, error) {
	digests := make([]Digest, len(hexDigests))
	for i, s := range hexDigests {
		d, err := ParseDigest(s)
		if err != nil {
			return nil, fmt.Errorf("digest %d: %w", i, err)
		}
		digests[i] = d
	}
	return digests, nil
}

// DigestFromBytes copies a 32 byte slice into a Digest
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// Side says which neighbour a sibling hash is at one level of a proof.
type Side uint8

const (
	// SideLeft means the sibling sits to the left: parent = H(sibling || acc)
	SideLeft Side = iota
	// SideRight means the sibling sits to the right: parent = H(acc || sibling)
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

func (s Side) MarshalText() ([]byte, error) {
	switch s {
	case SideLeft, SideRight:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("invalid proof side: %d", uint8(s))
	}
}

func (s *Side) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "left":
		*s = SideLeft
	case "right":
		*s = SideRight
	default:
		return fmt.Errorf("invalid proof side: %q", string(text))
	}
	return nil
}

// ProofStep is one sibling hash on the path from a leaf to the root.
type ProofStep struct {
	Sibling Digest `json:"sibling"`
	Side    Side   `json:"side"`
}

// UnmarshalJSON requires both fields; a missing side would otherwise decode as left.
func (p *ProofStep) UnmarshalJSON(data []byte) error {
	var raw struct {
		Sibling *Digest `json:"sibling"`
		Side    *Side   `json:"side"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Sibling == nil {
		return fmt.Errorf("proof step is missing \"sibling\"")
	}
	if raw.Side == nil {
		return fmt.Errorf("proof step is missing \"side\"")
	}
	p.Sibling, p.Side = *raw.Sibling, *raw.Side
	return nil
}

// Proof is an inclusion proof for one leaf.
// Steps are ordered from the leaf level up to (but excluding) the root.
type Proof struct {
	// LeafIndex is the position of the leaf in the original (unpadded) leaf list
	LeafIndex uint64 `json:"leafIndex"`

	// Leaf is the digest being proven
	Leaf Digest `json:"leaf"`

	Steps []ProofStep `json:"steps"`
}

// Len returns the number of sibling hashes in the proof
func (p *Proof) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Steps)
}

// Clone returns a deep copy of the proof
func (p *Proof) Clone() *Proof {
	if p == nil {
		return nil
	}
	steps := make([]ProofStep, len(p.Steps))
	copy(steps, p.Steps)
	return &Proof{
		LeafIndex: p.LeafIndex,
		Leaf:      p.Leaf,
		Steps:     steps,
	}
}
