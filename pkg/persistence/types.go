package persistence

import (
	"fmt"
	"sort"

	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

// TreeRecord is the stored form of a built hash tree.
type TreeRecord struct {
	// ID is the primary key
	ID string `json:"id"`

	// HashAlgorithm names the hasher the tree was built with (see pkg/hasher)
	HashAlgorithm string `json:"hashAlgorithm"`

	// Leaves are the original leaf digests, without padding
	Leaves []types.Digest `json:"leaves"`

	// Root is the root computed when the tree was first built.
	// Used to detect corruption when the tree is rebuilt on load.
	Root types.Digest `json:"root"`

	LeafCount uint64 `json:"leafCount"`

	// CreatedAt is the Unix timestamp (seconds) when the tree was created
	CreatedAt int64 `json:"createdAt"`
}

// Validate checks that a record is internally consistent before it is stored.
func (r *TreeRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("tree record is nil")
	}
	if r.ID == "" {
		return fmt.Errorf("tree record ID cannot be empty")
	}
	if r.HashAlgorithm == "" {
		return fmt.Errorf("tree record %s has no hash algorithm", r.ID)
	}
	if len(r.Leaves) == 0 {
		return fmt.Errorf("tree record %s has no leaves", r.ID)
	}
	if uint64(len(r.Leaves)) != r.LeafCount {
		return fmt.Errorf("tree record %s has %d leaves but leafCount %d", r.ID, len(r.Leaves), r.LeafCount)
	}
	return nil
}

// Clone returns a deep copy of the record.
func (r *TreeRecord) Clone() *TreeRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Leaves != nil {
		c.Leaves = make([]types.Digest, len(r.Leaves))
		copy(c.Leaves, r.Leaves)
	}
	return &c
}

// SortTreeRecords orders records by CreatedAt, then ID.
func SortTreeRecords(records []*TreeRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})
}
