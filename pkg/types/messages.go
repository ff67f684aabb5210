package types

// CreateTreeRequest is the body of POST /trees.
// Exactly one of Leaves (hex digests) or Data (raw inputs hashed into leaves) must be set.
type CreateTreeRequest struct {
	Leaves []Digest `json:"leaves,omitempty"`
	Data   []string `json:"data,omitempty"`
}

// TreeResponse describes a committed tree
type TreeResponse struct {
	ID            string     `json:"id"`
	Root          Digest     `json:"root"`
	LeafCount     uint64     `json:"leafCount"`
	Depth         int        `json:"depth"`
	HashAlgorithm string     `json:"hashAlgorithm"`
	CreatedAt     int64      `json:"createdAt"`
	Layers        [][]Digest `json:"layers,omitempty"`
}

// TreeListResponse is returned by GET /trees
type TreeListResponse struct {
	Trees []TreeResponse `json:"trees"`
}

// RootResponse is returned by GET /trees/{id}/root
type RootResponse struct {
	ID   string `json:"id"`
	Root Digest `json:"root"`
}

// VerifyRequest is the body of POST /verify.
// HashAlgorithm is optional and defaults to the server's algorithm.
type VerifyRequest struct {
	Leaf          Digest `json:"leaf"`
	Proof         *Proof `json:"proof"`
	Root          Digest `json:"root"`
	HashAlgorithm string `json:"hashAlgorithm,omitempty"`
}

// VerifyResponse is returned by POST /verify
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

// LayoutResponse is returned by GET /layout/{count}
type LayoutResponse struct {
	LeafCount          uint64   `json:"leafCount"`
	Depth              int      `json:"depth"`
	LevelSizes         []uint64 `json:"levelSizes"`
	AdvisoryLevelSizes []uint64 `json:"advisoryLevelSizes"`
	Consistent         bool     `json:"consistent"`
	TotalSlots         uint64   `json:"totalSlots"`
}

// ErrorResponse is the JSON body written for failed requests
type ErrorResponse struct {
	Error string `json:"error"`
}
