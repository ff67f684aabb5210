package node

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
	"github.com/Layr-Labs/hashtree-go/pkg/logger"
	"github.com/Layr-Labs/hashtree-go/pkg/merkle"
	"github.com/Layr-Labs/hashtree-go/pkg/persistence"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

// Node owns the built trees of one tree server: it builds them, persists their
// leaves and serves roots and proofs from an in-memory cache.
type Node struct {
	Port int

	hasher      hasher.Hasher
	persistence persistence.ITreePersistence
	server      *Server
	logger      *zap.Logger

	buildOpts []merkle.BuildOption
	maxLeaves uint64

	// trees caches built trees by ID; persistence is the source of truth
	trees map[string]*StoredTree
	// deletions counts DeleteTree calls; a cache fill that raced one is dropped
	deletions uint64
	mu        sync.RWMutex

	now func() time.Time
}

// StoredTree is a built tree together with its service metadata
type StoredTree struct {
	ID        string
	CreatedAt int64
	Tree      *merkle.HashTree
}

// Config holds node configuration
type Config struct {
	Port int

	// HashAlgorithm names the hasher for new trees (see pkg/hasher). Empty selects sha256.
	HashAlgorithm string

	// BuildParallelism > 1 hashes large layers concurrently
	BuildParallelism int

	// MaxLeaves rejects larger create requests; 0 means unlimited
	MaxLeaves uint64

	Server ServerConfig

	Logger *zap.Logger // Optional logger, will create default if nil
}

// NewNode creates a new node instance backed by the given persistence layer
func NewNode(cfg Config, p persistence.ITreePersistence) (*Node, error) {
	if p == nil {
		return nil, errors.New("persistence cannot be nil")
	}

	nodeLogger := cfg.Logger
	if nodeLogger == nil {
		nodeLogger, _ = logger.NewLogger(&logger.LoggerConfig{Debug: false})
	}

	h, err := hasher.New(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	var buildOpts []merkle.BuildOption
	if cfg.BuildParallelism > 1 {
		buildOpts = append(buildOpts, merkle.WithParallelism(cfg.BuildParallelism))
	}

	n := &Node{
		Port:        cfg.Port,
		hasher:      h,
		persistence: p,
		logger:      nodeLogger,
		buildOpts:   buildOpts,
		maxLeaves:   cfg.MaxLeaves,
		trees:       make(map[string]*StoredTree),
		now:         time.Now,
	}

	n.server, err = NewServer(n, cfg.Port, cfg.Server)
	if err != nil {
		return nil, err
	}

	return n, nil
}

// Start checks the persistence layer and starts the node's HTTP server
func (n *Node) Start() error {
	if err := n.persistence.HealthCheck(); err != nil {
		return errors.Wrap(err, "persistence health check failed")
	}

	n.logger.Sugar().Infow("Starting tree node",
		"port", n.Port,
		"hash_algorithm", n.hasher.Name(),
		"max_leaves", n.maxLeaves,
	)
	return n.server.Start()
}

// Stop stops the HTTP server and closes persistence
func (n *Node) Stop() error {
	serverErr := n.server.Stop()
	if err := n.persistence.Close(); err != nil {
		return errors.Wrap(err, "failed to close persistence")
	}
	return serverErr
}

// GetServer returns the node's HTTP server
func (n *Node) GetServer() *Server {
	return n.server
}

// HasherName returns the algorithm used for new trees
func (n *Node) HasherName() string {
	return n.hasher.Name()
}

// CreateTree builds a tree over leaf digests, persists it and caches it.
func (n *Node) CreateTree(leaves []types.Digest) (*StoredTree, error) {
	if n.maxLeaves > 0 && uint64(len(leaves)) > n.maxLeaves {
		return nil, errors.Wrapf(ErrTooManyLeaves, "%d leaves exceeds limit of %d", len(leaves), n.maxLeaves)
	}

	tree, err := merkle.Build(n.hasher, leaves, n.buildOpts...)
	if err != nil {
		return nil, err
	}
	root, err := tree.Root()
	if err != nil {
		return nil, err
	}

	stored := &StoredTree{
		ID:        uuid.NewString(),
		CreatedAt: n.now().Unix(),
		Tree:      tree,
	}

	record := &persistence.TreeRecord{
		ID:            stored.ID,
		HashAlgorithm: tree.HasherName(),
		Leaves:        tree.Leaves(),
		Root:          root,
		LeafCount:     tree.LeafCount(),
		CreatedAt:     stored.CreatedAt,
	}
	if err := n.persistence.SaveTree(record); err != nil {
		return nil, errors.Wrap(err, "failed to persist tree")
	}

	n.mu.Lock()
	n.trees[stored.ID] = stored
	n.mu.Unlock()

	n.logger.Sugar().Infow("Created tree",
		"id", stored.ID,
		"leaf_count", tree.LeafCount(),
		"depth", tree.Depth(),
		"root", root.Hex(),
	)
	return stored, nil
}

// CreateTreeFromData hashes each input into a leaf and calls CreateTree
func (n *Node) CreateTreeFromData(data [][]byte) (*StoredTree, error) {
	if n.maxLeaves > 0 && uint64(len(data)) > n.maxLeaves {
		return nil, errors.Wrapf(ErrTooManyLeaves, "%d leaves exceeds limit of %d", len(data), n.maxLeaves)
	}
	if len(data) == 0 {
		return nil, merkle.ErrEmptyInput
	}
	return n.CreateTree(merkle.HashLeaves(n.hasher, data))
}

// GetTree returns a built tree, rebuilding it from persistence on a cache miss.
// The rebuilt root must equal the stored root.
func (n *Node) GetTree(id string) (*StoredTree, error) {
	n.mu.RLock()
	stored, ok := n.trees[id]
	epoch := n.deletions
	n.mu.RUnlock()
	if ok {
		return stored, nil
	}

	record, err := n.persistence.LoadTree(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tree %s", id)
	}
	if record == nil {
		return nil, errors.Wrapf(ErrTreeNotFound, "id %s", id)
	}

	stored, err = n.rebuild(record)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	raced := n.deletions != epoch
	if !raced {
		// Another request may have rebuilt it concurrently; keep the first
		if existing, ok := n.trees[id]; ok {
			stored = existing
		} else {
			n.trees[id] = stored
		}
	}
	n.mu.Unlock()

	if raced {
		// A delete ran while the record was loading; only serve the tree if it survived
		record, err = n.persistence.LoadTree(id)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load tree %s", id)
		}
		if record == nil {
			return nil, errors.Wrapf(ErrTreeNotFound, "id %s", id)
		}
	}

	return stored, nil
}

func (n *Node) rebuild(record *persistence.TreeRecord) (*StoredTree, error) {
	h, err := hasher.New(record.HashAlgorithm)
	if err != nil {
		return nil, errors.Wrapf(err, "tree %s", record.ID)
	}

	tree, err := merkle.Build(h, record.Leaves, n.buildOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to rebuild tree %s", record.ID)
	}
	root, err := tree.Root()
	if err != nil {
		return nil, err
	}
	if root != record.Root {
		n.logger.Sugar().Errorw("Persisted tree failed root check",
			"id", record.ID,
			"stored_root", record.Root.Hex(),
			"rebuilt_root", root.Hex(),
		)
		return nil, errors.Wrapf(ErrRootMismatch, "tree %s", record.ID)
	}

	n.logger.Sugar().Debugw("Rebuilt tree from persistence", "id", record.ID, "leaf_count", record.LeafCount)
	return &StoredTree{
		ID:        record.ID,
		CreatedAt: record.CreatedAt,
		Tree:      tree,
	}, nil
}

// ListTrees returns every persisted tree, oldest first
func (n *Node) ListTrees() ([]*StoredTree, error) {
	records, err := n.persistence.ListTrees()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list trees")
	}

	out := make([]*StoredTree, 0, len(records))
	for _, record := range records {
		stored, err := n.GetTree(record.ID)
		if err != nil {
			n.logger.Sugar().Warnw("Skipping unreadable tree", "id", record.ID, "error", err)
			continue
		}
		out = append(out, stored)
	}
	return out, nil
}

// DeleteTree removes a tree from persistence and the cache. Deleting a missing tree is not an error.
func (n *Node) DeleteTree(id string) error {
	if err := n.persistence.DeleteTree(id); err != nil {
		return errors.Wrapf(err, "failed to delete tree %s", id)
	}

	n.mu.Lock()
	delete(n.trees, id)
	n.deletions++
	n.mu.Unlock()

	n.logger.Sugar().Infow("Deleted tree", "id", id)
	return nil
}

// Prove returns an inclusion proof for one leaf of a stored tree
func (n *Node) Prove(id string, leafIndex uint64) (*types.Proof, error) {
	stored, err := n.GetTree(id)
	if err != nil {
		return nil, err
	}
	return stored.Tree.Prove(leafIndex)
}

// Verify checks a proof against an expected root with the node's hasher
func (n *Node) Verify(leaf types.Digest, proof *types.Proof, root types.Digest) bool {
	return merkle.VerifyProof(n.hasher, leaf, proof, root)
}

// PlanLayout returns the planned level sizes for leafCount leaves
func (n *Node) PlanLayout(leafCount uint64) (*merkle.Layout, error) {
	return merkle.PlanLayout(leafCount)
}
