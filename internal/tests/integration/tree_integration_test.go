package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Layr-Labs/hashtree-go/internal/tests"
	"github.com/Layr-Labs/hashtree-go/pkg/clients/treeClient"
	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
	"github.com/Layr-Labs/hashtree-go/pkg/merkle"
	"github.com/Layr-Labs/hashtree-go/pkg/node"
	"github.com/Layr-Labs/hashtree-go/pkg/persistence/badger"
)

// startNode runs a node on a free port backed by badger at dataPath
func startNode(t *testing.T, dataPath string, hashAlgorithm string) (*node.Node, *treeClient.Client) {
	t.Helper()
	l := zaptest.NewLogger(t)

	port, err := tests.GetFreePort()
	require.NoError(t, err)

	store, err := badger.NewBadgerPersistence(dataPath, l)
	require.NoError(t, err)

	n, err := node.NewNode(node.Config{
		Port:             port,
		HashAlgorithm:    hashAlgorithm,
		BuildParallelism: 4,
		Logger:           l,
	}, store)
	require.NoError(t, err)
	require.NoError(t, n.Start())

	client, err := treeClient.NewClient(&treeClient.ClientConfig{
		ServerURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		Timeout:   5 * time.Second,
		Logger:    l,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, tests.WaitFor(ctx, 50*time.Millisecond, client.Health))

	return n, client
}

// Test_TreeServiceIntegration builds trees over HTTP, restarts the node and
// checks that proofs served from rebuilt trees still verify.
func Test_TreeServiceIntegration(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "trees")
	ctx := context.Background()

	n, client := startNode(t, dataPath, hasher.AlgorithmSHA256)

	data := make([]string, 37)
	for i := range data {
		data[i] = fmt.Sprintf("record-%d", i)
	}
	created, err := client.CreateTreeFromData(ctx, data)
	require.NoError(t, err)
	require.Equal(t, uint64(37), created.LeafCount)
	require.Equal(t, 6, created.Depth)

	// the served root matches a local build
	local, err := merkle.BuildFromData(hasher.SHA256{}, toBytes(data))
	require.NoError(t, err)
	localRoot, err := local.Root()
	require.NoError(t, err)
	require.Equal(t, localRoot, created.Root)

	layout, err := client.Layout(ctx, created.LeafCount)
	require.NoError(t, err)
	require.False(t, layout.Consistent)

	require.NoError(t, n.Stop())

	// a fresh node with a different default hash rebuilds from the stored record
	n, client = startNode(t, dataPath, hasher.AlgorithmKeccak256)
	defer func() { _ = n.Stop() }()

	trees, err := client.ListTrees(ctx)
	require.NoError(t, err)
	require.Len(t, trees, 1)
	require.Equal(t, created.ID, trees[0].ID)
	require.Equal(t, hasher.AlgorithmSHA256, trees[0].HashAlgorithm)

	for _, index := range []uint64{0, 17, 35, 36} {
		proof, valid, err := client.ProveAndVerify(ctx, created.ID, index)
		require.NoError(t, err)
		require.True(t, valid, "index %d", index)
		require.Equal(t, 6, proof.Len())

		ok, err := client.Verify(ctx, proof.Leaf, proof, created.Root, hasher.AlgorithmSHA256)
		require.NoError(t, err)
		require.True(t, ok)

		// the node's default hash is now keccak, so the same proof fails without naming sha256
		ok, err = client.Verify(ctx, proof.Leaf, proof, created.Root, "")
		require.NoError(t, err)
		require.False(t, ok)
	}

	_, err = client.GetProof(ctx, created.ID, 37)
	require.Error(t, err)

	require.NoError(t, client.DeleteTree(ctx, created.ID))
	trees, err = client.ListTrees(ctx)
	require.NoError(t, err)
	require.Empty(t, trees)
}

func toBytes(data []string) [][]byte {
	out := make([][]byte, len(data))
	for i, d := range data {
		out[i] = []byte(d)
	}
	return out
}
