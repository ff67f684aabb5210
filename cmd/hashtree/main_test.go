package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zaptest"

	"github.com/Layr-Labs/hashtree-go/pkg/node"
	"github.com/Layr-Labs/hashtree-go/pkg/persistence/memory"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

const (
	rootAB   = "e5a01fee14e0ed5c48714f22180f25ad8365b53f9779f79dc4a3d7e93963f94a"
	rootABC  = "d31a37ef6ac14a2db1470c4316beb5592e6afd4465022339adafda76a18ffabe"
	rootABCD = "14ede5e8e97ad9372327728f5099b95604a39593cac3bd38a343ad76205213e7"
	hashA    = "ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb"
	hashB    = "3e23e8160039594a33894f6564e1b1348bbd7a0088d42c4acb73eeaed59c009d"
)

// runCLI runs the app with the given arguments and returns stdout
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer

	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"hashtree", "--no-color"}, args...))
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	out, err := runCLI(t, "", "root", "--data", "a", "--data", "b")
	require.NoError(t, err)
	assert.Equal(t, rootAB+"\n", out)

	out, err = runCLI(t, "", "root", "--leaf", hashA, "--leaf", hashB)
	require.NoError(t, err)
	assert.Equal(t, rootAB+"\n", out)

	out, err = runCLI(t, "a\nb\nc\n", "root", "--file", "-")
	require.NoError(t, err)
	assert.Equal(t, rootABC+"\n", out)

	path := filepath.Join(t.TempDir(), "leaves.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\nd\n"), 0o600))
	out, err = runCLI(t, "", "root", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, rootABCD+"\n", out)
}

func TestRootCommandErrors(t *testing.T) {
	_, err := runCLI(t, "", "root")
	require.Error(t, err)

	_, err = runCLI(t, "", "root", "--data", "a", "--leaf", hashA)
	require.Error(t, err)

	_, err = runCLI(t, "", "root", "--leaf", "zz")
	require.Error(t, err)

	_, err = runCLI(t, "", "--hash", "md5", "root", "--data", "a")
	require.Error(t, err)

	_, err = runCLI(t, "", "root", "--file", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestHashFlag(t *testing.T) {
	sha, err := runCLI(t, "", "root", "--data", "a", "--data", "b")
	require.NoError(t, err)
	keccak, err := runCLI(t, "", "--hash", "keccak256", "root", "--data", "a", "--data", "b")
	require.NoError(t, err)
	assert.NotEqual(t, sha, keccak)
}

func TestProveAndVerifyCommands(t *testing.T) {
	out, err := runCLI(t, "", "prove", "--data", "a", "--data", "b", "--data", "c", "--index", "2")
	require.NoError(t, err)

	var proof types.Proof
	require.NoError(t, json.Unmarshal([]byte(out), &proof))
	require.Equal(t, uint64(2), proof.LeafIndex)
	require.Len(t, proof.Steps, 2)
	// the padded duplicate of c is its own sibling
	require.Equal(t, proof.Leaf, proof.Steps[0].Sibling)
	require.Equal(t, types.SideRight, proof.Steps[0].Side)

	out, err = runCLI(t, out, "verify", "--root", rootABC)
	require.NoError(t, err)
	assert.Equal(t, "VALID\n", out)

	proofPath := filepath.Join(t.TempDir(), "proof.json")
	proofJSON, err := json.Marshal(proof)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(proofPath, proofJSON, 0o600))

	out, err = runCLI(t, "", "verify", "--proof", proofPath, "--root", rootABC, "--data", "c")
	require.NoError(t, err)
	assert.Equal(t, "VALID\n", out)

	out, err = runCLI(t, "", "verify", "--proof", proofPath, "--root", rootABC, "--data", "a")
	require.Error(t, err)
	assert.Equal(t, "INVALID\n", out)
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())

	_, err = runCLI(t, "", "verify", "--proof", proofPath, "--root", rootAB)
	require.Error(t, err)
}

func TestVerifyRejectsStepWithoutSide(t *testing.T) {
	proof := `{"leafIndex":0,"leaf":"` + hashA + `","steps":[{"sibling":"` + hashB + `"}]}`
	out, err := runCLI(t, proof, "verify", "--root", rootAB)
	require.ErrorContains(t, err, "side")
	assert.NotContains(t, out, "INVALID")
}

func TestProveOutOfRange(t *testing.T) {
	_, err := runCLI(t, "", "prove", "--data", "a", "--index", "1")
	require.Error(t, err)
}

func TestLayoutCommand(t *testing.T) {
	out, err := runCLI(t, "", "layout", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "depth: 3")
	assert.Contains(t, out, "level 3: 6 (advisory 5)")
	assert.Contains(t, out, "total slots: 13")
	assert.Contains(t, out, "under-allocates 4 level(s)")

	out, err = runCLI(t, "", "layout", "8")
	require.NoError(t, err)
	assert.NotContains(t, out, "under-allocates")

	_, err = runCLI(t, "", "layout", "0")
	require.Error(t, err)

	_, err = runCLI(t, "", "layout", "many")
	require.Error(t, err)

	_, err = runCLI(t, "", "layout", "18446744073709551615")
	require.Error(t, err)
}

func TestDumpCommand(t *testing.T) {
	out, err := runCLI(t, "", "dump", "--data", "a", "--data", "b", "--data", "c")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "level 0: "+rootABC, lines[0])
	assert.Len(t, strings.Fields(lines[2]), 2+4)

	out, err = runCLI(t, "", "dump", "--json", "--data", "a", "--data", "b")
	require.NoError(t, err)
	var layers [][]types.Digest
	require.NoError(t, json.Unmarshal([]byte(out), &layers))
	require.Len(t, layers, 2)
	assert.Equal(t, rootAB, layers[1][0].Hex())
}

func TestRemoteCommands(t *testing.T) {
	n, err := node.NewNode(node.Config{Logger: zaptest.NewLogger(t)}, memory.NewMemoryPersistence(nil))
	require.NoError(t, err)
	srv := httptest.NewServer(n.GetServer().GetHandler())
	defer srv.Close()

	out, err := runCLI(t, "", "remote", "--server", srv.URL, "create", "--data", "a", "--data", "b", "--data", "c", "--data", "d")
	require.NoError(t, err)
	var created types.TreeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	require.Equal(t, rootABCD, created.Root.Hex())

	out, err = runCLI(t, "", "remote", "--server", srv.URL, "list")
	require.NoError(t, err)
	assert.Contains(t, out, created.ID)

	out, err = runCLI(t, "", "remote", "--server", srv.URL, "get", "--layers", created.ID)
	require.NoError(t, err)
	var tree types.TreeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &tree))
	require.Len(t, tree.Layers, 3)

	out, err = runCLI(t, "", "remote", "--server", srv.URL, "prove", created.ID, "1")
	require.NoError(t, err)
	var proof types.Proof
	require.NoError(t, json.Unmarshal([]byte(out), &proof))
	require.Equal(t, hashB, proof.Leaf.Hex())

	out, err = runCLI(t, "", "remote", "--server", srv.URL, "layout", "3")
	require.NoError(t, err)
	var layout types.LayoutResponse
	require.NoError(t, json.Unmarshal([]byte(out), &layout))
	require.False(t, layout.Consistent)

	_, err = runCLI(t, "", "remote", "--server", srv.URL, "delete", created.ID)
	require.NoError(t, err)

	_, err = runCLI(t, "", "remote", "--server", srv.URL, "get", created.ID)
	require.Error(t, err)
}
