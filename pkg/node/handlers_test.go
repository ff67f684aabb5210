package node

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

func doRequest(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createTree(t *testing.T, h http.Handler, data ...string) types.TreeResponse {
	t.Helper()
	w := doRequest(t, h, http.MethodPost, "/trees", types.CreateTreeRequest{Data: data})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[types.TreeResponse](t, w)
}

func TestHandleHealth(t *testing.T) {
	n := newTestNode(t, Config{}, nil)
	h := n.GetServer().GetHandler()

	w := doRequest(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, n.persistence.Close())
	w = doRequest(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleCreateTree(t *testing.T) {
	h := newTestNode(t, Config{MaxLeaves: 4}, nil).GetServer().GetHandler()

	t.Run("From data", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPost, "/trees", types.CreateTreeRequest{Data: []string{"a", "b", "c", "d"}})
		require.Equal(t, http.StatusCreated, w.Code)

		resp := decode[types.TreeResponse](t, w)
		assert.Equal(t, "14ede5e8e97ad9372327728f5099b95604a39593cac3bd38a343ad76205213e7", resp.Root.Hex())
		assert.Equal(t, uint64(4), resp.LeafCount)
		assert.Equal(t, 2, resp.Depth)
		assert.Equal(t, "sha256", resp.HashAlgorithm)
		assert.Equal(t, "/trees/"+resp.ID, w.Header().Get("Location"))
		assert.Nil(t, resp.Layers)
	})

	t.Run("From leaves", func(t *testing.T) {
		body := `{"leaves":["ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb","0x3e23e8160039594a33894f6564e1b1348bbd7a0088d42c4acb73eeaed59c009d"]}`
		w := doRequest(t, h, http.MethodPost, "/trees", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		resp := decode[types.TreeResponse](t, w)
		assert.Equal(t, "e5a01fee14e0ed5c48714f22180f25ad8365b53f9779f79dc4a3d7e93963f94a", resp.Root.Hex())
	})

	testCases := []struct {
		name   string
		body   any
		status int
	}{
		{"Invalid JSON", "invalid json", http.StatusBadRequest},
		{"Empty", types.CreateTreeRequest{}, http.StatusBadRequest},
		{"Both leaves and data", types.CreateTreeRequest{Leaves: []types.Digest{{1}}, Data: []string{"a"}}, http.StatusBadRequest},
		{"Bad digest", `{"leaves":["abcd"]}`, http.StatusBadRequest},
		{"Too many leaves", types.CreateTreeRequest{Data: []string{"1", "2", "3", "4", "5"}}, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(t, h, http.MethodPost, "/trees", tc.body)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[types.ErrorResponse](t, w).Error)
		})
	}

	t.Run("Method not allowed", func(t *testing.T) {
		w := doRequest(t, h, http.MethodPut, "/trees", nil)
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestHandleGetTree(t *testing.T) {
	h := newTestNode(t, Config{}, nil).GetServer().GetHandler()
	created := createTree(t, h, "a", "b", "c")

	w := doRequest(t, h, http.MethodGet, "/trees/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[types.TreeResponse](t, w)
	assert.Equal(t, created.Root, resp.Root)
	assert.Nil(t, resp.Layers)

	w = doRequest(t, h, http.MethodGet, "/trees/"+created.ID+"?layers=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[types.TreeResponse](t, w)
	require.Len(t, resp.Layers, 3)
	assert.Len(t, resp.Layers[0], 4)
	assert.Equal(t, resp.Layers[0][2], resp.Layers[0][3])
	assert.Equal(t, []types.Digest{created.Root}, resp.Layers[2])

	w = doRequest(t, h, http.MethodGet, "/trees/"+created.ID+"?layers=maybe", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, http.MethodGet, "/trees/unknown", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListAndDeleteTrees(t *testing.T) {
	h := newTestNode(t, Config{}, nil).GetServer().GetHandler()

	w := doRequest(t, h, http.MethodGet, "/trees", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[types.TreeListResponse](t, w).Trees)

	created := createTree(t, h, "a")
	createTree(t, h, "b")

	w = doRequest(t, h, http.MethodGet, "/trees", nil)
	require.Len(t, decode[types.TreeListResponse](t, w).Trees, 2)

	w = doRequest(t, h, http.MethodDelete, "/trees/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, h, http.MethodGet, "/trees/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, h, http.MethodGet, "/trees", nil)
	require.Len(t, decode[types.TreeListResponse](t, w).Trees, 1)
}

func TestHandleRootProofVerify(t *testing.T) {
	h := newTestNode(t, Config{}, nil).GetServer().GetHandler()
	created := createTree(t, h, "a", "b", "c", "d", "e")

	w := doRequest(t, h, http.MethodGet, "/trees/"+created.ID+"/root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rootResp := decode[types.RootResponse](t, w)
	assert.Equal(t, created.ID, rootResp.ID)
	assert.Equal(t, created.Root, rootResp.Root)

	for i := 0; i < 5; i++ {
		w = doRequest(t, h, http.MethodGet, fmt.Sprintf("/trees/%s/proof/%d", created.ID, i), nil)
		require.Equal(t, http.StatusOK, w.Code)
		proof := decode[types.Proof](t, w)
		assert.Equal(t, uint64(i), proof.LeafIndex)
		assert.Len(t, proof.Steps, 3)

		w = doRequest(t, h, http.MethodPost, "/verify", types.VerifyRequest{Leaf: proof.Leaf, Proof: &proof, Root: created.Root})
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[types.VerifyResponse](t, w).Valid)

		w = doRequest(t, h, http.MethodPost, "/verify", types.VerifyRequest{Leaf: proof.Leaf, Proof: &proof, Root: types.Digest{1}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decode[types.VerifyResponse](t, w).Valid)

		w = doRequest(t, h, http.MethodPost, "/verify", types.VerifyRequest{
			Leaf: proof.Leaf, Proof: &proof, Root: created.Root, HashAlgorithm: "keccak256",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decode[types.VerifyResponse](t, w).Valid)
	}

	w = doRequest(t, h, http.MethodGet, "/trees/"+created.ID+"/proof/5", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, http.MethodGet, "/trees/"+created.ID+"/proof/-1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, http.MethodGet, "/trees/unknown/proof/0", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, h, http.MethodPost, "/verify", types.VerifyRequest{Root: created.Root})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, http.MethodPost, "/verify", types.VerifyRequest{Proof: &types.Proof{}, HashAlgorithm: "md5"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// a step without a side is malformed, not a failed verification
	root := created.Root.Hex()
	w = doRequest(t, h, http.MethodPost, "/verify",
		`{"leaf":"`+root+`","root":"`+root+`","proof":{"leafIndex":0,"leaf":"`+root+`","steps":[{"sibling":"`+root+`"}]}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "side")
}

func TestHandleLayout(t *testing.T) {
	h := newTestNode(t, Config{}, nil).GetServer().GetHandler()

	w := doRequest(t, h, http.MethodGet, "/layout/5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[types.LayoutResponse](t, w)
	assert.Equal(t, uint64(5), resp.LeafCount)
	assert.Equal(t, 3, resp.Depth)
	assert.Equal(t, []uint64{1, 2, 4, 6}, resp.LevelSizes)
	assert.Equal(t, []uint64{0, 1, 2, 5}, resp.AdvisoryLevelSizes)
	assert.False(t, resp.Consistent)
	assert.Equal(t, uint64(13), resp.TotalSlots)

	w = doRequest(t, h, http.MethodGet, "/layout/8", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[types.LayoutResponse](t, w).Consistent)

	w = doRequest(t, h, http.MethodGet, "/layout/0", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, http.MethodGet, "/layout/abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// 2^64-1 leaves cannot be padded without overflowing
	w = doRequest(t, h, http.MethodGet, "/layout/18446744073709551615", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestNode(t, Config{Server: ServerConfig{RateLimit: 0.001, RateBurst: 2}}, nil).GetServer().GetHandler()

	require.Equal(t, http.StatusOK, doRequest(t, h, http.MethodGet, "/health", nil).Code)
	require.Equal(t, http.StatusOK, doRequest(t, h, http.MethodGet, "/health", nil).Code)

	w := doRequest(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
