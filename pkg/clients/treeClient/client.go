package treeClient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
	"github.com/Layr-Labs/hashtree-go/pkg/merkle"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

// DefaultTimeout bounds every request made by a Client
const DefaultTimeout = 30 * time.Second

// ClientConfig holds the configuration for the tree client
type ClientConfig struct {
	ServerURL string
	// BearerToken is sent on every request when set
	BearerToken string
	Timeout     time.Duration
	Logger      *zap.Logger
	HTTPClient  *http.Client
}

// Client talks to a hashtree server
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// APIError is returned when the server answers with a non-success status
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a new tree client
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.ServerURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if _, err := url.ParseRequestURI(config.ServerURL); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", config.ServerURL, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(config.ServerURL, "/"),
		token:      config.BearerToken,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// do sends one request and decodes a JSON response into out when out is non-nil
func (c *Client) do(ctx context.Context, method, path string, body, out any, expected int) error {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Sugar().Debugw("Sending request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to contact server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != expected {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var errResp types.ErrorResponse
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Health returns nil when the server and its persistence are reachable
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, http.StatusOK)
}

// CreateTree builds a tree on the server from leaf digests
func (c *Client) CreateTree(ctx context.Context, leaves []types.Digest) (*types.TreeResponse, error) {
	var resp types.TreeResponse
	if err := c.do(ctx, http.MethodPost, "/trees", types.CreateTreeRequest{Leaves: leaves}, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	c.logger.Sugar().Infow("Created tree", "id", resp.ID, "root", resp.Root.Hex(), "leaves", resp.LeafCount)
	return &resp, nil
}

// CreateTreeFromData builds a tree on the server, hashing each input into a leaf
func (c *Client) CreateTreeFromData(ctx context.Context, data []string) (*types.TreeResponse, error) {
	var resp types.TreeResponse
	if err := c.do(ctx, http.MethodPost, "/trees", types.CreateTreeRequest{Data: data}, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	c.logger.Sugar().Infow("Created tree", "id", resp.ID, "root", resp.Root.Hex(), "leaves", resp.LeafCount)
	return &resp, nil
}

// GetTree fetches one tree, including its padded layers when withLayers is set
func (c *Client) GetTree(ctx context.Context, id string, withLayers bool) (*types.TreeResponse, error) {
	path := "/trees/" + url.PathEscape(id)
	if withLayers {
		path += "?layers=true"
	}

	var resp types.TreeResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListTrees(ctx context.Context) ([]types.TreeResponse, error) {
	var resp types.TreeListResponse
	if err := c.do(ctx, http.MethodGet, "/trees", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Trees, nil
}

func (c *Client) DeleteTree(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/trees/"+url.PathEscape(id), nil, nil, http.StatusNoContent)
}

func (c *Client) GetRoot(ctx context.Context, id string) (types.Digest, error) {
	var resp types.RootResponse
	if err := c.do(ctx, http.MethodGet, "/trees/"+url.PathEscape(id)+"/root", nil, &resp, http.StatusOK); err != nil {
		return types.Digest{}, err
	}
	return resp.Root, nil
}

// GetProof fetches the inclusion proof for one leaf of a stored tree
func (c *Client) GetProof(ctx context.Context, id string, leafIndex uint64) (*types.Proof, error) {
	path := "/trees/" + url.PathEscape(id) + "/proof/" + strconv.FormatUint(leafIndex, 10)

	var proof types.Proof
	if err := c.do(ctx, http.MethodGet, path, nil, &proof, http.StatusOK); err != nil {
		return nil, err
	}
	return &proof, nil
}

// Verify asks the server to check a proof. An empty hashAlgorithm uses the server's.
func (c *Client) Verify(ctx context.Context, leaf types.Digest, proof *types.Proof, root types.Digest, hashAlgorithm string) (bool, error) {
	req := types.VerifyRequest{Leaf: leaf, Proof: proof, Root: root, HashAlgorithm: hashAlgorithm}

	var resp types.VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/verify", req, &resp, http.StatusOK); err != nil {
		return false, err
	}
	return resp.Valid, nil
}

func (c *Client) Layout(ctx context.Context, leafCount uint64) (*types.LayoutResponse, error) {
	var resp types.LayoutResponse
	if err := c.do(ctx, http.MethodGet, "/layout/"+strconv.FormatUint(leafCount, 10), nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProveAndVerify fetches a proof and the tree's root, then checks the proof
// locally so the result does not depend on the server's own verification.
func (c *Client) ProveAndVerify(ctx context.Context, id string, leafIndex uint64) (*types.Proof, bool, error) {
	tree, err := c.GetTree(ctx, id, false)
	if err != nil {
		return nil, false, err
	}

	h, err := hasher.New(tree.HashAlgorithm)
	if err != nil {
		return nil, false, fmt.Errorf("tree %s uses an unsupported hash: %w", id, err)
	}

	proof, err := c.GetProof(ctx, id, leafIndex)
	if err != nil {
		return nil, false, err
	}

	valid := merkle.VerifyProof(h, proof.Leaf, proof, tree.Root)
	if !valid {
		c.logger.Sugar().Warnw("Proof did not verify against the tree root",
			"id", id,
			"leaf_index", leafIndex,
			"root", tree.Root.Hex(),
		)
	}
	return proof, valid, nil
}
