package node

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
	"github.com/Layr-Labs/hashtree-go/pkg/merkle"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

// statusForError maps node and tree errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrTreeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManyLeaves):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, merkle.ErrEmptyInput),
		errors.Is(err, merkle.ErrIndexOutOfRange),
		errors.Is(err, merkle.ErrInvalidLeafCount),
		errors.Is(err, hasher.ErrUnknownAlgorithm):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeNodeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Sugar().Errorw("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func toTreeResponse(stored *StoredTree, includeLayers bool) (*types.TreeResponse, error) {
	root, err := stored.Tree.Root()
	if err != nil {
		return nil, err
	}
	resp := &types.TreeResponse{
		ID:            stored.ID,
		Root:          root,
		LeafCount:     stored.Tree.LeafCount(),
		Depth:         stored.Tree.Depth(),
		HashAlgorithm: stored.Tree.HasherName(),
		CreatedAt:     stored.CreatedAt,
	}
	if includeLayers {
		resp.Layers = stored.Tree.Layers()
	}
	return resp, nil
}

// handleHealth reports whether the persistence layer is reachable
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.node.persistence.HealthCheck(); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateTree builds a tree from leaf digests or raw data
func (s *Server) handleCreateTree(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req types.CreateTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	var (
		stored *StoredTree
		err    error
	)
	switch {
	case len(req.Leaves) > 0 && len(req.Data) > 0:
		err = errors.Wrap(ErrInvalidRequest, "set either leaves or data, not both")
	case len(req.Leaves) > 0:
		stored, err = s.node.CreateTree(req.Leaves)
	case len(req.Data) > 0:
		data := make([][]byte, len(req.Data))
		for i, d := range req.Data {
			data[i] = []byte(d)
		}
		stored, err = s.node.CreateTreeFromData(data)
	default:
		err = merkle.ErrEmptyInput
	}
	if err != nil {
		s.writeNodeError(w, r, err)
		return
	}

	resp, err := toTreeResponse(stored, false)
	if err != nil {
		s.writeNodeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/trees/"+stored.ID)
	writeJSON(w, http.StatusCreated, resp)
}

// handleListTrees lists every stored tree
func (s *Server) handleListTrees(w http.ResponseWriter, r *http.Request) {
	trees, err := s.node.ListTrees()
	if err != nil {
		s.writeNodeError(w, r, err)
		return
	}

	resp := types.TreeListResponse{Trees: make([]types.TreeResponse, 0, len(trees))}
	for _, stored := range trees {
		tr, err := toTreeResponse(stored, false)
		if err != nil {
			s.writeNodeError(w, r, err)
			return
		}
		resp.Trees = append(resp.Trees, *tr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetTree returns one tree, with its layers when ?layers=true
func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	includeLayers := false
	if v := r.URL.Query().Get("layers"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid layers parameter: %q", v))
			return
		}
		includeLayers = b
	}

	stored, err := s.node.GetTree(r.PathValue("id"))
	if err != nil {
		s.writeNodeError(w, r, err)
		return
	}

	resp, err := toTreeResponse(stored, includeLayers)
	if err != nil {
		s.writeNodeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteTree(w http.ResponseWriter, r *http.Request) {
	if err := s.node.DeleteTree(r.PathValue("id")); err != nil {
		s.writeNodeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRoot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stored, err := s.node.GetTree(id)
	if err != nil {
		s.writeNodeError(w, r, err)
		return
	}

	root, err := stored.Tree.Root()
	if err != nil {
		s.writeNodeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.RootResponse{ID: id, Root: root})
}

func (s *Server) handleGetProof(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(r.PathValue("index"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid leaf index: %q", r.PathValue("index")))
		return
	}

	proof, err := s.node.Prove(r.PathValue("id"), index)
	if err != nil {
		s.writeNodeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proof)
}

// handleVerify recomputes the root from a leaf and proof.
// A proof that does not verify is a 200 with valid=false, not an error.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req types.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	if req.Proof == nil {
		writeError(w, http.StatusBadRequest, "proof is required")
		return
	}

	var valid bool
	if req.HashAlgorithm == "" {
		valid = s.node.Verify(req.Leaf, req.Proof, req.Root)
	} else {
		h, err := hasher.New(req.HashAlgorithm)
		if err != nil {
			s.writeNodeError(w, r, err)
			return
		}
		valid = merkle.VerifyProof(h, req.Leaf, req.Proof, req.Root)
	}

	writeJSON(w, http.StatusOK, types.VerifyResponse{Valid: valid})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.ParseUint(r.PathValue("count"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid leaf count: %q", r.PathValue("count")))
		return
	}

	layout, err := s.node.PlanLayout(count)
	if err != nil {
		s.writeNodeError(w, r, err)
		return
	}

	if !layout.Consistent() {
		s.logger.Sugar().Debugw("Advisory layout disagrees with built layout",
			"leaf_count", count,
			"discrepancies", len(layout.Discrepancies()),
		)
	}

	writeJSON(w, http.StatusOK, types.LayoutResponse{
		LeafCount:          layout.LeafCount,
		Depth:              layout.Depth,
		LevelSizes:         layout.LevelSizes,
		AdvisoryLevelSizes: layout.AdvisoryLevelSizes,
		Consistent:         layout.Consistent(),
		TotalSlots:         layout.TotalSlots(),
	})
}
