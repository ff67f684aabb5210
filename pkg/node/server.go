package node

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

/*
Server exposes a Node over HTTP.

Read endpoints:
  GET  /health                     persistence health
  GET  /trees                      every stored tree, oldest first
  GET  /trees/{id}                 tree summary; ?layers=true adds the padded layers
  GET  /trees/{id}/root            root digest
  GET  /trees/{id}/proof/{index}   inclusion proof for one leaf
  POST /verify                     recompute a root from leaf + proof
  GET  /layout/{count}             planned level sizes for a leaf count

Write endpoints (bearer JWT when auth is configured):
  POST   /trees       build and store a tree from leaf digests or raw data
  DELETE /trees/{id}  remove a tree

Every route passes through a shared token bucket when RateLimit > 0.
*/
type Server struct {
	node       *Node
	httpServer *http.Server
	verifier   TokenVerifier
	logger     *zap.Logger
}

// ServerConfig holds the HTTP-facing settings of a node
type ServerConfig struct {
	// RateLimit is requests per second across all clients; <= 0 disables limiting
	RateLimit float64
	RateBurst int

	// AuthSecret enables HS256 bearer tokens on write endpoints
	AuthSecret string
	// AuthJWKSURL enables bearer tokens verified against a remote key set
	AuthJWKSURL         string
	JWKSRefreshInterval time.Duration

	// TokenVerifier overrides AuthSecret and AuthJWKSURL when set
	TokenVerifier TokenVerifier
}

const (
	maxRequestBodyBytes = 32 << 20
	shutdownTimeout     = 10 * time.Second
)

// NewServer creates a new server instance
func NewServer(node *Node, port int, cfg ServerConfig) (*Server, error) {
	s := &Server{
		node:   node,
		logger: node.logger,
	}

	switch {
	case cfg.TokenVerifier != nil:
		s.verifier = cfg.TokenVerifier
	case cfg.AuthSecret != "":
		v, err := NewHMACVerifier(cfg.AuthSecret)
		if err != nil {
			return nil, err
		}
		s.verifier = v
	case cfg.AuthJWKSURL != "":
		v, err := NewJWKSVerifier(context.Background(), cfg.AuthJWKSURL, cfg.JWKSRefreshInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWKS auth: %w", err)
		}
		s.verifier = v
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /trees", s.requireAuth(s.handleCreateTree))
	mux.HandleFunc("GET /trees", s.handleListTrees)
	mux.HandleFunc("GET /trees/{id}", s.handleGetTree)
	mux.Handle("DELETE /trees/{id}", s.requireAuth(s.handleDeleteTree))
	mux.HandleFunc("GET /trees/{id}/root", s.handleGetRoot)
	mux.HandleFunc("GET /trees/{id}/proof/{index}", s.handleGetProof)

	mux.HandleFunc("POST /verify", s.handleVerify)
	mux.HandleFunc("GET /layout/{count}", s.handleLayout)

	var handler http.Handler = mux
	if cfg.RateLimit > 0 {
		handler = s.rateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst), handler)
	}
	handler = s.logRequests(handler)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "port", s.httpServer.Addr, "auth", s.verifier != nil)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the HTTP server down
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
