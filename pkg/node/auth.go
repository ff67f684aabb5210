package node

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// DefaultJWKSRefreshInterval is how often a remote key set is re-fetched
const DefaultJWKSRefreshInterval = 15 * time.Minute

// TokenVerifier authenticates the bearer token of a write request
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) error
}

// hmacVerifier accepts HS256 tokens signed with a shared secret
type hmacVerifier struct {
	secret []byte
}

// NewHMACVerifier verifies HS256 tokens signed with secret
func NewHMACVerifier(secret string) (TokenVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth secret cannot be empty")
	}
	return &hmacVerifier{secret: []byte(secret)}, nil
}

func (v *hmacVerifier) VerifyToken(_ context.Context, token string) error {
	if _, err := jwt.Parse([]byte(token), jwt.WithKey(jwa.HS256(), v.secret), jwt.WithValidate(true)); err != nil {
		return fmt.Errorf("token parsing/verification failed: %w", err)
	}
	return nil
}

// keySetVerifier accepts tokens signed by any key of a JWK set.
// The set may be a cached remote set that refreshes in the background.
type keySetVerifier struct {
	keys jwk.Set
}

// NewKeySetVerifier verifies tokens against a fixed or cached key set
func NewKeySetVerifier(keys jwk.Set) (TokenVerifier, error) {
	if keys == nil {
		return nil, fmt.Errorf("key set cannot be nil")
	}
	return &keySetVerifier{keys: keys}, nil
}

func (v *keySetVerifier) VerifyToken(_ context.Context, token string) error {
	if _, err := jwt.Parse([]byte(token), jwt.WithKeySet(v.keys), jwt.WithValidate(true)); err != nil {
		return fmt.Errorf("token parsing/verification failed: %w", err)
	}
	return nil
}

// NewJWKSVerifier fetches the key set at jwksURL once and keeps it fresh in the background
func NewJWKSVerifier(ctx context.Context, jwksURL string, refreshInterval time.Duration) (TokenVerifier, error) {
	if refreshInterval <= 0 {
		refreshInterval = DefaultJWKSRefreshInterval
	}

	keys, err := NewJWKCache(ctx, jwksURL, refreshInterval)
	if err != nil {
		return nil, err
	}
	return NewKeySetVerifier(keys)
}

// NewJWKCache registers jwkUrl with a refreshing cache and returns its cached set
func NewJWKCache(ctx context.Context, jwkUrl string, refreshInterval time.Duration) (jwk.Set, error) {
	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to create jwk cache: %w", err)
	}

	err = cache.Register(ctx, jwkUrl, jwk.WithConstantInterval(refreshInterval))
	if err != nil {
		return nil, fmt.Errorf("failed to register jwk location: %w", err)
	}

	// fetch once on startup so a bad URL fails fast
	if _, err = cache.Refresh(ctx, jwkUrl); err != nil {
		return nil, fmt.Errorf("failed to fetch on startup: %w", err)
	}

	return cache.CachedSet(jwkUrl)
}
