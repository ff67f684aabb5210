package config

import (
	"fmt"
	"net/url"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
)

// Environment variable names for tree server configuration
const (
	EnvPort             = "HASHTREE_PORT"
	EnvHashAlgorithm    = "HASHTREE_HASH_ALGORITHM"
	EnvPersistenceType  = "HASHTREE_PERSISTENCE_TYPE"
	EnvDataPath         = "HASHTREE_DATA_PATH"
	EnvRedisAddress     = "HASHTREE_REDIS_ADDRESS"
	EnvRedisPassword    = "HASHTREE_REDIS_PASSWORD"
	EnvRedisDB          = "HASHTREE_REDIS_DB"
	EnvRedisKeyPrefix   = "HASHTREE_REDIS_KEY_PREFIX"
	EnvPostgresURL      = "HASHTREE_POSTGRES_URL"
	EnvBuildParallelism = "HASHTREE_BUILD_PARALLELISM"
	EnvMaxLeaves        = "HASHTREE_MAX_LEAVES"
	EnvRateLimit        = "HASHTREE_RATE_LIMIT"
	EnvRateBurst        = "HASHTREE_RATE_BURST"
	EnvAuthSecret       = "HASHTREE_AUTH_SECRET"
	EnvAuthJWKSURL      = "HASHTREE_AUTH_JWKS_URL"
	EnvDebug            = "HASHTREE_DEBUG"
	EnvVerbose          = "HASHTREE_VERBOSE"
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory   PersistenceType = "memory"
	PersistenceTypeBadger   PersistenceType = "badger"
	PersistenceTypeRedis    PersistenceType = "redis"
	PersistenceTypePostgres PersistenceType = "postgres"
)

// SupportedPersistenceTypes lists every accepted PersistenceType value
var SupportedPersistenceTypes = []PersistenceType{
	PersistenceTypeMemory,
	PersistenceTypeBadger,
	PersistenceTypeRedis,
	PersistenceTypePostgres,
}

// Defaults applied by the CLI flags
const (
	DefaultPort            = 8080
	DefaultPersistenceType = PersistenceTypeMemory
	DefaultDataPath        = "./data/hashtree"
	DefaultMaxLeaves       = 1 << 20
	DefaultRateBurst       = 20
	MinAuthSecretLength    = 32
)

// TreeServerConfig represents the complete configuration for a tree server
type TreeServerConfig struct {
	Port          int    `json:"port"`
	HashAlgorithm string `json:"hash_algorithm"`

	// Persistence
	PersistenceType PersistenceType `json:"persistence_type"`
	DataPath        string          `json:"data_path"` // badger only
	RedisAddress    string          `json:"redis_address"`
	RedisPassword   string          `json:"-"`
	RedisDB         int             `json:"redis_db"`
	RedisKeyPrefix  string          `json:"redis_key_prefix"`
	PostgresURL     string          `json:"-"`

	// Tree construction
	BuildParallelism int    `json:"build_parallelism"` // <= 1 builds serially
	MaxLeaves        uint64 `json:"max_leaves"`        // 0 means unlimited

	// Request limiting; RateLimit <= 0 disables the limiter
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// Write endpoints require a bearer JWT when either is set
	AuthSecret  string `json:"-"`
	AuthJWKSURL string `json:"auth_jwks_url"`

	// Operational settings
	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// AuthEnabled reports whether write endpoints require a token
func (c *TreeServerConfig) AuthEnabled() bool {
	return c.AuthSecret != "" || c.AuthJWKSURL != ""
}

// Validate validates the tree server configuration and normalizes
// HashAlgorithm and PersistenceType to lower case.
func (c *TreeServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "must be between 1-65535"))
	}

	c.HashAlgorithm = strings.ToLower(strings.TrimSpace(c.HashAlgorithm))
	if c.HashAlgorithm == "" {
		c.HashAlgorithm = hasher.DefaultAlgorithm
	}
	if _, err := hasher.New(c.HashAlgorithm); err != nil {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("hashAlgorithm"), c.HashAlgorithm, hasher.Names()))
	}

	c.PersistenceType = PersistenceType(strings.ToLower(string(c.PersistenceType)))
	if c.PersistenceType == "" {
		c.PersistenceType = DefaultPersistenceType
	}
	switch c.PersistenceType {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if c.DataPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if c.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDB"), c.RedisDB, "must be between 0-15"))
		}
	case PersistenceTypePostgres:
		if c.PostgresURL == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("postgresURL"), "postgresURL is required for postgres persistence"))
		}
	default:
		supported := make([]string, len(SupportedPersistenceTypes))
		for i, p := range SupportedPersistenceTypes {
			supported[i] = p.String()
		}
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType.String(), supported))
	}

	if c.BuildParallelism < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("buildParallelism"), c.BuildParallelism, "cannot be negative"))
	}

	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "cannot be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateBurst"), c.RateBurst, "must be at least 1 when rateLimit is set"))
	}

	if c.AuthSecret != "" && c.AuthJWKSURL != "" {
		allErrors = append(allErrors, field.Forbidden(field.NewPath("authJWKSURL"), "set either authSecret or authJWKSURL, not both"))
	}
	if c.AuthSecret != "" && len(c.AuthSecret) < MinAuthSecretLength {
		allErrors = append(allErrors, field.Invalid(field.NewPath("authSecret"), "<redacted>",
			fmt.Sprintf("must be at least %d bytes", MinAuthSecretLength)))
	}
	if c.AuthJWKSURL != "" {
		if u, err := url.Parse(c.AuthJWKSURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			allErrors = append(allErrors, field.Invalid(field.NewPath("authJWKSURL"), c.AuthJWKSURL, "must be an absolute http(s) URL"))
		}
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
