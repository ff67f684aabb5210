package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/hashtree-go/pkg/config"
	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
	"github.com/Layr-Labs/hashtree-go/pkg/logger"
	"github.com/Layr-Labs/hashtree-go/pkg/node"
	"github.com/Layr-Labs/hashtree-go/pkg/persistence"
	badgerPersistence "github.com/Layr-Labs/hashtree-go/pkg/persistence/badger"
	"github.com/Layr-Labs/hashtree-go/pkg/persistence/memory"
	"github.com/Layr-Labs/hashtree-go/pkg/persistence/postgres"
	redisPersistence "github.com/Layr-Labs/hashtree-go/pkg/persistence/redis"
)

func main() {
	// a missing .env is fine; flags and the real environment still apply
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	persistenceTypes := make([]string, len(config.SupportedPersistenceTypes))
	for i, p := range config.SupportedPersistenceTypes {
		persistenceTypes[i] = p.String()
	}

	app := &cli.App{
		Name:  "hashtree-server",
		Usage: "Merkle hash tree server",
		Description: `Builds, stores and serves binary Merkle hash trees over HTTP.

Trees are built from leaf digests or raw data, stored with their padded layers,
and answer inclusion proof and verification requests.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvPort},
			},
			&cli.StringFlag{
				Name:    "hash",
				Value:   hasher.DefaultAlgorithm,
				Usage:   fmt.Sprintf("Hash algorithm for new trees: %s", strings.Join(hasher.Names(), ", ")),
				EnvVars: []string{config.EnvHashAlgorithm},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Value:   config.DefaultPersistenceType.String(),
				Usage:   fmt.Sprintf("Persistence backend: %s", strings.Join(persistenceTypes, ", ")),
				EnvVars: []string{config.EnvPersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Value:   config.DefaultDataPath,
				Usage:   "Badger data directory",
				EnvVars: []string{config.EnvDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Value:   "localhost:6379",
				Usage:   "Redis server address (host:port)",
				EnvVars: []string{config.EnvRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for every Redis key",
				EnvVars: []string{config.EnvRedisKeyPrefix},
			},
			&cli.StringFlag{
				Name:    "postgres-url",
				Usage:   "PostgreSQL connection URL",
				EnvVars: []string{config.EnvPostgresURL},
			},
			&cli.IntFlag{
				Name:    "build-parallelism",
				Usage:   "Workers hashing large layers; <= 1 builds serially",
				EnvVars: []string{config.EnvBuildParallelism},
			},
			&cli.Uint64Flag{
				Name:    "max-leaves",
				Value:   config.DefaultMaxLeaves,
				Usage:   "Largest tree accepted by POST /trees; 0 means unlimited",
				EnvVars: []string{config.EnvMaxLeaves},
			},
			&cli.Float64Flag{
				Name:    "rate-limit",
				Usage:   "Requests per second across all clients; 0 disables limiting",
				EnvVars: []string{config.EnvRateLimit},
			},
			&cli.IntFlag{
				Name:    "rate-burst",
				Value:   config.DefaultRateBurst,
				Usage:   "Burst size of the rate limiter",
				EnvVars: []string{config.EnvRateBurst},
			},
			&cli.StringFlag{
				Name:    "auth-secret",
				Usage:   "HS256 secret required on write endpoints",
				EnvVars: []string{config.EnvAuthSecret},
			},
			&cli.StringFlag{
				Name:    "auth-jwks-url",
				Usage:   "JWKS URL used to verify bearer tokens on write endpoints",
				EnvVars: []string{config.EnvAuthJWKSURL},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvVerbose, config.EnvDebug},
			},
		},
		Action: runTreeServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runTreeServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseTreeServerConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := newPersistence(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to create persistence: %w", err)
	}

	n, err := node.NewNode(node.Config{
		Port:             cfg.Port,
		HashAlgorithm:    cfg.HashAlgorithm,
		BuildParallelism: cfg.BuildParallelism,
		MaxLeaves:        cfg.MaxLeaves,
		Server: node.ServerConfig{
			RateLimit:   cfg.RateLimit,
			RateBurst:   cfg.RateBurst,
			AuthSecret:  cfg.AuthSecret,
			AuthJWKSURL: cfg.AuthJWKSURL,
		},
		Logger: l,
	}, store)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to create node: %w", err)
	}

	if cfg.Verbose {
		l.Sugar().Infow("Tree server configuration",
			"port", cfg.Port,
			"hash_algorithm", cfg.HashAlgorithm,
			"persistence", cfg.PersistenceType,
			"build_parallelism", cfg.BuildParallelism,
			"max_leaves", cfg.MaxLeaves,
			"rate_limit", cfg.RateLimit,
			"auth_enabled", cfg.AuthEnabled(),
		)
	}

	if err := n.Start(); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to start node: %w", err)
	}

	l.Sugar().Infow("Tree server running", "port", cfg.Port)
	l.Sugar().Infow("Available endpoints",
		"trees", "POST|GET /trees, GET|DELETE /trees/{id}",
		"proofs", "GET /trees/{id}/root, GET /trees/{id}/proof/{index}",
		"verify", "POST /verify",
		"layout", "GET /layout/{count}")
	l.Sugar().Info("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	l.Sugar().Infow("Shutting down", "signal", sig.String())
	if err := n.Stop(); err != nil {
		return fmt.Errorf("failed to stop node: %w", err)
	}
	return nil
}

func parseTreeServerConfig(c *cli.Context) *config.TreeServerConfig {
	return &config.TreeServerConfig{
		Port:             c.Int("port"),
		HashAlgorithm:    c.String("hash"),
		PersistenceType:  config.PersistenceType(c.String("persistence")),
		DataPath:         c.String("data-path"),
		RedisAddress:     c.String("redis-address"),
		RedisPassword:    c.String("redis-password"),
		RedisDB:          c.Int("redis-db"),
		RedisKeyPrefix:   c.String("redis-key-prefix"),
		PostgresURL:      c.String("postgres-url"),
		BuildParallelism: c.Int("build-parallelism"),
		MaxLeaves:        c.Uint64("max-leaves"),
		RateLimit:        c.Float64("rate-limit"),
		RateBurst:        c.Int("rate-burst"),
		AuthSecret:       c.String("auth-secret"),
		AuthJWKSURL:      c.String("auth-jwks-url"),
		Debug:            c.Bool("verbose"),
		Verbose:          c.Bool("verbose"),
	}
}

// newPersistence opens the backend selected by a validated config
func newPersistence(cfg *config.TreeServerConfig, l *zap.Logger) (persistence.ITreePersistence, error) {
	switch cfg.PersistenceType {
	case config.PersistenceTypeBadger:
		return badgerPersistence.NewBadgerPersistence(cfg.DataPath, l)
	case config.PersistenceTypeRedis:
		return redisPersistence.NewRedisPersistence(&redisPersistence.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, l)
	case config.PersistenceTypePostgres:
		return postgres.NewPostgresPersistence(&postgres.PostgresConfig{URL: cfg.PostgresURL}, l)
	case config.PersistenceTypeMemory:
		return memory.NewMemoryPersistence(l), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type %q", cfg.PersistenceType)
	}
}
