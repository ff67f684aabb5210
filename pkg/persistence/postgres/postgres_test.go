package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Layr-Labs/hashtree-go/pkg/persistence"
	"github.com/Layr-Labs/hashtree-go/pkg/persistence/persistencetest"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

// requirePostgres opens a backend on a throwaway table.
// Skips unless HASHTREE_POSTGRES_TEST_URL is set.
func requirePostgres(t *testing.T) *PostgresPersistence {
	t.Helper()

	url := os.Getenv("HASHTREE_POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("HASHTREE_POSTGRES_TEST_URL not set")
	}

	table := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	pp, err := NewPostgresPersistence(&PostgresConfig{URL: url, Table: table}, zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		cleanup, err := NewPostgresPersistence(&PostgresConfig{URL: url, Table: table}, zaptest.NewLogger(t))
		if err != nil {
			return
		}
		defer func() { _ = cleanup.Close() }()
		_, _ = cleanup.pool.Exec(context.Background(),
			fmt.Sprintf("DROP TABLE IF EXISTS %s, %s", cleanup.table, cleanup.metaTable))
	})

	return pp
}

func TestPostgresPersistence_Compliance(t *testing.T) {
	persistencetest.TestPersistenceCompliance(t, func(t *testing.T) persistence.ITreePersistence {
		return requirePostgres(t)
	})
}

func TestPostgresPersistence_InvalidConfig(t *testing.T) {
	l := zaptest.NewLogger(t)

	_, err := NewPostgresPersistence(nil, l)
	require.ErrorContains(t, err, "config cannot be nil")

	_, err = NewPostgresPersistence(&PostgresConfig{}, l)
	require.ErrorContains(t, err, "URL cannot be empty")

	_, err = NewPostgresPersistence(&PostgresConfig{URL: "postgres://localhost/db", Table: "trees; DROP TABLE x"}, l)
	require.ErrorContains(t, err, "invalid postgres table name")
}

func TestLeafEncoding(t *testing.T) {
	leaves := []types.Digest{{1}, {2}, {3}}
	encoded := encodeLeaves(leaves)
	require.Len(t, encoded, 3*types.DigestSize)

	decoded, err := decodeLeaves(encoded)
	require.NoError(t, err)
	assert.Equal(t, leaves, decoded)

	_, err = decodeLeaves(encoded[:40])
	require.ErrorContains(t, err, "not a multiple of 32")
}
