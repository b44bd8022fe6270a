//go:build postgres_integration

package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(t.Context(), dsn)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Ping(t.Context()))
	require.NoError(t, p.Migrate(t.Context()))
	require.NoError(t, p.Migrate(t.Context()), "migrations are idempotent")

	exerciseStore(t, p)

	_, _, err = p.ListRuns(t.Context(), "", 1)
	require.NoError(t, err)
}
