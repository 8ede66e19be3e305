package migrate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-auth-bridge/internal/migrate"
	"github.com/target/mmk-auth-bridge/internal/testutil"
)

func TestVersions_Sorted(t *testing.T) {
	versions, err := migrate.Versions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "0001_auth_sessions", versions[0])
	assert.IsNonDecreasing(t, versions)
}

func TestRun_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	require.NoError(t, migrate.Run(ctx, db))
	require.NoError(t, migrate.Run(ctx, db))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&n))
	versions, err := migrate.Versions()
	require.NoError(t, err)
	assert.Equal(t, len(versions), n)

	var exists bool
	require.NoError(t, db.QueryRowContext(ctx, `SELECT to_regclass('auth_sessions') IS NOT NULL`).Scan(&exists))
	assert.True(t, exists)
}
