package pgxutil

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-auth-bridge/internal/testutil"
)

func TestWithPgxConn_RunsQueryOnNativeConn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	var got int
	err := WithPgxConn(ctx, db, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, "SELECT 41 + 1").Scan(&got)
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}
