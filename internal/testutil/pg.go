// Package testutil gives repository tests a migrated, empty Postgres.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/workstock/internal/infra/db"
)

// DSNEnv names the variable that enables Postgres-backed tests.
const DSNEnv = "WORKSTOCK_TEST_DSN"

// go test runs packages in parallel; they all share one database.
const testLockKey int64 = 0x57534b_7465737

// Pool skips the test unless WORKSTOCK_TEST_DSN is set. Otherwise it takes a
// database-wide test lock, applies the migrations, truncates every table and
// returns a pool. Lock and pool are released on cleanup.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", DSNEnv)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn, 8)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, testLockKey)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, testLockKey)
		conn.Release()
	})

	require.NoError(t, db.Migrate(dsn, slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err = pool.Exec(ctx, `TRUNCATE order_materials, orders, materials RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}
