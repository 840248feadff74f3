package db

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// materialLockSpace keeps material locks apart from any other advisory lock
// users of the same database (pg_advisory_lock(int4, int4) form). Material ids
// above 2^31 wrap into the int4 key, which can only over-serialise.
const materialLockSpace int32 = 0x57534b // "WSK"

// AdvisoryLocker serialises stock work on one material across every process
// sharing the database. Each lock pins a pooled connection until released.
type AdvisoryLocker struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewAdvisoryLocker(pool *pgxpool.Pool, log *slog.Logger) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool, log: log}
}

// LockMaterial blocks until the lock is held or ctx is done. The returned
// release func may be called more than once, from any goroutine.
func (l *AdvisoryLocker) LockMaterial(ctx context.Context, materialID int64) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1, $2)`, materialLockSpace, int32(materialID)); err != nil {
		conn.Release()
		return nil, fmt.Errorf("advisory lock material %d: %w", materialID, err)
	}

	var once sync.Once
	return func() { once.Do(func() { l.unlock(conn, materialID) }) }, nil
}

func (l *AdvisoryLocker) unlock(conn *pgxpool.Conn, materialID int64) {
	// unlock must run even when the caller's ctx is already cancelled
	if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1, $2)`, materialLockSpace, int32(materialID)); err != nil {
		l.log.Error("advisory unlock failed", "material_id", materialID, "err", err)
		// the session may still hold the lock; drop the connection instead of returning it
		_ = conn.Conn().Close(context.Background())
	}
	conn.Release()
}
