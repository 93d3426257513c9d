// Package pool wraps a database connection pool with failure detection,
// graceful degradation, and automatic recovery.
//
// SQLPool adapts database/sql's pooling (through sqlx) to the Pool
// interface. ResilientPool guards it: while healthy, acquisitions run
// under a retrying executor; once retries are exhausted the pool is
// marked degraded and a single serialized direct connection serves
// callers until a probe or pool recreation restores health.
//
// Acquisition is the one operation in this module with no safe neutral
// fallback. When the direct connection is disabled or itself fails,
// Acquire returns ErrNoFallback and the caller decides what to do.
//
// Typical usage:
//
//	inner := pool.NewSQLPool(pool.SQLPoolConfig{DSN: dsn})
//	p := pool.NewResilientPool(inner, pool.ResilientPoolConfig{DSN: dsn})
//	if err := p.Initialize(ctx); err != nil {
//		return err
//	}
//	defer p.Close()
//
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//		return err
//	}
//	defer p.Release(conn)
package pool
