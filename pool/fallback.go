package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hollowlabs/guardrail/resilience"
)

// directFallback holds the single ad-hoc connection used while the
// wrapped pool is degraded. It opens at most one connection object and
// funnels all degraded-mode acquisitions through it: a bulkhead of one
// serializes callers, and the lazily opened database handle is capped
// at a single connection. It is torn down the moment health is
// restored.
type directFallback struct {
	driver  string
	dsn     string
	timeout time.Duration

	bulkhead *resilience.Bulkhead

	mu sync.Mutex
	db *sqlx.DB
}

func newDirectFallback(driver, dsn string, maxWait, timeout time.Duration) *directFallback {
	return &directFallback{
		driver:  driver,
		dsn:     dsn,
		timeout: timeout,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: 1,
			MaxWait:       maxWait,
		}),
	}
}

// acquire serializes on the bulkhead, lazily opens the single direct
// connection, and hands it out. The bulkhead slot is held until the
// matching release.
func (f *directFallback) acquire(ctx context.Context) (*Conn, error) {
	if err := f.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}

	db, err := f.open(ctx)
	if err != nil {
		f.bulkhead.Release()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	conn, err := db.Connx(ctx)
	if err != nil {
		f.bulkhead.Release()
		return nil, fmt.Errorf("pool: direct fallback acquire: %w", err)
	}

	return &Conn{ID: uuid.NewString(), DB: conn, fallback: true}, nil
}

func (f *directFallback) open(ctx context.Context) (*sqlx.DB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.db != nil {
		return f.db, nil
	}

	db, err := sqlx.ConnectContext(ctx, f.driver, f.dsn)
	if err != nil {
		return nil, fmt.Errorf("pool: direct fallback connect: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	f.db = db
	return db, nil
}

// release returns the fallback connection and frees the bulkhead slot.
func (f *directFallback) release(conn *Conn) error {
	defer f.bulkhead.Release()
	if conn == nil || conn.DB == nil {
		return nil
	}
	return conn.DB.Close()
}

// close tears down the fallback connection. Safe to call repeatedly.
func (f *directFallback) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.db == nil {
		return nil
	}
	err := f.db.Close()
	f.db = nil
	return err
}
