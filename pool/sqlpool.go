package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// SQLPoolConfig configures the sqlx-backed pool adapter.
type SQLPoolConfig struct {
	// DSN is the database connection string. Required.
	DSN string

	// Driver is the database/sql driver name.
	// Default: "postgres"
	Driver string

	// MaxOpenConns limits established connections.
	// Default: 25
	MaxOpenConns int

	// MaxIdleConns limits idle connections kept for reuse.
	// Default: 5
	MaxIdleConns int

	// ConnMaxLifetime recycles connections after this age.
	// Default: 5 minutes
	ConnMaxLifetime time.Duration

	// AcquireTimeout bounds a single checkout.
	// Default: 5 seconds
	AcquireTimeout time.Duration
}

// SQLPool adapts a database/sql connection pool (through sqlx) to the
// Pool contract. The pooling itself is database/sql's; this adapter
// only shapes it.
type SQLPool struct {
	config SQLPoolConfig

	mu sync.Mutex
	db *sqlx.DB
}

// NewSQLPool creates an uninitialized pool adapter.
func NewSQLPool(config SQLPoolConfig) *SQLPool {
	// Apply defaults
	if config.Driver == "" {
		config.Driver = "postgres"
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 25
	}
	if config.MaxIdleConns <= 0 {
		config.MaxIdleConns = 5
	}
	if config.ConnMaxLifetime <= 0 {
		config.ConnMaxLifetime = 5 * time.Minute
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = 5 * time.Second
	}

	return &SQLPool{config: config}
}

// Initialize connects and applies the pool tuning knobs.
func (p *SQLPool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return nil
	}

	db, err := sqlx.ConnectContext(ctx, p.config.Driver, p.config.DSN)
	if err != nil {
		return fmt.Errorf("pool: connect: %w", err)
	}

	db.SetMaxOpenConns(p.config.MaxOpenConns)
	db.SetMaxIdleConns(p.config.MaxIdleConns)
	db.SetConnMaxLifetime(p.config.ConnMaxLifetime)

	p.db = db
	return nil
}

func (p *SQLPool) handle() (*sqlx.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil, ErrNotInitialized
	}
	return p.db, nil
}

// Acquire checks out one connection, bounded by AcquireTimeout.
func (p *SQLPool) Acquire(ctx context.Context) (*Conn, error) {
	db, err := p.handle()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.AcquireTimeout)
	defer cancel()

	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool: acquire: %w", err)
	}

	return &Conn{ID: uuid.NewString(), DB: conn}, nil
}

// Release returns the connection to the pool.
func (p *SQLPool) Release(conn *Conn) error {
	if conn == nil {
		return ErrNilConn
	}
	if conn.DB == nil {
		return nil
	}
	return conn.DB.Close()
}

// Destroy discards the connection. database/sql decides reuse on
// return, so destroy is a close; a broken connection is dropped by the
// driver on its next checkout.
func (p *SQLPool) Destroy(conn *Conn) error {
	return p.Release(conn)
}

// Stats returns the pool's connection counters.
func (p *SQLPool) Stats() Stats {
	p.mu.Lock()
	db := p.db
	p.mu.Unlock()

	if db == nil {
		return Stats{}
	}

	s := db.Stats()
	return Stats{
		Open:         s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration,
		MaxOpen:      s.MaxOpenConnections,
	}
}

// HealthCheck acquires a connection and runs a trivial round-trip.
func (p *SQLPool) HealthCheck(ctx context.Context) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Release(conn) }()

	var one int
	if err := conn.DB.QueryRowxContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("pool: health check: %w", err)
	}
	return nil
}

// Drain waits for in-use connections to return, polling until ctx
// expires. The pool stays usable afterwards.
func (p *SQLPool) Drain(ctx context.Context) error {
	db, err := p.handle()
	if err != nil {
		return err
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if db.Stats().InUse == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Clear tears the pool down. Initialize may be called again.
func (p *SQLPool) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// Ensure SQLPool implements Pool
var _ Pool = (*SQLPool)(nil)
