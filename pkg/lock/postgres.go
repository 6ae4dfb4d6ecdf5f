package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresLocker uses session-level advisory locks. The ttl argument is
// ignored: the lock lives as long as the dedicated connection.
type PostgresLocker struct {
	db *sqlx.DB
}

// NewPostgresLocker constructs the locker.
func NewPostgresLocker(db *sqlx.DB) *PostgresLocker {
	return &PostgresLocker{db: db}
}

// Acquire pins a pooled connection and tries pg_try_advisory_lock on it.
func (l *PostgresLocker) Acquire(ctx context.Context, key string, _ time.Duration) (Lease, error) {
	conn, err := l.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("advisory lock conn: %w", err)
	}
	var acquired bool
	if err := conn.GetContext(ctx, &acquired, `SELECT pg_try_advisory_lock(hashtext($1))`, key); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("advisory lock %s: %w", key, err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, ErrNotAcquired
	}
	return &postgresLease{conn: conn, key: key}, nil
}

type postgresLease struct {
	conn *sqlx.Conn
	key  string
}

func (p *postgresLease) Release(ctx context.Context) error {
	defer p.conn.Close()
	if _, err := p.conn.ExecContext(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, p.key); err != nil {
		return fmt.Errorf("advisory unlock %s: %w", p.key, err)
	}
	return nil
}
