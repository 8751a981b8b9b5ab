package lease

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultAdvisoryKey — ключ advisory lock trigger'а.
const DefaultAdvisoryKey int64 = 424242

// Postgres — lease на pg_try_advisory_lock.
//
// Advisory lock принадлежит сессии, поэтому Postgres держит одно
// соединение из пула, пока lease удерживается. Потеря соединения
// означает потерю lease.
type Postgres struct {
	pool *pgxpool.Pool
	key  int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// NewPostgres создаёт Postgres lease.
func NewPostgres(pool *pgxpool.Pool, key int64) *Postgres {
	if key == 0 {
		key = DefaultAdvisoryKey
	}
	return &Postgres{pool: pool, key: key}
}

// TryLock пытается стать лидером (или подтвердить лидерство).
func (p *Postgres) TryLock(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		// Повторный pg_try_advisory_lock в той же сессии увеличил бы счётчик,
		// поэтому лидер только проверяет соединение.
		if err := p.conn.Ping(ctx); err != nil {
			p.conn.Release()
			p.conn = nil
			return false, fmt.Errorf("lease connection lost: %w", err)
		}
		return true, nil
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", p.key).Scan(&ok); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return false, nil
	}

	p.conn = conn
	return true, nil
}

// Unlock снимает lock и возвращает соединение в пул.
func (p *Postgres) Unlock(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return ErrNotHeld
	}
	defer func() {
		p.conn.Release()
		p.conn = nil
	}()

	if _, err := p.conn.Exec(ctx, "select pg_advisory_unlock($1)", p.key); err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}
