package locking

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/davbundle/internal/common"
)

const (
	tryLockShared    = `SELECT pg_try_advisory_lock_shared(hashtextextended($1, 0))`
	tryLockExclusive = `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`
	unlockShared     = `SELECT pg_advisory_unlock_shared(hashtextextended($1, 0))`
	unlockExclusive  = `SELECT pg_advisory_unlock(hashtextextended($1, 0))`
)

type heldKey struct {
	path string
	mode Mode
}

// PostgresProvider maps locks onto session-level advisory locks, so they
// are visible to every server sharing the database. Advisory locks belong
// to a session, so each held lock pins its own connection until release.
type PostgresProvider struct {
	db *sql.DB

	mu   sync.Mutex
	held map[heldKey][]*sql.Conn
}

func NewPostgresProvider(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db, held: make(map[heldKey][]*sql.Conn)}
}

func (p *PostgresProvider) Acquire(ctx context.Context, path string, mode Mode) error {
	query, _, err := queriesFor(mode)
	if err != nil {
		return err
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("lock conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, query, path).Scan(&ok); err != nil {
		_ = conn.Close()
		return fmt.Errorf("acquire %s lock: %w", mode, err)
	}
	if !ok {
		_ = conn.Close()
		return fmt.Errorf("%w: %s", common.ErrLocked, path)
	}

	p.mu.Lock()
	k := heldKey{path, mode}
	p.held[k] = append(p.held[k], conn)
	p.mu.Unlock()
	return nil
}

func (p *PostgresProvider) Release(ctx context.Context, path string, mode Mode) error {
	_, query, err := queriesFor(mode)
	if err != nil {
		return err
	}

	p.mu.Lock()
	k := heldKey{path, mode}
	conns := p.held[k]
	if len(conns) == 0 {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", common.ErrNotLocked, path)
	}
	conn := conns[len(conns)-1]
	if len(conns) == 1 {
		delete(p.held, k)
	} else {
		p.held[k] = conns[:len(conns)-1]
	}
	p.mu.Unlock()

	defer conn.Close()

	var ok bool
	if err := conn.QueryRowContext(ctx, query, path).Scan(&ok); err != nil {
		return fmt.Errorf("release %s lock: %w", mode, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrNotLocked, path)
	}
	return nil
}

func queriesFor(mode Mode) (lock, unlock string, err error) {
	switch mode {
	case LockShared:
		return tryLockShared, unlockShared, nil
	case LockExclusive:
		return tryLockExclusive, unlockExclusive, nil
	default:
		return "", "", fmt.Errorf("unknown lock mode %d", mode)
	}
}
