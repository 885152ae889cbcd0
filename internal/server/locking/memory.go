package locking

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/davbundle/internal/common"
)

type memLock struct {
	shared    int
	exclusive bool
}

// MemoryProvider keeps locks in process memory.
type MemoryProvider struct {
	mu    sync.Mutex
	locks map[string]*memLock
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{locks: make(map[string]*memLock)}
}

func (p *MemoryProvider) Acquire(ctx context.Context, path string, mode Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	l := p.locks[path]
	if l == nil {
		l = &memLock{}
		p.locks[path] = l
	}

	switch mode {
	case LockShared:
		if l.exclusive {
			return fmt.Errorf("%w: %s", common.ErrLocked, path)
		}
		l.shared++
	case LockExclusive:
		if l.exclusive || l.shared > 0 {
			return fmt.Errorf("%w: %s", common.ErrLocked, path)
		}
		l.exclusive = true
	default:
		return fmt.Errorf("unknown lock mode %d", mode)
	}
	return nil
}

func (p *MemoryProvider) Release(ctx context.Context, path string, mode Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	l := p.locks[path]
	if l == nil {
		return fmt.Errorf("%w: %s", common.ErrNotLocked, path)
	}

	switch mode {
	case LockShared:
		if l.shared == 0 {
			return fmt.Errorf("%w: %s", common.ErrNotLocked, path)
		}
		l.shared--
	case LockExclusive:
		if !l.exclusive {
			return fmt.Errorf("%w: %s", common.ErrNotLocked, path)
		}
		l.exclusive = false
	default:
		return fmt.Errorf("unknown lock mode %d", mode)
	}

	if l.shared == 0 && !l.exclusive {
		delete(p.locks, path)
	}
	return nil
}

// Held reports the number of shared holders and whether an exclusive lock
// is held on path.
func (p *MemoryProvider) Held(path string) (shared int, exclusive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l := p.locks[path]; l != nil {
		return l.shared, l.exclusive
	}
	return 0, false
}
