package filecache

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/davbundle/internal/common"
	"github.com/dmitrijs2005/davbundle/internal/server/storage"
)

type memKey struct{ owner, path string }

// MemoryRepository keeps the cache in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[memKey]Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[memKey]Entry)}
}

func (r *MemoryRepository) MarkDirty(ctx context.Context, owner string, info storage.FileInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[memKey{owner, info.Path}] = Entry{
		Owner:  owner,
		Path:   info.Path,
		Size:   info.Size,
		ETag:   info.ETag,
		MTime:  info.MTime,
		FileID: info.FileID,
		Dirty:  true,
	}
	for _, dir := range ancestors(info.Path) {
		k := memKey{owner, dir}
		e, ok := r.entries[k]
		if !ok {
			e = Entry{Owner: owner, Path: dir, IsDir: true}
		}
		e.Dirty = true
		r.entries[k] = e
	}
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, owner, path string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[memKey{owner, path}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &e, nil
}
