// Package filecache records committed files and marks their ancestor
// folders dirty so size and etag aggregates get recomputed.
package filecache

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/server/storage"
)

// Entry is one cached node of a user's tree.
type Entry struct {
	Owner  string
	Path   string // relative to the files home, "" for the home itself
	IsDir  bool
	Size   int64
	ETag   string
	MTime  time.Time
	FileID string
	Dirty  bool
}

type Repository interface {
	// MarkDirty records info as the current state of a file and flags every
	// folder above it, up to the home, as dirty.
	MarkDirty(ctx context.Context, owner string, info storage.FileInfo) error
	// Get returns common.ErrorNotFound for unknown paths.
	Get(ctx context.Context, owner, path string) (*Entry, error)
}

// ancestors lists the folders containing p, nearest first, ending with the
// home root "".
func ancestors(p string) []string {
	var out []string
	for {
		i := strings.LastIndexByte(p, '/')
		if i < 0 {
			return append(out, "")
		}
		p = p[:i]
		out = append(out, p)
	}
}
