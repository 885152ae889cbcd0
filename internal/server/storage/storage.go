// Package storage is the file store the bundle handler writes into.
//
// A Backend hands out one View per user. A View addresses files by paths
// relative to the user's files home and writes them in two steps: content
// is streamed into a Staging target and then committed under its final
// name.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/common"
	"github.com/google/uuid"
)

// FileInfo describes a committed file.
type FileInfo struct {
	Path   string // relative to the files home
	Size   int64
	ETag   string
	MTime  time.Time
	FileID string
}

// CommitOptions carries metadata applied when a staging target is committed.
type CommitOptions struct {
	MTime time.Time // zero keeps the backend's own timestamp
}

// Staging is a temporary write target for one file.
type Staging interface {
	io.Writer
	Close() error
	// Discard drops the staged content. It is safe to call after Close
	// and more than once.
	Discard() error
}

// View is one user's files home.
type View interface {
	Owner() string
	AbsolutePath(rel string) string
	NodeExists(ctx context.Context, rel string) (bool, error)
	IsCreatable(ctx context.Context, rel string) (bool, error)
	CreateStaging(ctx context.Context, rel string) (Staging, error)
	Commit(ctx context.Context, st Staging, rel string, opts CommitOptions) (FileInfo, error)
}

// Backend vends per-user views.
type Backend interface {
	View(owner string) (View, error)
}

// Homes maps request paths onto files homes.
type Homes struct {
	backend Backend
}

func NewHomes(backend Backend) *Homes {
	return &Homes{backend: backend}
}

// Home resolves a request path of the form "files/{user}" (optionally
// prefixed with "remote.php/dav/") to that user's view. Any other shape is
// common.ErrNotFilesHome.
func (h *Homes) Home(ctx context.Context, requestPath string) (View, error) {
	owner, ok := ownerFromPath(requestPath)
	if !ok {
		return nil, common.ErrNotFilesHome
	}
	return h.backend.View(owner)
}

func ownerFromPath(p string) (string, bool) {
	p = strings.Trim(p, "/")
	p = strings.TrimPrefix(p, "remote.php/dav/")

	segs := strings.Split(p, "/")
	if len(segs) != 2 || segs[0] != "files" {
		return "", false
	}
	owner := segs[1]
	if owner == "" || owner == "." || owner == ".." || strings.ContainsAny(owner, "\\\x00") {
		return "", false
	}
	return owner, true
}

func absolutePath(owner, rel string) string {
	return path.Join("/", owner, "files", rel)
}

// fileID is stable for a given owner and path, so overwrites keep their id.
func fileID(owner, rel string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(absolutePath(owner, rel))).String()
}

func newETag() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
