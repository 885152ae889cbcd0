// Package bundle handles bundled uploads: one multipart/mixed POST that
// carries many file writes, answered with a single 207 multistatus.
//
// Failures fall in two classes. An *HTTPError rejects the whole request
// (bad envelope, broken framing, missing per-part metadata, a vetoing
// hook). A *PartError is confined to one file and becomes an error entry
// while the remaining parts are still processed.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/common"
	"github.com/dmitrijs2005/davbundle/internal/filex"
	"github.com/dmitrijs2005/davbundle/internal/logging"
	"github.com/dmitrijs2005/davbundle/internal/server/locking"
	"github.com/dmitrijs2005/davbundle/internal/server/multipart"
	"github.com/dmitrijs2005/davbundle/internal/server/storage"
)

const (
	headerMethod        = "x-oc-method"
	headerPath          = "x-oc-path"
	headerContentLength = "content-length"

	msgInvalidParent = "File creation on not existing or without creation permission parent folder is not permitted"
	msgReadFailed    = "Error reading the file contents"
)

// HomeResolver maps a request path onto a user's files home.
type HomeResolver interface {
	Home(ctx context.Context, requestPath string) (storage.View, error)
}

// Tree is told about every committed file.
type Tree interface {
	MarkDirty(ctx context.Context, owner string, info storage.FileInfo) error
}

// BeforeWriteHook runs once per bundle, before any part is read, with the
// files home path. A non-nil error rejects the bundle with 403.
type BeforeWriteHook func(ctx context.Context, filesHome string) error

// ReadOnly is a hook that refuses every bundle.
func ReadOnly(ctx context.Context, filesHome string) error {
	return common.ErrReadOnly
}

// Request is the part of an HTTP request the handler needs.
type Request struct {
	Path        string // files home, e.g. "/remote.php/dav/files/alice"
	ContentType string
	Body        io.Reader
}

type Plugin struct {
	homes  HomeResolver
	locks  locking.Provider
	tree   Tree
	logger logging.Logger
	hooks  []BeforeWriteHook
}

func New(homes HomeResolver, locks locking.Provider, tree Tree, logger logging.Logger) *Plugin {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Plugin{
		homes:  homes,
		locks:  locks,
		tree:   tree,
		logger: logger.With("module", "bundle"),
	}
}

// OnBeforeWrite registers a hook. Hooks run in registration order and the
// first error wins.
func (p *Plugin) OnBeforeWrite(h BeforeWriteHook) {
	p.hooks = append(p.hooks, h)
}

// bundleState lives for one request.
type bundleState struct {
	href         string
	view         storage.View
	parser       *multipart.Parser
	validParents map[string]bool
	result       *Multistatus
}

// HandleBundledUpload processes req and returns the per-part outcomes. A
// non-nil error means no multistatus must be sent; it is an *HTTPError
// unless the body could not be read at all.
func (p *Plugin) HandleBundledUpload(ctx context.Context, req *Request) (*Multistatus, error) {
	view, err := p.homes.Home(ctx, req.Path)
	if err != nil {
		if errors.Is(err, common.ErrNotFilesHome) {
			return nil, badRequest("URL endpoint has to be a files home")
		}
		return nil, fmt.Errorf("resolve files home: %w", err)
	}

	boundary, err := boundaryFromContentType(req.ContentType)
	if err != nil {
		return nil, err
	}
	parser, err := multipart.NewParser(req.Body, boundary)
	if err != nil {
		return nil, badRequest("Boundary is not valid")
	}

	for _, hook := range p.hooks {
		if err := hook(ctx, req.Path); err != nil {
			p.logger.Warn(ctx, "bundle vetoed", "home", req.Path, "error", err)
			return nil, &HTTPError{
				Status:    http.StatusForbidden,
				Exception: ExceptionForbidden,
				Message:   "beforeWriteBundle preconditions failed",
				Err:       err,
			}
		}
	}

	st := &bundleState{
		href:         req.Path,
		view:         view,
		parser:       parser,
		validParents: make(map[string]bool),
		result:       &Multistatus{},
	}

	started := time.Now()
	if err := p.processBundle(ctx, st); err != nil {
		return nil, err
	}

	p.logger.Info(ctx, "bundle processed",
		"home", req.Path,
		"files", len(st.result.Entries),
		"succeeded", st.result.Succeeded(),
		"duration", time.Since(started),
	)
	return st.result, nil
}

func (p *Plugin) processBundle(ctx context.Context, st *bundleState) error {
	for !st.parser.EndDelimiterReached() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("bundle aborted: %w", err)
		}

		hdr, err := st.parser.NextPartHeaders()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return readFailure(err)
		}

		method, ok := hdr.Lookup(headerMethod)
		if !ok {
			return badRequest("File metadata does not contain required key - value pair containing x-oc-method")
		}
		ocPath, ok := hdr.Lookup(headerPath)
		if !ok {
			return badRequest("File metadata does not contain required key - value pair containing x-oc-path")
		}

		if !strings.EqualFold(method, "put") {
			if err := p.skipIgnored(ctx, st, hdr, method, ocPath); err != nil {
				return err
			}
			continue
		}

		props, err := p.processPut(ctx, st, hdr, ocPath)
		var pe *PartError
		switch {
		case errors.As(err, &pe):
			p.logger.Warn(ctx, "bundled file rejected", "path", ocPath, "reason", pe.Message, "error", pe.Err)
			st.result.addError(st.href, ocPath, pe)
		case err != nil:
			return err
		default:
			p.logger.Debug(ctx, "bundled file stored", "path", ocPath, "size", props.Size, "etag", props.ETag)
			st.result.addSuccess(st.href, ocPath, props)
		}
	}
	return nil
}

// skipIgnored passes over a part whose method is not handled. A declared
// length is honoured; otherwise the parser resynchronises on the next
// boundary.
func (p *Plugin) skipIgnored(ctx context.Context, st *bundleState, hdr multipart.Header, method, ocPath string) error {
	p.logger.Debug(ctx, "ignoring bundled operation", "method", method, "path", ocPath)
	n, err := contentLength(hdr)
	if err != nil {
		return nil
	}
	if err := st.parser.SkipContent(n); err != nil {
		return readFailure(err)
	}
	return nil
}

// processPut stores one file. It returns a *PartError for failures that
// only concern this file and any other error to abort the bundle.
func (p *Plugin) processPut(ctx context.Context, st *bundleState, hdr multipart.Header, ocPath string) (*Properties, error) {
	length, err := contentLength(hdr)
	if err != nil {
		return nil, err
	}

	skip := func(pe *PartError) (*Properties, error) {
		if err := st.parser.SkipContent(length); err != nil {
			return nil, readFailure(err)
		}
		return nil, pe
	}

	rel, err := filex.CleanRelative(ocPath)
	if err != nil || rel == "" {
		return skip(partError(ocPath, "Invalid file path", err))
	}
	folder, _ := filex.SplitParent(rel)

	valid, err := st.parentIsValid(ctx, folder)
	if err != nil {
		return skip(partError(ocPath, err.Error(), err))
	}
	if !valid {
		return skip(partError(ocPath, msgInvalidParent, nil))
	}

	file := newBundledFile(st.view, p.locks, rel)
	if err := file.OpenStaging(ctx); err != nil {
		return skip(partError(ocPath, err.Error(), err))
	}

	complete, err := st.parser.StreamContent(file, length)
	if err != nil {
		p.discard(ctx, file)
		var we *multipart.WriteError
		if errors.As(err, &we) {
			return nil, partError(ocPath, we.Err.Error(), we)
		}
		return nil, readFailure(err)
	}
	if !complete {
		p.discard(ctx, file)
		return nil, partError(ocPath, msgReadFailed, nil)
	}

	props, err := p.commitLocked(ctx, file, hdr)
	if err != nil {
		p.discard(ctx, file)
		return nil, partError(ocPath, err.Error(), err)
	}

	if err := p.tree.MarkDirty(ctx, st.view.Owner(), props.FileInfo); err != nil {
		p.logger.Warn(ctx, "mark dirty failed", "path", props.Path, "error", err)
	}
	return props, nil
}

// commitLocked holds a shared lock on the destination for the duration of
// the commit. The lock is released exactly once on every path.
func (p *Plugin) commitLocked(ctx context.Context, file *BundledFile, hdr multipart.Header) (*Properties, error) {
	if err := file.AcquireLock(ctx, locking.LockShared); err != nil {
		return nil, err
	}
	defer func() {
		if err := file.ReleaseLock(context.WithoutCancel(ctx), locking.LockShared); err != nil {
			p.logger.Error(ctx, "release lock failed", "path", file.abs, "error", err)
		}
	}()

	return file.Commit(ctx, hdr)
}

func (p *Plugin) discard(ctx context.Context, file *BundledFile) {
	if err := file.Discard(); err != nil {
		p.logger.Warn(ctx, "discard staging target failed", "path", file.rel, "error", err)
	}
}

// parentIsValid reports whether files may be created in folder. Verdicts
// are cached per request; storage errors are not.
func (st *bundleState) parentIsValid(ctx context.Context, folder string) (bool, error) {
	if v, ok := st.validParents[folder]; ok {
		return v, nil
	}

	exists, err := st.view.NodeExists(ctx, folder)
	if err != nil {
		return false, err
	}
	valid := false
	if exists {
		if valid, err = st.view.IsCreatable(ctx, folder); err != nil {
			return false, err
		}
	}

	st.validParents[folder] = valid
	return valid, nil
}

// contentLength returns the declared body length of a part. A missing or
// unusable value is fatal: the end of the body would be unknown.
func contentLength(hdr multipart.Header) (int64, error) {
	raw, ok := hdr.Lookup(headerContentLength)
	if !ok {
		return 0, badRequest("File header does not contain Content-Length. Unable to parse whole bundle request")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0, badRequest(fmt.Sprintf("Invalid Content-Length %q", raw))
	}
	return n, nil
}
