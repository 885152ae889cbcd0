package bundle

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/davbundle/internal/server/multipart"
)

// Exception tags reported in error bodies, as WebDAV clients of the
// ownCloud family expect them.
const (
	ExceptionBadRequest = `Sabre\DAV\Exception\BadRequest`
	ExceptionForbidden  = `Sabre\DAV\Exception\Forbidden`
	ExceptionGeneric    = `Sabre\DAV\Exception`
)

// HTTPError aborts the whole bundle. No multistatus is produced.
type HTTPError struct {
	Status    int
	Exception string
	Message   string
	Err       error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

func badRequest(msg string) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Exception: ExceptionBadRequest, Message: msg}
}

// PartError is a failure confined to one part. It becomes an error entry in
// the multistatus and processing moves on to the next part.
type PartError struct {
	Path      string
	Exception string
	Message   string
	Err       error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part %q: %s", e.Path, e.Message)
}

func (e *PartError) Unwrap() error { return e.Err }

func partError(path, msg string, err error) *PartError {
	return &PartError{Path: path, Exception: ExceptionBadRequest, Message: msg, Err: err}
}

// readFailure classifies an error from the body stream. Broken framing and
// oversized bodies are client errors; anything else, typically a dropped
// connection, is returned as is.
func readFailure(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return &HTTPError{
			Status:    http.StatusRequestEntityTooLarge,
			Exception: ExceptionGeneric,
			Message:   fmt.Sprintf("Bundle exceeds the maximum allowed size of %d bytes", tooLarge.Limit),
			Err:       err,
		}
	case errors.Is(err, multipart.ErrMalformedHeader), errors.Is(err, multipart.ErrBoundaryNotFound):
		e := badRequest(err.Error())
		e.Err = err
		return e
	default:
		return fmt.Errorf("read bundle: %w", err)
	}
}
