// Package bundle encodes files into the multipart/mixed body of a bundled
// upload.
package bundle

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"
)

var ErrSizeMismatch = errors.New("content size does not match declared size")

// File is one upload.
type File struct {
	Path     string    // destination, relative to the files home
	Size     int64     // exact number of bytes Content yields
	MTime    time.Time // zero leaves the server's timestamp
	Checksum string    // "TYPE:hex", optional
	Content  io.Reader
}

// Writer streams parts into w. Close must be called to terminate the body.
type Writer struct {
	mw *multipart.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{mw: multipart.NewWriter(w)}
}

// ContentType is the request Content-Type for the body being written.
func (w *Writer) ContentType() string {
	return "multipart/mixed; boundary=" + w.mw.Boundary()
}

// WriteFile appends one put part.
func (w *Writer) WriteFile(f File) error {
	if f.Size < 0 {
		return fmt.Errorf("%s: negative size", f.Path)
	}

	h := textproto.MIMEHeader{}
	h.Set("X-OC-Method", "PUT")
	h.Set("X-OC-Path", path.Clean("/"+f.Path))
	h.Set("Content-Length", strconv.FormatInt(f.Size, 10))
	if !f.MTime.IsZero() {
		h.Set("X-OC-Mtime", strconv.FormatInt(f.MTime.Unix(), 10))
	}
	if f.Checksum != "" {
		h.Set("OC-Checksum", f.Checksum)
	}

	part, err := w.mw.CreatePart(h)
	if err != nil {
		return err
	}

	n, err := io.Copy(part, io.LimitReader(f.Content, f.Size+1))
	if err != nil {
		return fmt.Errorf("%s: %w", f.Path, err)
	}
	if n != f.Size {
		return fmt.Errorf("%s: %w: declared %d, got %d", f.Path, ErrSizeMismatch, f.Size, n)
	}
	return nil
}

// Close writes the closing delimiter.
func (w *Writer) Close() error {
	return w.mw.Close()
}

// OpenLocal prepares a local file for upload to remote, or to its base name
// when remote is empty. The SHA1 checksum is computed up front because it
// travels in the part headers. The caller closes the returned file.
func OpenLocal(local, remote string) (File, *os.File, error) {
	fh, err := os.Open(local)
	if err != nil {
		return File{}, nil, err
	}

	fail := func(err error) (File, *os.File, error) {
		_ = fh.Close()
		return File{}, nil, err
	}

	fi, err := fh.Stat()
	if err != nil {
		return fail(err)
	}
	if fi.IsDir() {
		return fail(fmt.Errorf("%s is a directory", local))
	}

	sum := sha1.New()
	if _, err := io.Copy(sum, fh); err != nil {
		return fail(err)
	}
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return fail(err)
	}

	if remote == "" {
		remote = filepath.Base(local)
	}
	return File{
		Path:     filepath.ToSlash(remote),
		Size:     fi.Size(),
		MTime:    fi.ModTime(),
		Checksum: "SHA1:" + hex.EncodeToString(sum.Sum(nil)),
		Content:  fh,
	}, fh, nil
}
