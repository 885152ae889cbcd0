package bundle

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/adler32"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/common"
	"github.com/dmitrijs2005/davbundle/internal/server/locking"
	"github.com/dmitrijs2005/davbundle/internal/server/multipart"
	"github.com/dmitrijs2005/davbundle/internal/server/storage"
)

const (
	headerChecksum = "oc-checksum"
	headerMTime    = "x-oc-mtime"
)

// Properties are reported for a committed file.
type Properties struct {
	storage.FileInfo
	Checksum string // "SHA1:<hex>"
}

// BundledFile is the destination of one put part. It is created after the
// parent folder was validated and is committed or discarded before the
// next part is read.
type BundledFile struct {
	view    storage.View
	locks   locking.Provider
	rel     string
	abs     string
	staging storage.Staging

	sums map[string]hash.Hash
	w    io.Writer
}

func newBundledFile(view storage.View, locks locking.Provider, rel string) *BundledFile {
	return &BundledFile{
		view:  view,
		locks: locks,
		rel:   rel,
		abs:   view.AbsolutePath(rel),
	}
}

// OpenStaging allocates the temporary write target.
func (f *BundledFile) OpenStaging(ctx context.Context) error {
	st, err := f.view.CreateStaging(ctx, f.rel)
	if err != nil {
		return err
	}
	f.staging = st
	f.sums = map[string]hash.Hash{
		"SHA1":    sha1.New(),
		"MD5":     md5.New(),
		"ADLER32": adler32.New(),
	}
	f.w = io.MultiWriter(st, f.sums["SHA1"], f.sums["MD5"], f.sums["ADLER32"])
	return nil
}

// Write streams part content into the staging target.
func (f *BundledFile) Write(b []byte) (int, error) {
	if f.w == nil {
		return 0, fmt.Errorf("staging target for %s is not open", f.rel)
	}
	return f.w.Write(b)
}

func (f *BundledFile) AcquireLock(ctx context.Context, mode locking.Mode) error {
	return f.locks.Acquire(ctx, f.abs, mode)
}

func (f *BundledFile) ReleaseLock(ctx context.Context, mode locking.Mode) error {
	return f.locks.Release(ctx, f.abs, mode)
}

// Commit moves the staged content into place. An oc-checksum header is
// verified against the received bytes and x-oc-mtime, in unix seconds,
// becomes the file's modification time.
func (f *BundledFile) Commit(ctx context.Context, hdr multipart.Header) (*Properties, error) {
	if f.staging == nil {
		return nil, fmt.Errorf("staging target for %s is not open", f.rel)
	}
	if err := f.staging.Close(); err != nil {
		return nil, fmt.Errorf("close staging target: %w", err)
	}

	checksum, err := f.verifyChecksum(hdr.Get(headerChecksum))
	if err != nil {
		return nil, err
	}

	var opts storage.CommitOptions
	if raw, ok := hdr.Lookup(headerMTime); ok {
		mtime, err := parseMTime(raw)
		if err != nil {
			return nil, err
		}
		opts.MTime = mtime
	}

	info, err := f.view.Commit(ctx, f.staging, f.rel, opts)
	if err != nil {
		return nil, err
	}
	return &Properties{FileInfo: info, Checksum: checksum}, nil
}

// Discard drops the staging target, if any. Safe after Commit.
func (f *BundledFile) Discard() error {
	if f.staging == nil {
		return nil
	}
	return f.staging.Discard()
}

// verifyChecksum checks a "TYPE:hex" header and returns the checksum to
// report, which is of the declared type or SHA1 when none was sent.
func (f *BundledFile) verifyChecksum(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "SHA1:" + f.sum("SHA1"), nil
	}

	algo, want, ok := strings.Cut(header, ":")
	algo = strings.ToUpper(strings.TrimSpace(algo))
	if !ok {
		return "", fmt.Errorf("malformed checksum header %q", header)
	}
	if _, known := f.sums[algo]; !known {
		return "", fmt.Errorf("unsupported checksum type %q", algo)
	}

	got := f.sum(algo)
	if !strings.EqualFold(strings.TrimSpace(want), got) {
		return "", fmt.Errorf("%w: expected %s %s, got %s", common.ErrChecksumMismatch, algo, want, got)
	}
	return algo + ":" + got, nil
}

func (f *BundledFile) sum(algo string) string {
	return hex.EncodeToString(f.sums[algo].Sum(nil))
}

func parseMTime(raw string) (time.Time, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 {
		return time.Time{}, fmt.Errorf("x-oc-mtime must be a unix timestamp, got %q", raw)
	}
	return time.Unix(int64(v), 0), nil
}
