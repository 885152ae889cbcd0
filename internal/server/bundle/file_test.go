package bundle

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"hash/adler32"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/common"
	"github.com/dmitrijs2005/davbundle/internal/server/locking"
	"github.com/dmitrijs2005/davbundle/internal/server/multipart"
	"github.com/dmitrijs2005/davbundle/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFile(t *testing.T, rel, content string) (*BundledFile, string) {
	t.Helper()
	root := t.TempDir()
	backend, err := storage.NewLocalBackend(root, false)
	require.NoError(t, err)
	view, err := backend.View("bob")
	require.NoError(t, err)

	f := newBundledFile(view, locking.NewMemoryProvider(), rel)
	require.NoError(t, f.OpenStaging(context.Background()))
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	return f, filepath.Join(root, "bob", "files")
}

func TestBundledFile_AbsolutePath(t *testing.T) {
	f, _ := newTestFile(t, "a/b.txt", "")
	assert.Equal(t, "/bob/files/a/b.txt", f.abs)
	require.NoError(t, f.Discard())
}

func TestBundledFile_WriteBeforeOpen(t *testing.T) {
	f := &BundledFile{rel: "x"}
	_, err := f.Write([]byte("x"))
	assert.Error(t, err)
	_, err = f.Commit(context.Background(), multipart.Header{})
	assert.Error(t, err)
	assert.NoError(t, f.Discard())
}

func TestBundledFile_Checksums(t *testing.T) {
	const content = "checksum me"
	md := md5.Sum([]byte(content))
	ad := adler32.New()
	_, _ = ad.Write([]byte(content))

	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "md5", header: "MD5:" + hex.EncodeToString(md[:]), want: "MD5:" + hex.EncodeToString(md[:])},
		{name: "lower case type", header: "adler32:" + hex.EncodeToString(ad.Sum(nil)), want: "ADLER32:" + hex.EncodeToString(ad.Sum(nil))},
		{name: "mismatch", header: "MD5:00000000000000000000000000000000", wantErr: common.ErrChecksumMismatch},
		{name: "unsupported", header: "CRC32:1234"},
		{name: "malformed", header: "nocolon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newTestFile(t, "sum.txt", content)
			defer f.Discard()

			props, err := f.Commit(context.Background(), multipart.Header{headerChecksum: tt.header})
			if tt.want != "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, props.Checksum)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestBundledFile_CommitDefaults(t *testing.T) {
	f, home := newTestFile(t, "plain.txt", "hello")

	props, err := f.Commit(context.Background(), multipart.Header{})
	require.NoError(t, err)
	assert.Equal(t, "SHA1:aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", props.Checksum)
	assert.Equal(t, int64(5), props.Size)
	assert.Equal(t, "plain.txt", props.Path)
	assert.FileExists(t, filepath.Join(home, "plain.txt"))

	require.NoError(t, f.Discard(), "discard after commit keeps the file")
	assert.FileExists(t, filepath.Join(home, "plain.txt"))
}

func TestParseMTime(t *testing.T) {
	got, err := parseMTime(" 1700000000.75 ")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Unix(1700000000, 0)))

	for _, raw := range []string{"", "soon", "-5"} {
		_, err := parseMTime(raw)
		assert.Error(t, err, raw)
	}
}

func TestBundledFile_Locks(t *testing.T) {
	f, _ := newTestFile(t, "locked.txt", "")
	defer f.Discard()
	ctx := context.Background()

	require.NoError(t, f.AcquireLock(ctx, locking.LockShared))
	require.NoError(t, f.AcquireLock(ctx, locking.LockShared))
	assert.ErrorIs(t, f.locks.Acquire(ctx, f.abs, locking.LockExclusive), common.ErrLocked)
	require.NoError(t, f.ReleaseLock(ctx, locking.LockShared))
	require.NoError(t, f.ReleaseLock(ctx, locking.LockShared))
	assert.ErrorIs(t, f.ReleaseLock(ctx, locking.LockShared), common.ErrNotLocked)
}
