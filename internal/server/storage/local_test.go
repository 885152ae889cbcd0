package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalView(t *testing.T, readOnly bool) (*localView, string) {
	t.Helper()
	root := t.TempDir()
	b, err := NewLocalBackend(root, false)
	require.NoError(t, err)
	b.readOnly = readOnly
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alice", "files"), 0o770))
	v, err := b.View("alice")
	require.NoError(t, err)
	return v.(*localView), filepath.Join(root, "alice", "files")
}

func TestLocalView_CommitWritesFile(t *testing.T) {
	ctx := context.Background()
	v, home := newLocalView(t, false)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "docs"), 0o770))

	st, err := v.CreateStaging(ctx, "docs/report.txt")
	require.NoError(t, err)

	staged := st.(*localStaging).path
	assert.Equal(t, filepath.Join(home, "docs"), filepath.Dir(staged))
	assert.Regexp(t, `^\.report\.txt\.ocTransferId[0-9a-f-]+\.part$`, filepath.Base(staged))

	_, err = st.Write([]byte("quarterly numbers"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	mtime := time.Unix(1700000000, 0)
	info, err := v.Commit(ctx, st, "/docs/report.txt", CommitOptions{MTime: mtime})
	require.NoError(t, err)

	assert.Equal(t, "docs/report.txt", info.Path)
	assert.Equal(t, int64(17), info.Size)
	assert.True(t, info.MTime.Equal(mtime))
	assert.NotEmpty(t, info.ETag)
	assert.Equal(t, fileID("alice", "docs/report.txt"), info.FileID)

	got, err := os.ReadFile(filepath.Join(home, "docs", "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", string(got))
	assert.NoFileExists(t, staged)

	require.NoError(t, st.Discard())
	assert.FileExists(t, filepath.Join(home, "docs", "report.txt"))
}

func TestLocalView_Overwrite(t *testing.T) {
	ctx := context.Background()
	v, home := newLocalView(t, false)

	for _, body := range []string{"first", "second version"} {
		st, err := v.CreateStaging(ctx, "a.txt")
		require.NoError(t, err)
		_, err = st.Write([]byte(body))
		require.NoError(t, err)
		_, err = v.Commit(ctx, st, "a.txt", CommitOptions{})
		require.NoError(t, err)
	}

	got, err := os.ReadFile(filepath.Join(home, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second version", string(got))
}

func TestLocalView_DiscardRemovesStaging(t *testing.T) {
	v, home := newLocalView(t, false)

	st, err := v.CreateStaging(context.Background(), "gone.txt")
	require.NoError(t, err)
	_, err = st.Write([]byte("partial"))
	require.NoError(t, err)

	require.NoError(t, st.Discard())
	require.NoError(t, st.Discard())

	entries, err := os.ReadDir(home)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalView_MTimeFailureKeepsTarget(t *testing.T) {
	ctx := context.Background()
	v, home := newLocalView(t, false)
	target := filepath.Join(home, "keep.txt")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o640))

	orig := chtimes
	t.Cleanup(func() { chtimes = orig })
	chtimes = func(string, time.Time, time.Time) error { return errors.New("read-only filesystem") }

	st, err := v.CreateStaging(ctx, "keep.txt")
	require.NoError(t, err)
	_, err = st.Write([]byte("new"))
	require.NoError(t, err)

	_, err = v.Commit(ctx, st, "keep.txt", CommitOptions{MTime: time.Unix(1700000000, 0)})
	require.Error(t, err)
	require.NoError(t, st.Discard())

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))

	entries, err := os.ReadDir(home)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalView_CommitOntoFolderFails(t *testing.T) {
	ctx := context.Background()
	v, home := newLocalView(t, false)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "taken"), 0o770))

	st, err := v.CreateStaging(ctx, "taken")
	require.NoError(t, err)
	_, err = v.Commit(ctx, st, "taken", CommitOptions{})
	require.Error(t, err)
	require.NoError(t, st.Discard())
}

func TestLocalView_ExistsAndCreatable(t *testing.T) {
	ctx := context.Background()
	v, home := newLocalView(t, false)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "docs"), 0o770))
	require.NoError(t, os.WriteFile(filepath.Join(home, "file.txt"), []byte("x"), 0o640))

	ok, err := v.NodeExists(ctx, "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.NodeExists(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.NodeExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.IsCreatable(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.IsCreatable(ctx, "file.txt")
	require.NoError(t, err)
	assert.False(t, ok, "a file is not a folder")

	ok, err = v.IsCreatable(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = v.NodeExists(ctx, "../bob")
	assert.Error(t, err)
}

func TestLocalView_ReadOnlyFolder(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	ctx := context.Background()
	v, home := newLocalView(t, false)
	locked := filepath.Join(home, "locked")
	require.NoError(t, os.MkdirAll(locked, 0o550))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o770) })

	ok, err := v.IsCreatable(ctx, "locked")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalView_ReadOnlyBackend(t *testing.T) {
	ctx := context.Background()
	v, _ := newLocalView(t, true)

	ok, err := v.IsCreatable(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = v.CreateStaging(ctx, "a.txt")
	assert.ErrorIs(t, err, common.ErrReadOnly)
}

func TestLocalView_ForeignStaging(t *testing.T) {
	v, _ := newLocalView(t, false)
	_, err := v.Commit(context.Background(), &spoolStaging{}, "a.txt", CommitOptions{})
	assert.ErrorContains(t, err, "foreign staging")
}
