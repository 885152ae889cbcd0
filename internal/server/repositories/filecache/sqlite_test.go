package filecache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/common"
	"github.com/dmitrijs2005/davbundle/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE filecache (
    owner      TEXT    NOT NULL,
    path       TEXT    NOT NULL,
    is_dir     INTEGER NOT NULL DEFAULT 0,
    size       INTEGER NOT NULL DEFAULT 0,
    etag       TEXT    NOT NULL DEFAULT '',
    mtime      INTEGER NOT NULL DEFAULT 0,
    file_id    TEXT    NOT NULL DEFAULT '',
    dirty      INTEGER NOT NULL DEFAULT 1,
    updated_at TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (owner, path)
);`

func newSQLiteRepo(t *testing.T) (*SQLRepository, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return NewSQLiteRepository(db), db
}

func TestSQLiteRepository_MarkDirtyAndGet(t *testing.T) {
	ctx := context.Background()
	repo, db := newSQLiteRepo(t)

	info := storage.FileInfo{Path: "docs/a.txt", Size: 5, ETag: "e1", MTime: time.Unix(1000, 0), FileID: "f1"}
	require.NoError(t, repo.MarkDirty(ctx, "alice", info))

	e, err := repo.Get(ctx, "alice", "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, &Entry{Owner: "alice", Path: "docs/a.txt", Size: 5, ETag: "e1", MTime: time.Unix(1000, 0), FileID: "f1", Dirty: true}, e)

	for _, dir := range []string{"docs", ""} {
		d, err := repo.Get(ctx, "alice", dir)
		require.NoError(t, err)
		assert.True(t, d.IsDir, dir)
		assert.True(t, d.Dirty, dir)
	}

	// Overwrite keeps a single row with the new values.
	info.Size, info.ETag = 7, "e2"
	require.NoError(t, repo.MarkDirty(ctx, "alice", info))

	e, err = repo.Get(ctx, "alice", "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(7), e.Size)
	assert.Equal(t, "e2", e.ETag)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM filecache WHERE owner = 'alice'`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestSQLiteRepository_DirtyFlagIsReset(t *testing.T) {
	ctx := context.Background()
	repo, db := newSQLiteRepo(t)

	require.NoError(t, repo.MarkDirty(ctx, "bob", storage.FileInfo{Path: "x/1.txt", MTime: time.Unix(1, 0)}))
	_, err := db.Exec(`UPDATE filecache SET dirty = 0`)
	require.NoError(t, err)

	require.NoError(t, repo.MarkDirty(ctx, "bob", storage.FileInfo{Path: "x/2.txt", MTime: time.Unix(2, 0)}))

	d, err := repo.Get(ctx, "bob", "x")
	require.NoError(t, err)
	assert.True(t, d.Dirty)

	f, err := repo.Get(ctx, "bob", "x/1.txt")
	require.NoError(t, err)
	assert.False(t, f.Dirty, "siblings are untouched")
}

func TestSQLiteRepository_GetMissing(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	_, err := repo.Get(context.Background(), "nobody", "a")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
