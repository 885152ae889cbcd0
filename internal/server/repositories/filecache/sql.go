package filecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/common"
	"github.com/dmitrijs2005/davbundle/internal/dbx"
	"github.com/dmitrijs2005/davbundle/internal/server/storage"
)

const (
	upsertFileQuery = `
		INSERT INTO filecache (owner, path, is_dir, size, etag, mtime, file_id, dirty)
		VALUES (?, ?, FALSE, ?, ?, ?, ?, TRUE)
		ON CONFLICT (owner, path) DO UPDATE SET
			is_dir = FALSE,
			size = excluded.size,
			etag = excluded.etag,
			mtime = excluded.mtime,
			file_id = excluded.file_id,
			dirty = TRUE`

	markFolderQuery = `
		INSERT INTO filecache (owner, path, is_dir, dirty)
		VALUES (?, ?, TRUE, TRUE)
		ON CONFLICT (owner, path) DO UPDATE SET dirty = TRUE`

	getQuery = `
		SELECT owner, path, is_dir, size, etag, mtime, file_id, dirty
		FROM filecache WHERE owner = ? AND path = ?`
)

// SQLRepository stores the cache in PostgreSQL or SQLite. Queries are
// written with "?" placeholders and rebound for PostgreSQL.
type SQLRepository struct {
	db       *sql.DB
	numbered bool
}

// NewPostgresRepository returns a repository using $n placeholders.
func NewPostgresRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db, numbered: true}
}

func NewSQLiteRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) q(query string) string {
	if !r.numbered {
		return query
	}
	return rebind(query)
}

func (r *SQLRepository) MarkDirty(ctx context.Context, owner string, info storage.FileInfo) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx, r.q(upsertFileQuery),
			owner, info.Path, info.Size, info.ETag, info.MTime.Unix(), info.FileID)
		if err != nil {
			return fmt.Errorf("upsert file: %w", err)
		}

		for _, dir := range ancestors(info.Path) {
			if _, err := tx.ExecContext(ctx, r.q(markFolderQuery), owner, dir); err != nil {
				return fmt.Errorf("mark folder %q dirty: %w", dir, err)
			}
		}
		return nil
	})
}

func (r *SQLRepository) Get(ctx context.Context, owner, path string) (*Entry, error) {
	var (
		e     Entry
		mtime int64
	)
	err := r.db.QueryRowContext(ctx, r.q(getQuery), owner, path).
		Scan(&e.Owner, &e.Path, &e.IsDir, &e.Size, &e.ETag, &mtime, &e.FileID, &e.Dirty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("select filecache: %w", err)
	}
	e.MTime = time.Unix(mtime, 0)
	return &e, nil
}

// rebind turns "?" placeholders into PostgreSQL's "$1", "$2", ...
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
