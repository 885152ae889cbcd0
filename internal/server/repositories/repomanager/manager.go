// Package repomanager opens the database selected by the configured DSN,
// migrates it with goose and vends the tree cache and lock provider that
// belong to it.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/davbundle/internal/server/locking"
	"github.com/dmitrijs2005/davbundle/internal/server/migrations"
	"github.com/dmitrijs2005/davbundle/internal/server/repositories/filecache"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectMemory   Dialect = "memory"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Manager owns the database handle, if any.
type Manager struct {
	dialect Dialect
	db      *sql.DB
	cache   filecache.Repository
	locks   locking.Provider
}

// seams for tests
var (
	sqlOpen        = sql.Open
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return goose.UpContext(ctx, db, dir, opts...)
	}
)

// DialectFor picks the backend for dsn: "" keeps everything in memory,
// postgres:// and postgresql:// URLs use PostgreSQL and anything else is
// treated as a SQLite database.
func DialectFor(dsn string) Dialect {
	switch {
	case dsn == "":
		return DialectMemory
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

// Open connects to dsn and runs its migrations. PostgreSQL also provides
// advisory locks; the other dialects lock in memory.
func Open(ctx context.Context, dsn string) (*Manager, error) {
	dialect := DialectFor(dsn)
	if dialect == DialectMemory {
		return &Manager{
			dialect: dialect,
			cache:   filecache.NewMemoryRepository(),
			locks:   locking.NewMemoryProvider(),
		}, nil
	}

	driver, gooseDialect, dir := "pgx", "postgres", migrations.DirPostgres
	if dialect == DialectSQLite {
		driver, gooseDialect, dir = "sqlite", "sqlite3", migrations.DirSQLite
	}

	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// one writer at a time; also keeps ":memory:" on a single database
		db.SetMaxOpenConns(1)
	}

	if err := runMigrations(ctx, db, gooseDialect, dir); err != nil {
		_ = db.Close()
		return nil, err
	}

	m := &Manager{dialect: dialect, db: db}
	if dialect == DialectPostgres {
		m.cache = filecache.NewPostgresRepository(db)
		m.locks = locking.NewPostgresProvider(db)
	} else {
		m.cache = filecache.NewSQLiteRepository(db)
		m.locks = locking.NewMemoryProvider()
	}
	return m, nil
}

func runMigrations(ctx context.Context, db *sql.DB, dialect, dir string) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (m *Manager) Dialect() Dialect { return m.dialect }

func (m *Manager) FileCache() filecache.Repository { return m.cache }

func (m *Manager) Locks() locking.Provider { return m.locks }

// DB returns nil for the memory dialect.
func (m *Manager) DB() *sql.DB { return m.db }

func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
