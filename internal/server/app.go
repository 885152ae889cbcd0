// Package server wires configuration, storage, the tree cache and the HTTP
// layer into a runnable bundle server.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/davbundle/internal/logging"
	"github.com/dmitrijs2005/davbundle/internal/server/bundle"
	"github.com/dmitrijs2005/davbundle/internal/server/config"
	"github.com/dmitrijs2005/davbundle/internal/server/httpserver"
	"github.com/dmitrijs2005/davbundle/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/davbundle/internal/server/storage"
)

type App struct {
	config *config.Config
	logger logging.Logger
	repos  *repomanager.Manager
	plugin *bundle.Plugin
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogLevel, c.LogFormat, os.Stdout)

	backend, err := newBackend(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	repos, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	plugin := bundle.New(storage.NewHomes(backend), repos.Locks(), repos.FileCache(), logger)
	if c.ReadOnly {
		plugin.OnBeforeWrite(bundle.ReadOnly)
	}

	logger.Info(ctx, "App initialized",
		"storage", c.StorageBackend,
		"db", string(repos.Dialect()),
		"read_only", c.ReadOnly,
	)
	return &App{config: c, logger: logger, repos: repos, plugin: plugin}, nil
}

func newBackend(ctx context.Context, c *config.Config) (storage.Backend, error) {
	switch c.StorageBackend {
	case config.BackendLocal:
		b, err := storage.NewLocalBackend(c.DataDir, c.ReadOnly)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendS3:
		b, err := storage.NewS3Backend(ctx, storage.S3Config{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			SpoolDir:     filepath.Join(c.DataDir, "spool"),
			ReadOnly:     c.ReadOnly,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpserver.New(httpserver.Options{
		Address:         app.config.HTTPAddr,
		SecretKey:       app.config.SecretKey,
		MaxBundleSize:   app.config.MaxBundleSize,
		ShutdownTimeout: app.config.ShutdownTimeout,
	}, app.plugin, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "close db", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
