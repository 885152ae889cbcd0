// Package httpserver exposes the bundle handler over HTTP.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/logging"
	"github.com/dmitrijs2005/davbundle/internal/server/bundle"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BundleHandler processes one bundled upload.
type BundleHandler interface {
	HandleBundledUpload(ctx context.Context, req *bundle.Request) (*bundle.Multistatus, error)
}

type Options struct {
	Address         string
	SecretKey       string
	MaxBundleSize   int64 // bytes, 0 = unlimited
	ShutdownTimeout time.Duration
}

type Server struct {
	opts      Options
	handler   BundleHandler
	logger    logging.Logger
	jwtSecret []byte
	router    chi.Router
}

func New(opts Options, h BundleHandler, l logging.Logger) *Server {
	if l == nil {
		l = logging.Nop()
	}
	s := &Server{
		opts:      opts,
		handler:   h,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(opts.SecretKey),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/status", s.status)

	r.Group(func(r chi.Router) {
		r.Use(s.accessTokenMiddleware)
		r.Post("/remote.php/dav/files/{user}", s.handleBundle)
		r.Post("/files/{user}", s.handleBundle)
	})
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		timeout := s.opts.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "graceful shutdown failed", "error", err)
			_ = srv.Close()
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}
