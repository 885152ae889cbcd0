package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/davbundle/internal/server/bundle"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := chi.URLParam(r, "user")

	if userID, _ := userFromContext(ctx); userID != owner {
		s.writeError(ctx, w, &bundle.HTTPError{
			Status:    http.StatusForbidden,
			Exception: bundle.ExceptionForbidden,
			Message:   "Token does not grant access to this files home",
		})
		return
	}

	if s.opts.MaxBundleSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBundleSize)
	}

	ms, err := s.handler.HandleBundledUpload(ctx, &bundle.Request{
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Body:        r.Body,
	})
	if err != nil {
		s.fail(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	if err := ms.WriteXML(w); err != nil {
		s.logger.Error(ctx, "write multistatus", "error", err, "request_id", middleware.GetReqID(ctx))
	}
}

func (s *Server) fail(ctx context.Context, w http.ResponseWriter, err error) {
	var he *bundle.HTTPError
	switch {
	case errors.As(err, &he):
		s.writeError(ctx, w, he)
	case errors.Is(err, context.Canceled):
		s.logger.Info(ctx, "bundle aborted by client", "error", err, "request_id", middleware.GetReqID(ctx))
	default:
		s.logger.Error(ctx, "bundle failed", "error", err, "request_id", middleware.GetReqID(ctx))
		s.writeError(ctx, w, &bundle.HTTPError{
			Status:    http.StatusInternalServerError,
			Exception: bundle.ExceptionGeneric,
			Message:   http.StatusText(http.StatusInternalServerError),
		})
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, he *bundle.HTTPError) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(he.Status)
	if err := bundle.WriteErrorXML(w, he); err != nil {
		s.logger.Error(ctx, "write error body", "error", err)
	}
}
