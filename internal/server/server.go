// Package server exposes a Filestore over HTTP.
//
// Routes:
//
//	GET    /v1/files?dir=&match=   simple files under dir matching a glob
//	GET    /v1/dirs?dir=           immediate subdirectories of dir
//	GET    /v1/objects/{key}       object content
//	HEAD   /v1/objects/{key}       object metadata
//	PUT    /v1/objects/{key}       write (?noclobber=true picks a free name)
//	DELETE /v1/objects/{key}       delete
//	POST   /v1/rename              {"from","to","noclobber"}
//	GET    /v1/available/{key}     first free name for key
//	GET    /v1/url/{key}           public URL of key (?expires=15m for a presigned one)
//	GET    /v1/uribase             public base URL of the bucket
//	GET    /healthz
//	GET    /metrics
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/s3helper/internal/filestore"
	"github.com/koustreak/s3helper/internal/logger"
	"github.com/koustreak/s3helper/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// Server serves one Filestore.
type Server struct {
	fs     *filestore.Filestore
	log    *logger.Logger
	router chi.Router
}

// New builds the router for fs. A nil log uses the global logger.
func New(fs *filestore.Filestore, log *logger.Logger) *Server {
	if log == nil {
		log = logger.L()
	}
	s := &Server{
		fs:  fs,
		log: log.With().Str("component", "http").Logger(),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/files", s.handleLs)
		r.Get("/dirs", s.handleLsDir)
		r.Get("/uribase", s.handleURIBase)
		r.Post("/rename", s.handleRename)

		r.Get("/objects/*", s.handleGetObject)
		r.Head("/objects/*", s.handleHeadObject)
		r.Put("/objects/*", s.handlePutObject)
		r.Delete("/objects/*", s.handleDeleteObject)

		r.Get("/available/*", s.handleAvailable)
		r.Get("/url/*", s.handleURL)
	})

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoWith("starting server", map[string]interface{}{"addr": addr, "bucket": s.fs.Bucket()})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// logRequests logs every request and records it in the HTTP metrics,
// labelled by route pattern so that keys do not explode cardinality.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(r.Method, route, status, elapsed)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"bytes":       ww.BytesWritten(),
			"duration_ms": elapsed.Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}
		if status >= http.StatusInternalServerError {
			s.log.ErrorWith("request failed", nil, fields)
			return
		}
		s.log.DebugWith("request", fields)
	})
}
