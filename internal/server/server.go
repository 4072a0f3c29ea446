// Package server is the HTTP file delivery surface: upload an archive to
// rebuild the dataset, download the dataset, its per-owner export archive or a
// copy of the database.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/franz/order-recon/internal/service"
	"github.com/franz/order-recon/internal/util"
)

// DefaultMaxUpload bounds the size of an uploaded archive
const DefaultMaxUpload = 64 << 20

// Snapshotter writes a consistent copy of the backing database to path
type Snapshotter interface {
	Snapshot(ctx context.Context, path string) error
}

// Config holds configuration for the server
type Config struct {
	Service *service.Service
	// Snapshot enables GET /datasets/current.db when set
	Snapshot  Snapshotter
	Logger    *zerolog.Logger
	MaxUpload int64
	// Now overrides the clock used for export names, for tests
	Now func() time.Time
}

// Server serves the file delivery routes
type Server struct {
	svc       *service.Service
	snapshot  Snapshotter
	logger    *zerolog.Logger
	maxUpload int64
	now       func() time.Time
}

// New creates a server from cfg
func New(cfg Config) *Server {
	s := &Server{
		svc:       cfg.Service,
		snapshot:  cfg.Snapshot,
		logger:    cfg.Logger,
		maxUpload: cfg.MaxUpload,
		now:       cfg.Now,
	}
	if s.logger == nil {
		s.logger = util.Logger()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUpload
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		accessLog(s.logger),
		middleware.Recoverer,
	)

	r.Get("/healthz", s.health)
	r.Post("/datasets", s.uploadDataset)
	r.Get("/datasets/current", s.currentDataset)
	r.Get("/datasets/current.db", s.databaseSnapshot)
	r.Get("/exports", s.exportArchive)

	return r
}

// Serve listens on addr and blocks until ctx is cancelled
func (s *Server) Serve(ctx context.Context, addr string) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.logger.Info().Str("addr", addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug().Msg("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
