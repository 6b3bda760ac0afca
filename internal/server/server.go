// Package server implements the HTTP file browser.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"filenav/internal/config"
	"filenav/internal/logging"
	"filenav/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	engine      *gin.Engine
	resolver    *pathResolver
	showHidden  bool
	allowedExts map[string]struct{}
	logger      *zap.Logger
}

// New builds a server for cfg, which must already be validated.
func New(cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	resolver, err := newPathResolver(cfg.Root)
	if err != nil {
		return nil, err
	}

	indexTemplate, err := newIndexTemplate()
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), logging.Middleware(logger), metrics.Middleware())
	engine.SetHTMLTemplate(indexTemplate)

	srv := &Server{
		engine:      engine,
		resolver:    resolver,
		showHidden:  cfg.ShowHidden,
		allowedExts: extensionSet(cfg.AllowedExtensions),
		logger:      logger,
	}

	engine.GET("/", srv.handleIndex)
	engine.HEAD("/", srv.handleIndex)
	engine.NoRoute(srv.serveStaticFile)

	return srv, nil
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener, which it closes on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return serve(ctx, ln, &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}, s.logger)
}

// RunMetrics serves the Prometheus endpoint on addr until ctx is cancelled.
func RunMetrics(ctx context.Context, addr string, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	return serve(ctx, ln, &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}, logger)
}

func serve(ctx context.Context, ln net.Listener, httpServer *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
