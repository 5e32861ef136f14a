package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wudi/faultbox/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// tracerFlushTimeout bounds span export after the drain.
const tracerFlushTimeout = 5 * time.Second

// Server wraps the app with HTTP server functionality
type Server struct {
	app             *App
	srv             *http.Server
	shutdownTimeout time.Duration
}

// NewServer creates the HTTP server for a using the server section of its
// configuration.
func NewServer(a *App) *Server {
	sc := a.cfg.Server
	return &Server{
		app: a,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", sc.Port),
			Handler:           a.Handler(),
			ReadHeaderTimeout: sc.ReadHeaderTimeout,
			ReadTimeout:       sc.ReadTimeout,
			WriteTimeout:      sc.WriteTimeout,
			IdleTimeout:       sc.IdleTimeout,
			ErrorLog:          logging.StdLogger("http"),
		},
		shutdownTimeout: sc.ShutdownTimeout,
	}
}

// Run listens on the configured port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests for up to the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("Server running",
			zap.Int("port", s.app.cfg.Server.Port),
			zap.String("addr", ln.Addr().String()),
		)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logging.Info("Shutdown signal received")
		}
		return s.Shutdown()
	})

	return g.Wait()
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Requests still running after the shutdown timeout are cut off.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		logging.Warn("Drain timed out, closing remaining connections",
			zap.Duration("timeout", s.shutdownTimeout),
			zap.Error(err),
		)
		s.srv.Close()
	}

	// the drain may have used up ctx
	flushCtx, flushCancel := context.WithTimeout(context.Background(), tracerFlushTimeout)
	defer flushCancel()
	if err := s.app.Close(flushCtx); err != nil {
		logging.Error("Tracer shutdown error", zap.Error(err))
	}

	logging.Info("Server closed")
	return nil
}
