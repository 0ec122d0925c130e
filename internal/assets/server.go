package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	level "github.com/labstack/gommon/log"
	"go.uber.org/zap"

	"github.com/five82/easel/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Options configure the asset server.
type Options struct {
	Addr   string
	Dir    string
	Logger *zap.Logger
}

// Server serves a directory over HTTP with a health endpoint.
type Server struct {
	e      *echo.Echo
	addr   string
	dir    string
	logger *zap.Logger
}

// NewServer validates dir and builds the echo instance.
func NewServer(opts Options) (*Server, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve asset dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("asset dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset dir: %s is not a directory", abs)
	}
	logger := logging.OrNop(opts.Logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(level.WARN)

	e.Use(
		middleware.Recover(),
		middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:  true,
			LogURI:     true,
			LogStatus:  true,
			LogLatency: true,
			LogError:   true,
			LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
				fields := []zap.Field{
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Duration("latency", v.Latency),
				}
				if v.Error != nil {
					logger.Warn("request", append(fields, zap.Error(v.Error))...)
					return nil
				}
				logger.Info("request", fields...)
				return nil
			},
		}),
		middleware.Gzip(),
	)

	e.GET("/healthz", Healthz)
	e.Use(middleware.StaticWithConfig(middleware.StaticConfig{
		Root:   abs,
		Browse: true,
	}))

	return &Server{e: e, addr: opts.Addr, dir: abs, logger: logger}, nil
}

// Healthz reports that the server is up.
func Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving assets", zap.String("addr", s.addr), zap.String("dir", s.dir))
		errCh <- s.e.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve assets: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown asset server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve assets: %w", err)
	}
	s.logger.Info("Asset server stopped")
	return nil
}
