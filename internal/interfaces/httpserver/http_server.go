package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/config"
	"github.com/janhq/jan-widget/internal/infrastructure/auth"
	"github.com/janhq/jan-widget/internal/interfaces/httpserver/handlers"
	"github.com/janhq/jan-widget/internal/interfaces/httpserver/middlewares"
	"github.com/janhq/jan-widget/internal/interfaces/httpserver/routes"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// HTTPServer is the HTTP server for the widget API.
type HTTPServer struct {
	cfg    *config.Config
	engine *gin.Engine
	log    zerolog.Logger
}

// New creates a new HTTP server. checks back /readyz.
func New(
	cfg *config.Config,
	log zerolog.Logger,
	handlerProvider *handlers.Provider,
	authValidator *auth.Validator,
	checks map[string]ReadinessCheck,
) *HTTPServer {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middlewares.RequestID())
	engine.Use(middlewares.Tracing(cfg.ServiceName))
	engine.Use(middlewares.Metrics())
	engine.Use(middlewares.CORS())
	engine.Use(middlewares.RequestLogger(log))

	registerCoreRoutes(engine, cfg, authValidator, checks)
	routes.NewProvider(handlerProvider, authValidator).Register(engine)

	return &HTTPServer{
		cfg:    cfg,
		engine: engine,
		log:    log,
	}
}

// Handler exposes the engine for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *HTTPServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr()).Msg("HTTP server listening")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("context cancelled, shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func registerCoreRoutes(engine *gin.Engine, cfg *config.Config, authValidator *auth.Validator, checks map[string]ReadinessCheck) {
	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": cfg.ServiceName,
			"status":  "ok",
		})
	})

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	engine.GET("/readyz", func(c *gin.Context) {
		failed := gin.H{}
		if !authValidator.Ready() {
			failed["auth"] = "initializing"
		}
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
