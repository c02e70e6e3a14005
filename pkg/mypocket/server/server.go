// Package server assembles the HTTP API from the feature packages.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mypocket/mypocket/pkg/mypocket/apikeys"
	"github.com/mypocket/mypocket/pkg/mypocket/auth"
	"github.com/mypocket/mypocket/pkg/mypocket/config"
	"github.com/mypocket/mypocket/pkg/mypocket/importexport"
	"github.com/mypocket/mypocket/pkg/mypocket/links"
	"github.com/mypocket/mypocket/pkg/mypocket/logging"
	"github.com/mypocket/mypocket/pkg/mypocket/metadata"
	"github.com/mypocket/mypocket/pkg/mypocket/tags"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "github.com/mypocket/mypocket/pkg/mypocket/apidocs"
)

const shutdownTimeout = 10 * time.Second

// Server is the configured API server
type Server struct {
	cfg    *config.Config
	logger *logging.Logger
	router *gin.Engine
	redis  *redis.Client
}

// New wires every component for cfg. When Redis is configured but
// unreachable the metadata cache falls back to process memory.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}

	if err := validateCORS(cfg.CORS); err != nil {
		return nil, err
	}

	auth.Configure(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	s := &Server{cfg: cfg, logger: logger}

	var cache metadata.Cache = metadata.NewMemoryCache()
	if cfg.Redis.URL != "" {
		client, err := metadata.OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn(ctx, "redis unavailable, caching metadata in memory", "error", err)
		} else {
			s.redis = client
			cache = metadata.NewRedisCache(client)
		}
	}

	fetcher := metadata.NewFetcher(cache, logger, metadata.Options{
		Timeout:  cfg.Metadata.Timeout,
		Rate:     cfg.Metadata.Rate,
		Burst:    cfg.Metadata.Burst,
		CacheTTL: cfg.Metadata.CacheTTL,
	})

	s.router = NewRouter(db, fetcher, cfg.CORS, logger)
	return s, nil
}

// NewRouter builds the gin engine with every route
func NewRouter(db *gorm.DB, fetcher *metadata.Fetcher, corsCfg config.CORSConfig, logger *logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(logger), corsMiddleware(corsCfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	registry := tags.NewRegistry(db, logger)
	repo := links.NewRepository(db, registry, fetcher, logger)
	reconciler := importexport.NewReconciler(db, logger)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "mypocket",
			})
		})

		// Combined auth middleware (accepts JWT or API key)
		combinedAuth := apikeys.CombinedAuthMiddleware(db)

		// Auth routes (public, /me accepts either credential)
		auth.NewHandler(db).RegisterRoutes(api.Group("/auth"), combinedAuth)

		// API keys routes (JWT only - need to be logged in to manage keys)
		apikeys.NewHandler(db).RegisterRoutes(api.Group("", auth.AuthMiddleware()))

		protected := api.Group("", combinedAuth)
		tags.NewHandler(registry).RegisterRoutes(protected)
		links.NewHandler(repo).RegisterRoutes(protected)
		importexport.NewHandler(reconciler).RegisterRoutes(protected)
		metadata.NewHandler(fetcher).RegisterRoutes(protected)
	}

	return r
}

// Router returns the HTTP handler
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info(shutdownCtx, "shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// Close releases the Redis connection, if any
func (s *Server) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
