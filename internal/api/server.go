// Package api serves the news listing, the admin ingestion trigger and the
// realtime event stream over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/educatorstribe/tribenews/internal/auth"
	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/ingest"
	"github.com/educatorstribe/tribenews/internal/observability"
	"github.com/educatorstribe/tribenews/internal/realtime"
	"github.com/educatorstribe/tribenews/internal/storage"
)

// Ingester is the part of the ingester the API drives.
type Ingester interface {
	Run(ctx context.Context, trigger string) (*ingest.RunResult, error)
	LastRun() *ingest.RunResult
	State() ingest.State
}

// Deps are the collaborators of a Server. Hub and Metrics are optional.
type Deps struct {
	Config   *config.Config
	Store    storage.Store
	Ingester Ingester
	Keyring  *auth.Keyring
	Hub      *realtime.Hub
	Metrics  *observability.Metrics
	Logger   *slog.Logger

	// RunContext bounds admin-triggered runs. A client disconnect does not
	// cancel a run; cancelling RunContext does.
	RunContext context.Context
}

// Server is the HTTP API.
type Server struct {
	cfg      *config.Config
	store    storage.Store
	ingester Ingester
	keyring  *auth.Keyring
	hub      *realtime.Hub
	metrics  *observability.Metrics
	runCtx   context.Context
	logger   *slog.Logger

	engine *gin.Engine
	srv    *http.Server

	// keepAlive is the SSE ping interval.
	keepAlive time.Duration
}

// NewServer builds the router.
func NewServer(d Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	runCtx := d.RunContext
	if runCtx == nil {
		runCtx = context.Background()
	}
	keyring := d.Keyring
	if keyring == nil {
		keyring = &auth.Keyring{}
	}

	s := &Server{
		cfg:       d.Config,
		store:     d.Store,
		ingester:  d.Ingester,
		keyring:   keyring,
		hub:       d.Hub,
		metrics:   d.Metrics,
		runCtx:    runCtx,
		logger:    d.Logger.With("component", "api_server"),
		keepAlive: 15 * time.Second,
	}

	r := gin.New()
	r.Use(requestLogger(s.logger))
	r.Use(gin.Recovery())
	r.Use(cors(d.Config.Server.CORSOrigins))
	r.Use(authenticate(s.keyring, s.logger))
	s.registerRoutes(r)
	s.engine = r
	return s
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		r.GET(s.cfg.Metrics.Path, gin.WrapH(s.metrics))
	}

	api := r.Group("/api")
	{
		api.GET("/articles", s.handleListArticles)
		api.GET("/articles/latest", s.handleLatestArticles)
		api.GET("/events", requireRole(auth.RoleMember), s.handleEvents)
	}

	admin := api.Group("/admin", requireRole(auth.RoleAdmin))
	{
		admin.POST("/ingest", s.handleIngest)
		admin.GET("/runs/last", s.handleLastRun)
	}

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// Handler returns the router, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on cfg.Server.Addr until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.srv = &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", s.cfg.Server.Addr, "api_keys", s.keyring.Len())
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	if s.hub != nil {
		// Open event streams would otherwise hold Shutdown until ctx expires.
		s.hub.Close()
	}
	s.logger.Info("API server shutting down")
	return s.srv.Shutdown(ctx)
}
