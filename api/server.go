package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"newsbot/summary"
	"newsbot/types"

	"github.com/gin-gonic/gin"
)

// PollRunner runs a channel's cycle on demand
type PollRunner interface {
	RunOnce(ctx context.Context, channel string) (*types.CycleReport, error)
}

// StatusBoard exposes the in-memory run state
type StatusBoard interface {
	GetStatus() types.StatusResponse
	ClearWatermarks()
}

// ReportSender sends the daily report for a day
type ReportSender interface {
	Send(ctx context.Context, day time.Time) (*summary.Report, error)
}

// DataStore is the durable store as seen by the admin surface
type DataStore interface {
	Ping(ctx context.Context) error
	DeleteArticles(ctx context.Context) (int64, error)
	DeleteDeliveries(ctx context.Context) (int64, error)
	ResetAll(ctx context.Context) (map[string]int64, error)
}

// Resetter clears one kind of state
type Resetter interface {
	Reset(ctx context.Context) (int64, error)
}

// CacheStatus reports whether the primary counter tier is in use
type CacheStatus interface {
	Available() bool
}

// Dependencies are the components served by the router. Reporter may be nil.
type Dependencies struct {
	Runner     PollRunner
	Board      StatusBoard
	Reporter   ReportSender
	Store      DataStore
	Counters   Resetter
	Watermarks Resetter
	Cache      CacheStatus
	Location   *time.Location
	Logger     *slog.Logger
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	// Register resource routers
	RegisterHealthRoutes(r, deps)
	RegisterManualRoutes(r, deps)
	return r
}

// requestLogger logs each request at debug level, errors at warn
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "api: request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// Server runs the admin router over HTTP
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a server listening on addr
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background. errc receives a listener failure.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	s.logger.Info("api: starting server", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api: server error", "error", err)
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("api: shutting down server")
	return s.httpServer.Shutdown(ctx)
}
