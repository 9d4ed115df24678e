package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/franckalain/traypositions/internal/config"
	"github.com/franckalain/traypositions/internal/ingest"
	"github.com/franckalain/traypositions/internal/models"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Analyzer produces food positions for an image reference
type Analyzer interface {
	Analyze(ctx context.Context, imageURL string) (*models.AnalysisResponse, error)
}

// Rehoster stores uploaded bytes and returns a public reference to them
type Rehoster interface {
	Rehost(ctx context.Context, original, contentType string, data []byte) (ingest.Reference, error)
}

// Options configures the HTTP surface
type Options struct {
	Mode       string // config.ModeURL, config.ModeRehost or config.ModeBase64
	APIToken   string // empty disables caller auth
	StaticDir  string // served at PublicPath when set
	PublicPath string
}

type Server struct {
	analyzer Analyzer
	rehoster Rehoster
	opts     Options
	logger   *zap.Logger
	router   *gin.Engine
}

// New wires the routes. rehoster is only used in rehost mode.
func New(analyzer Analyzer, rehoster Rehoster, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = config.ModeBase64
	}

	s := &Server{
		analyzer: analyzer,
		rehoster: rehoster,
		opts:     opts,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", s.handleHealth)

	api := r.Group("/")
	api.Use(RequireToken(s.opts.APIToken))
	{
		api.POST("/analyze-food-positions", s.handleAnalyze)
		api.POST("/chat", s.handleAnalyze)
		api.GET("/ws", s.handleWebSocket)
	}

	if s.opts.StaticDir != "" && s.opts.PublicPath != "" {
		r.Static(s.opts.PublicPath, s.opts.StaticDir)
	}
	return r
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler { return s.router }

// Start serves on port until SIGINT or SIGTERM, then shuts down gracefully
func (s *Server) Start(port string) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("port", port), zap.String("mode", s.opts.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
	}

	s.logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
