// Package server sets up the HTTP gateway over one tender session
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/mbd888/tenderbid/internal/chain"
	"github.com/mbd888/tenderbid/internal/config"
	"github.com/mbd888/tenderbid/internal/health"
	"github.com/mbd888/tenderbid/internal/idgen"
	"github.com/mbd888/tenderbid/internal/logging"
	"github.com/mbd888/tenderbid/internal/metrics"
	"github.com/mbd888/tenderbid/internal/ratelimit"
	"github.com/mbd888/tenderbid/internal/security"
	"github.com/mbd888/tenderbid/internal/tender"
	"github.com/mbd888/tenderbid/internal/validation"
	"github.com/mbd888/tenderbid/internal/wallet"
)

// Version is reported by /health.
const Version = "0.1.0"

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Wallet is the account the gateway acts for. *wallet.Wallet implements it.
type Wallet interface {
	tender.Wallet
	chain.Backend
	Address() string
	Ping(ctx context.Context) error
	SwitchAccount(hexKey string) error
	Disconnect()
	Close() error
}

var _ Wallet = (*wallet.Wallet)(nil)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	wallet      Wallet
	session     *tender.Session
	deployments *tender.Deployments
	health      *health.Registry
	rateLimiter *ratelimit.Limiter
	router      *gin.Engine
	httpSrv     *http.Server

	shutdownTimeout time.Duration
	logger      *slog.Logger

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithWallet sets a custom wallet (for testing)
func WithWallet(w Wallet) Option {
	return func(s *Server) {
		s.wallet = w
	}
}

// WithSession sets the session and deployment services instead of binding
// them to the chain client (for testing)
func WithSession(session *tender.Session, deployments *tender.Deployments) Option {
	return func(s *Server) {
		s.session = session
		s.deployments = deployments
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
		health: health.NewRegistry(),

		shutdownTimeout: 30 * time.Second,
	}

	// Apply options first (may set wallet/logger/session)
	for _, opt := range opts {
		opt(s)
	}

	if s.wallet == nil {
		w, err := wallet.New(wallet.Config{
			RPCURL:       cfg.RPCURL,
			PrivateKey:   cfg.PrivateKey,
			ChainID:      cfg.ChainID,
			GasLimit:     cfg.GasLimit,
			PollInterval: cfg.PollInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
		s.wallet = w
	}

	if s.session == nil {
		client, err := chain.New(s.wallet)
		if err != nil {
			return nil, err
		}
		s.session = tender.NewSession(client, s.wallet, tender.WithLogger(s.logger))
		factory := client.Factory(common.HexToAddress(cfg.FactoryAddress))
		s.deployments = tender.NewDeployments(factory, s.wallet, s.logger)
		s.logger.Info("chain client ready",
			"rpc", cfg.RPCURL,
			"chain_id", cfg.ChainID,
			"factory", cfg.FactoryAddress,
		)
	}

	s.health.Register("rpc", health.Ping("rpc", s.wallet.Ping))
	s.health.Register("wallet", health.Account("wallet", s.wallet.Address))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	rlCfg := ratelimit.DefaultConfig()
	rlCfg.WritesPerMinute = cfg.WritesPerMinute
	rlCfg.BurstSize = max(cfg.WritesPerMinute/6, 1)
	s.rateLimiter = ratelimit.New(rlCfg)

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(security.HeadersMiddleware())
	s.router.Use(security.CORSMiddleware(security.ParseOrigins(s.cfg.CORSOrigins)))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(s.rateLimiter.Middleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.New()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")

	h := NewHandler(s.session, s.deployments)
	h.RegisterRoutes(v1)

	account := v1.Group("/account")
	account.GET("", s.accountHandler)
	if s.cfg.IsDevelopment() {
		// Key material over HTTP is a local-node convenience only.
		account.PUT("", s.switchAccountHandler)
		account.DELETE("", s.disconnectHandler)
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.health.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   Version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) accountHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"address":   s.wallet.Address(),
		"connected": s.session.Connected(),
	})
}

// SwitchAccountRequest replaces the signing key.
type SwitchAccountRequest struct {
	PrivateKey string `json:"privateKey" binding:"required"`
}

func (s *Server) switchAccountHandler(c *gin.Context) {
	var req SwitchAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "privateKey is required",
		})
		return
	}
	if err := s.wallet.SwitchAccount(req.PrivateKey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_private_key",
			"message": err.Error(),
		})
		return
	}
	s.accountHandler(c)
}

func (s *Server) disconnectHandler(c *gin.Context) {
	s.wallet.Disconnect()
	s.accountHandler(c)
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Writes block until the transaction is mined.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"account", s.wallet.Address(),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	s.ready.Store(true)
	s.logger.Info("server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server. The limiter, session and wallet are
// released even when draining HTTP connections fails.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	var shutdownErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}

	s.rateLimiter.Stop()
	s.session.Close()

	if err := s.wallet.Close(); err != nil {
		s.logger.Error("wallet close error", "error", err)
	}

	s.logger.Info("server stopped")
	return shutdownErr
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
