// Package web exposes the competition over HTTP: roster management, logs, prices,
// manual rounds and an SSE stream of settled trades.
package web

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/internal/services/competition"
	"github.com/vadiminshakov/tradewars/internal/services/pricer"
	"github.com/vadiminshakov/tradewars/internal/services/round"
)

// ArenaStore is the part of the repository served over HTTP.
type ArenaStore interface {
	BotsOrDefault(ctx context.Context) []domain.Bot
	SaveBots(ctx context.Context, bots []domain.Bot) error
	Trades(ctx context.Context) ([]domain.TradeRecord, error)
	Winners(ctx context.Context) ([]domain.WinnerRecord, error)
	PriceHistory(ctx context.Context) ([]domain.PriceSnapshot, error)
}

// Clock checks and reports the competition day.
type Clock interface {
	MaybeReset(ctx context.Context, now time.Time, quote *domain.PriceQuote) (competition.ResetResult, error)
	Status(ctx context.Context, now time.Time) (competition.Status, error)
}

// RoundRunner triggers a round on demand.
type RoundRunner interface {
	RunRound(ctx context.Context) (*round.Report, error)
}

// TradeStream reads journaled trade events.
type TradeStream interface {
	EventsAfter(index uint64) ([]domain.TradeEventRecord, error)
}

// Deps groups the services behind the HTTP API.
type Deps struct {
	Store  ArenaStore
	Clock  Clock
	Prices pricer.Source
	Rounds RoundRunner
	Trades TradeStream
	Now    func() time.Time
	// CORSOrigins allowed browser origins; empty allows any.
	CORSOrigins []string
}

// Server exposes HTTP endpoints serving the JSON API and an SSE stream.
type Server struct {
	Addr   string
	deps   Deps
	router *gin.Engine
	logger *zap.Logger
}

// NewServer wires the router and middleware.
func NewServer(addr string, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(deps.CORSOrigins)))

	s := &Server{Addr: addr, deps: deps, router: router, logger: logger}
	s.routes()

	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	api := s.router.Group("/api")
	api.GET("/bots", s.getBots)
	api.POST("/bots", s.saveBots)
	api.GET("/trades", s.getTrades)
	api.GET("/winners", s.getWinners)
	api.GET("/prices", s.getPrices)
	api.GET("/prices/history", s.getPriceHistory)
	api.POST("/round", s.runRound)
	api.GET("/status", s.getStatus)

	s.router.GET("/trades/stream", s.streamTrades)
	s.router.GET("/trades/ws", s.streamTradesWS)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Last-Event-ID"}
	cfg.ExposeHeaders = []string{"Content-Length"}
	return cfg
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("https server shutdown error", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http (acme) server error", zap.Error(err))
		}
	}()

	s.logger.Info("https server listening", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
