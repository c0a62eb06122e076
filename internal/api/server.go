// Package api exposes a read-only HTTP surface over the engine: recent
// signals, on-demand scans and mode presets.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"crypto-signal-engine/config"
	"crypto-signal-engine/internal/engine"
	"crypto-signal-engine/internal/scanner"
	"crypto-signal-engine/internal/storage"
)

// Server serves the HTTP API. The history repository is optional; without
// it signal queries fall back to the scanner's in-memory cache.
type Server struct {
	cfg     config.ServerConfig
	scanner *scanner.Scanner
	history *storage.Repository
	log     zerolog.Logger
	http    *http.Server
}

// NewServer builds the router and server. history may be nil.
func NewServer(cfg config.ServerConfig, sc *scanner.Scanner, history *storage.Repository, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		scanner: sc,
		history: history,
		log:     logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/signals", s.handleSignals)
		v1.GET("/signals/:symbol", s.handleSignalsBySymbol)
		v1.POST("/scan", s.handleScan)
		v1.GET("/modes", s.handleModes)
	}

	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: router,
	}
	return s
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("api server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"last_scan": s.scanner.LastRun(),
	})
}

// handleSignals returns recent signals, preferring persisted history when
// a repository is wired
func (s *Server) handleSignals(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	s.respondSignals(c, "", limit)
}

func (s *Server) handleSignalsBySymbol(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	s.respondSignals(c, c.Param("symbol"), limit)
}

func (s *Server) respondSignals(c *gin.Context, symbol string, limit int) {
	if s.history != nil {
		signals, err := s.history.RecentSignals(c.Request.Context(), symbol, limit)
		if err != nil {
			s.log.Error().Err(err).Msg("history query failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
		return
	}

	signals := s.scanner.Recent(symbol)
	if len(signals) > limit {
		signals = signals[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

// handleScan evaluates one symbol on demand
func (s *Server) handleScan(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol parameter required"})
		return
	}

	sig, err := s.scanner.EvaluateSymbol(c.Request.Context(), symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("on-demand scan failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if sig == nil {
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "signal": nil, "message": "no signal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "signal": sig})
}

func (s *Server) handleModes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"modes": engine.AllModes()})
}

func parseLimit(raw string) int {
	if raw == "" {
		return 50
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 500 {
		return 50
	}
	return n
}
