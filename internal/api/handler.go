package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"flash-sniper/internal/engine"
	"flash-sniper/internal/events"
	"flash-sniper/internal/monitor"
	"flash-sniper/pkg/db"
)

// StatusSource reports live trading state.
type StatusSource interface {
	Status() engine.Status
}

// Server is the read-only status API.
type Server struct {
	Router  *gin.Engine
	Bus     *events.Bus
	DB      *db.Database
	Trader  StatusSource
	Metrics *monitor.SystemMetrics
	Meta    SystemMeta

	mu         sync.Mutex
	httpServer *http.Server
	log        *logrus.Entry
}

// SystemMeta describes the running bot.
type SystemMeta struct {
	Simulated bool
	Watchlist []string
	Sizing    string
	Version   string
	Started   time.Time
}

// NewServer builds the router. database and bus may be nil.
func NewServer(trader StatusSource, bus *events.Bus, database *db.Database, metrics *monitor.SystemMetrics, meta SystemMeta) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(NewIPRateLimiter(20, 50).Middleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:  r,
		Bus:     bus,
		DB:      database,
		Trader:  trader,
		Metrics: metrics,
		Meta:    meta,
		log:     logrus.WithField("component", "api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(monitor.Handler()))
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/metrics", s.getMetrics)
		api.GET("/orders", s.getOrders)
		api.GET("/positions/history", s.getPositionHistory)
	}
}

type listQuery struct {
	Limit int `form:"limit"`
}

func (q *listQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	mode := "LIVE"
	if s.Meta.Simulated {
		mode = "DEMO"
	}
	st := s.Trader.Status()
	c.JSON(http.StatusOK, gin.H{
		"mode":        mode,
		"watchlist":   s.Meta.Watchlist,
		"sizing":      s.Meta.Sizing,
		"version":     s.Meta.Version,
		"started_at":  s.Meta.Started.UTC(),
		"server_time": time.Now().UTC(),
		"positions":   st.Positions,
		"balance":     st.Balance,
		"entering":    st.Entering,
		"risk":        st.Risk,
	})
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondError(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "metrics not available")
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func (s *Server) getOrders(c *gin.Context) {
	if s.DB == nil {
		respondError(c, http.StatusServiceUnavailable, "JOURNAL_UNAVAILABLE", "journal not configured")
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return
	}
	q.normalize()

	orders, err := s.DB.Queries().RecentOrders(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.Header("X-Result-Limit", strconv.Itoa(q.Limit))
	c.JSON(http.StatusOK, orders)
}

func (s *Server) getPositionHistory(c *gin.Context) {
	if s.DB == nil {
		respondError(c, http.StatusServiceUnavailable, "JOURNAL_UNAVAILABLE", "journal not configured")
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return
	}
	q.normalize()

	positions, err := s.DB.Queries().RecentPositions(c.Request.Context(), q.Limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.Header("X-Result-Limit", strconv.Itoa(q.Limit))
	c.JSON(http.StatusOK, positions)
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.log.WithField("addr", addr).Info("status API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
