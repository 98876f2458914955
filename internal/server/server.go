// Package server is the ingestor's ops HTTP surface: health, readiness,
// Prometheus metrics, last-pass status and a manual pass trigger.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yanboishere/MetaOdds/internal/ingest"
	"github.com/yanboishere/MetaOdds/internal/logging"
	"github.com/yanboishere/MetaOdds/internal/metrics"
	"github.com/yanboishere/MetaOdds/internal/scheduler"
)

const (
	readyTimeout    = 3 * time.Second
	shutdownTimeout = 10 * time.Second
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type PassReporter interface {
	LastResult() (ingest.PassResult, bool)
}

type PassTrigger interface {
	Trigger(ctx context.Context) bool
	State() scheduler.State
}

type Server struct {
	Store     Pinger
	Passes    PassReporter
	Scheduler PassTrigger
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.health)
	engine.GET("/readyz", s.ready)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Metrics.Gatherer(), promhttp.HandlerOpts{})))
	engine.GET("/status", s.status)
	engine.POST("/passes", s.trigger)
	return engine
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ready(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_missing"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_unreachable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) status(c *gin.Context) {
	body := gin.H{"state": scheduler.Idle.String()}
	if s.Scheduler != nil {
		body["state"] = s.Scheduler.State().String()
	}
	if s.Passes != nil {
		if last, ok := s.Passes.LastResult(); ok {
			body["last_pass"] = last
		}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) trigger(c *gin.Context) {
	if s.Scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "scheduler_missing"})
		return
	}
	if !s.Scheduler.Trigger(c.Request.Context()) {
		c.JSON(http.StatusConflict, gin.H{"status": "pass_running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// Run serves addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	logger := logging.OrNop(s.Logger).Named("server")
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("ops server stopped")
	return nil
}
