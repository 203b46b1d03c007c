package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/forecaster-ua/cryptomaxa/internal/config"
	"github.com/forecaster-ua/cryptomaxa/internal/logger"
	"github.com/forecaster-ua/cryptomaxa/internal/query"
	"github.com/forecaster-ua/cryptomaxa/internal/scheduler"
)

type Server struct {
	httpServer *http.Server
	sched      *scheduler.Scheduler
	query      *query.Service
	config     *config.Config
	logger     *logger.Logger
}

func NewServer(sched *scheduler.Scheduler, qs *query.Service, cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		sched:  sched,
		query:  qs,
		config: cfg,
		logger: log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/signals/latest", s.handleLatest)
	mux.HandleFunc("/signals/history", s.handleHistory)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.config.Web.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
