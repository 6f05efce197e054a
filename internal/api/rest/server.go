package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/transaction-risk-core/internal/infrastructure/config"
	"github.com/davidleathers/transaction-risk-core/internal/service/scoring"
)

// Server is the HTTP front of the scoring engine.
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	httpServer *http.Server
}

// NewServer builds the server and its routes.
func NewServer(cfg *config.Config, logger *zap.Logger, engine *scoring.Engine) *Server {
	h := NewHandler(engine, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/score", h.handleScore)
	mux.HandleFunc("PUT /v1/rules", h.handleReloadRules)
	mux.HandleFunc("GET /v1/rules", h.handleGetRules)
	mux.HandleFunc("DELETE /v1/features", h.handleInvalidateFeature)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	return &Server{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      requestLogging(logger, mux),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
}

// Start serves until ctx is cancelled, then drains in-flight requests within
// the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(shutdownCtx)
}

func requestLogging(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}
