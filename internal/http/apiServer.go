package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"palaver/internal/api"
	"palaver/internal/metrics"
	"palaver/internal/storage"
	"palaver/internal/ws"
)

type APIServer struct {
	server *http.Server
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func NewAPIServer(hub *ws.Hub, store *storage.BboltStorage, addr string, logger zerolog.Logger) *APIServer {
	server := ws.NewServer(hub, logger)

	var subs api.SubscriptionStore
	if store != nil {
		subs = store
	}
	apiHandlers := api.New(hub, subs, logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/rooms", apiHandlers.RoomsHandler)
	mux.HandleFunc("GET /api/presence", apiHandlers.PresenceHandler)
	mux.HandleFunc("POST /api/push/subscribe", apiHandlers.SubscribeHandler)
	mux.HandleFunc("GET /healthz", apiHandlers.HealthHandler)

	// WebSocket endpoint
	mux.HandleFunc("/api/chat", server.HandleConnections)

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger,
	}
}

func (s *APIServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server started")
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}

// MetricsServer exposes Prometheus metrics on its own listener.
type MetricsServer struct {
	server *http.Server
	logger zerolog.Logger
}

func NewMetricsServer(addr string, logger zerolog.Logger) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger,
	}
}

func (s *MetricsServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("metrics server started")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
