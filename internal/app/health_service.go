package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aelgin/circadiand/internal/config"
)

// HealthService exposes liveness and readiness endpoints for process
// supervisors. Both report statically: the daemon is healthy as long as the
// process runs, and ready once services are wired.
type HealthService struct {
	cfg             config.HealthcheckConfig
	shutdownTimeout time.Duration
	server          *http.Server
}

// NewHealthService creates the health endpoint server.
func NewHealthService(cfg config.HealthcheckConfig, shutdownTimeout time.Duration) *HealthService {
	return &HealthService{cfg: cfg, shutdownTimeout: shutdownTimeout}
}

// Start launches the server when enabled; it shuts down with ctx.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	go s.serve(ctx)
}

func (s *HealthService) serve(ctx context.Context) {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health server shutdown error")
		}
	}()

	log.Info().Str("addr", s.server.Addr).Msg("Health endpoints listening")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health server error")
	}
}

func (s *HealthService) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", statusHandler("healthy"))
	mux.HandleFunc("/ready", statusHandler("ready"))
	return mux
}

func statusHandler(status string) http.HandlerFunc {
	body := []byte(fmt.Sprintf(`{"status":%q}`, status))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}
