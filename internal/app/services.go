package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/aelgin/circadiand/internal/bridge"
	"github.com/aelgin/circadiand/internal/config"
	"github.com/aelgin/circadiand/internal/db"
	"github.com/aelgin/circadiand/internal/effects"
	"github.com/aelgin/circadiand/internal/eventbus"
	"github.com/aelgin/circadiand/internal/kv"
	"github.com/aelgin/circadiand/internal/notify"
	"github.com/aelgin/circadiand/internal/scheduler"
	"github.com/aelgin/circadiand/internal/solar"
	"github.com/aelgin/circadiand/internal/timeline"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB       *db.DB
	Settings *kv.SQLiteStore
	Bus      *eventbus.Bus

	// Engine components
	Calculator *solar.Calculator
	Builder    *timeline.Builder
	Gateway    *bridge.Gateway
	Effects    *effects.Engine
	Scheduler  *scheduler.Scheduler

	// Supporting services
	Health   *HealthService
	Notifier *notify.Notifier
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database and settings store
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database
	s.Settings = kv.NewSQLiteStore(database.DB)

	// Event bus for phase/effect/schedule change notifications
	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	// Solar calculator and timeline builder
	s.Calculator = solar.NewCalculator()
	s.Builder = timeline.NewBuilder(s.Calculator, cfg.Phases.Targets())

	// Bridge gateway; a nil controller means no bridge is paired yet and the
	// engine treats every dispatch as a no-op.
	var ctrl bridge.Controller
	if cfg.Bridge.IsConfigured() {
		ctrl = bridge.NewHueController(cfg.Bridge.Host, cfg.Bridge.User)
	} else {
		log.Warn().Msg("No Hue bridge configured, light commands will be skipped")
	}
	s.Gateway = bridge.NewGateway(ctrl, cfg.Engine.RateLimitRPS)

	// Effect engine and circadian scheduler
	s.Effects = effects.NewEngine(s.Gateway, effects.DefaultRegistry(), s.Settings, s.Bus)
	s.Scheduler = scheduler.New(
		s.Calculator,
		s.Builder,
		s.Gateway,
		s.Effects,
		s.Settings,
		s.Bus,
		cfg.Engine.TickInterval.Duration(),
	)

	// Seed location from config when none was persisted
	if _, ok := s.Scheduler.Location(); !ok && cfg.Geo.IsSet() {
		seed := solar.Location{Latitude: *cfg.Geo.Lat, Longitude: *cfg.Geo.Lon}
		if err := s.Scheduler.UpdateLocation(context.Background(), seed); err != nil {
			log.Warn().Err(err).Msg("Ignoring invalid seed location from config")
		}
	}

	// Health service
	s.Health = NewHealthService(cfg.Healthcheck, cfg.ShutdownTimeout.Duration())

	// Optional MQTT notifier
	if cfg.MQTT.Enabled {
		notifier, err := notify.New(cfg.MQTT)
		if err != nil {
			s.Close()
			return nil, err
		}
		notifier.Attach(s.Bus)
		s.Notifier = notifier
	}

	return s, nil
}

// Start starts all background services.
func (s *Services) Start(ctx context.Context) error {
	go func() {
		if err := s.Scheduler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler error")
		}
	}()

	s.Health.Start(ctx)

	return nil
}

// ClearState clears all persisted settings.
func (s *Services) ClearState() error {
	return s.Settings.Clear()
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	// Stop any running effect so lights return to their captured state.
	if err := s.Effects.Stop(); err != nil {
		log.Warn().Err(err).Msg("Failed to stop active effect during shutdown")
	}
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Notifier != nil {
		s.Notifier.Close()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
