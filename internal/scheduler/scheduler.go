// Package scheduler drives the circadian automation: a periodic tick that
// rebuilds the daily timeline, tracks the current phase and evaluates
// wake/sleep schedule entries, dispatching light commands through the bridge
// gateway unless an effect is active.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aelgin/circadiand/internal/bridge"
	"github.com/aelgin/circadiand/internal/eventbus"
	"github.com/aelgin/circadiand/internal/kv"
	"github.com/aelgin/circadiand/internal/solar"
	"github.com/aelgin/circadiand/internal/timeline"
)

// Settings keys for persisted scheduler state.
const (
	locationKey  = "scheduler.location"
	schedulesKey = "scheduler.schedules"
)

// DefaultTickInterval is the nominal scheduler period.
const DefaultTickInterval = time.Minute

const dayKeyFormat = "2006-01-02"

// CommandGateway is the bridge surface the scheduler dispatches through.
type CommandGateway interface {
	ApplyToAllLights(ctx context.Context, state bridge.State) error
}

// EffectController lets the scheduler suppress phase application while an
// effect runs and stop effects when a schedule entry fires.
type EffectController interface {
	Active() string
	Stop() error
}

// Scheduler is the top-level periodic coordinator. It stays idle until a
// location is configured; once armed, the location is sticky and only changes
// on explicit reconfiguration.
type Scheduler struct {
	calc     *solar.Calculator
	builder  *timeline.Builder
	gw       CommandGateway
	effects  EffectController
	settings kv.Store
	bus      *eventbus.Bus
	logger   zerolog.Logger

	interval time.Duration
	now      func() time.Time

	mu         sync.RWMutex
	location   *solar.Location
	schedules  []Entry
	fired      map[string]*fireState
	timeline   []timeline.Segment
	phase      solar.Phase
	nextChange time.Time
	havePhase  bool
	force      bool
}

// New creates a scheduler. bus may be nil when nothing subscribes to phase
// change events. Persisted location and schedules are loaded from settings.
func New(
	calc *solar.Calculator,
	builder *timeline.Builder,
	gw CommandGateway,
	effects EffectController,
	settings kv.Store,
	bus *eventbus.Bus,
	interval time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	s := &Scheduler{
		calc:     calc,
		builder:  builder,
		gw:       gw,
		effects:  effects,
		settings: settings,
		bus:      bus,
		logger:   log.With().Str("component", "scheduler").Logger(),
		interval: interval,
		now:      time.Now,
		fired:    make(map[string]*fireState),
	}
	s.loadPersisted()
	return s
}

// loadPersisted restores location and schedule list from the settings store.
func (s *Scheduler) loadPersisted() {
	var loc solar.Location
	if ok, err := s.settings.Get(locationKey, &loc); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load persisted location")
	} else if ok {
		if err := loc.Validate(); err != nil {
			s.logger.Warn().Err(err).Msg("Ignoring persisted location with invalid coordinates")
		} else {
			s.location = &loc
			s.logger.Info().
				Float64("lat", loc.Latitude).
				Float64("lon", loc.Longitude).
				Msg("Restored persisted location")
		}
	}

	var entries []Entry
	if ok, err := s.settings.Get(schedulesKey, &entries); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load persisted schedules")
	} else if ok {
		s.schedules = entries
		s.logger.Info().Int("schedules", len(entries)).Msg("Restored persisted schedules")
	}
}

// Run starts the tick loop: one immediate tick, then one per interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("Circadian scheduler started")

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Circadian scheduler stopping")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass at the current time.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tickAt(ctx, s.now())
}

// tickAt evaluates the timeline, phase and schedule entries for an instant.
// Phase evaluation always happens before schedule evaluation.
func (s *Scheduler) tickAt(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.location == nil {
		s.timeline = nil
		return
	}
	loc := *s.location

	tl, err := s.builder.BuildDailyTimeline(loc, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build daily timeline")
	} else {
		s.timeline = tl
	}

	s.evaluatePhase(ctx, loc, now)
	s.evaluateSchedules(ctx, now)
}

// evaluatePhase advances the recorded phase and applies its target when it
// changed (or a refresh was forced) and no effect is active.
func (s *Scheduler) evaluatePhase(ctx context.Context, loc solar.Location, now time.Time) {
	phase, err := s.calc.CurrentPhase(loc.Latitude, loc.Longitude, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute current phase")
		return
	}

	if s.havePhase && phase == s.phase && !s.force {
		return
	}

	next, err := s.calc.NextPhaseChange(phase, loc.Latitude, loc.Longitude, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to compute next phase change")
		next = time.Time{}
	}

	s.phase = phase
	s.nextChange = next
	s.havePhase = true
	s.force = false

	s.logger.Info().
		Str("phase", string(phase)).
		Time("next_change", next).
		Msg("Circadian phase updated")

	// Dispatch failures are logged and swallowed; phase bookkeeping above is
	// already done and the next tick simply retries nothing.
	if s.effects.Active() == "" {
		target := s.builder.Target(phase)
		state := bridge.State{
			Bri: bridge.Int(target.Brightness),
			Ct:  bridge.Int(target.ColorTemp),
		}
		if err := s.gw.ApplyToAllLights(ctx, state); err != nil {
			if errors.Is(err, bridge.ErrNotConfigured) {
				s.logger.Warn().Msg("No bridge configured, phase command skipped")
			} else {
				s.logger.Error().Err(err).Str("phase", string(phase)).Msg("Failed to apply phase state")
			}
		}
	} else {
		s.logger.Debug().Str("effect", s.effects.Active()).Msg("Effect active, phase state not applied")
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypePhase,
			Data: map[string]interface{}{
				"phase":       string(phase),
				"next_change": next,
			},
		})
	}
}

// evaluateSchedules fires due wake/sleep actions, each at most once per
// calendar day per entry. A malformed time string disables that trigger for
// the day instead of failing the whole pass.
func (s *Scheduler) evaluateSchedules(ctx context.Context, now time.Time) {
	today := now.Format(dayKeyFormat)

	for i := range s.schedules {
		entry := &s.schedules[i]
		if !entry.Enabled || !entry.appliesOn(now) {
			continue
		}

		rs := s.fired[entry.ID]
		if rs == nil {
			rs = &fireState{}
			s.fired[entry.ID] = rs
		}

		if rs.WakeDay != today {
			wakeAt, err := timeOfDayOn(entry.WakeTime, now)
			if err != nil {
				s.logger.Warn().Err(err).Str("schedule", entry.ID).Msg("Skipping entry with malformed wake time")
			} else if !now.Before(wakeAt) {
				if s.fire(ctx, entry, "wake",
					valueOr(entry.WakeBrightness, DefaultWakeBrightness),
					valueOr(entry.WakeColorTemp, DefaultWakeColorTemp)) {
					rs.WakeDay = today
				}
			}
		}

		if rs.SleepDay != today {
			sleepAt, err := timeOfDayOn(entry.SleepTime, now)
			if err != nil {
				s.logger.Warn().Err(err).Str("schedule", entry.ID).Msg("Skipping entry with malformed sleep time")
			} else if !now.Before(sleepAt) {
				if s.fire(ctx, entry, "sleep",
					valueOr(entry.SleepBrightness, DefaultSleepBrightness),
					valueOr(entry.SleepColorTemp, DefaultSleepColorTemp)) {
					rs.SleepDay = today
				}
			}
		}
	}
}

// fire stops any active effect and dispatches the entry's target state.
// Returns true when the firing should be recorded as successful.
func (s *Scheduler) fire(ctx context.Context, entry *Entry, action string, brightness, colorTemp int) bool {
	// Schedules take precedence over unattended effects.
	if s.effects.Active() != "" {
		if err := s.effects.Stop(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to stop effect for schedule firing")
		}
	}

	state := bridge.State{
		On:  bridge.Bool(true),
		Bri: bridge.Int(brightness),
		Ct:  bridge.Int(colorTemp),
	}
	if err := s.gw.ApplyToAllLights(ctx, state); err != nil {
		if errors.Is(err, bridge.ErrNotConfigured) {
			s.logger.Warn().Str("schedule", entry.ID).Str("action", action).
				Msg("No bridge configured, schedule command skipped")
			return false
		}
		s.logger.Error().Err(err).Str("schedule", entry.ID).Str("action", action).
			Msg("Failed to apply schedule state")
		return false
	}

	s.logger.Info().
		Str("schedule", entry.ID).
		Str("name", entry.Name).
		Str("action", action).
		Int("brightness", brightness).
		Int("color_temp", colorTemp).
		Msg("Schedule fired")

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeSchedule,
			Data: map[string]interface{}{
				"schedule_id": entry.ID,
				"name":        entry.Name,
				"action":      action,
			},
		})
	}
	return true
}

// UpdateLocation reconfigures the location, rebuilds the timeline and forces
// phase re-evaluation on the immediate tick. Invalid coordinates are rejected
// and never stored.
func (s *Scheduler) UpdateLocation(ctx context.Context, loc solar.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.location = &loc
	s.force = true
	s.fired = make(map[string]*fireState)
	if err := s.settings.Set(locationKey, loc); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist location")
	}
	s.mu.Unlock()

	s.logger.Info().
		Float64("lat", loc.Latitude).
		Float64("lon", loc.Longitude).
		Msg("Location updated")

	s.Tick(ctx)
	return nil
}

// UpdateSchedules replaces the schedule list wholesale and resets all
// run-state. Entries arriving without an id are assigned one.
func (s *Scheduler) UpdateSchedules(entries []Entry) error {
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedules = entries
	s.fired = make(map[string]*fireState)

	if err := s.settings.Set(schedulesKey, entries); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist schedules")
	}

	s.logger.Info().Int("schedules", len(entries)).Msg("Schedule list replaced")
	return nil
}

// Schedules returns a copy of the schedule list.
func (s *Scheduler) Schedules() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.schedules))
	copy(out, s.schedules)
	return out
}

// PhaseInfo returns the recorded phase and its next change instant. ok is
// false before the first armed tick.
func (s *Scheduler) PhaseInfo() (phase solar.Phase, nextChange time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase, s.nextChange, s.havePhase
}

// Timeline returns a snapshot of the current daily timeline.
func (s *Scheduler) Timeline() []timeline.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]timeline.Segment, len(s.timeline))
	copy(out, s.timeline)
	return out
}

// Location returns the configured location, if any.
func (s *Scheduler) Location() (solar.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.location == nil {
		return solar.Location{}, false
	}
	return *s.location, true
}

func valueOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}
