package effects

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aelgin/circadiand/internal/bridge"
	"github.com/aelgin/circadiand/internal/eventbus"
	"github.com/aelgin/circadiand/internal/kv"
)

// activeEffectKey is the settings key holding the active-effect marker.
const activeEffectKey = "effects.active"

// restoreTimeout bounds how long a stop waits for prior-state replay.
const restoreTimeout = 15 * time.Second

// CommandGateway is the bridge surface the engine drives.
type CommandGateway interface {
	AllLights(ctx context.Context) ([]bridge.Light, error)
	ApplyToAllLights(ctx context.Context, state bridge.State) error
	SetLightState(ctx context.Context, lightID int, state bridge.State) error
}

// Engine runs at most one animated effect at a time. Starting an effect
// captures every light's state exactly once before the first command;
// stopping cancels all timers first and then replays the capture per light.
type Engine struct {
	mu       sync.Mutex
	gw       CommandGateway
	registry *Registry
	settings kv.Store
	bus      *eventbus.Bus
	logger   zerolog.Logger

	active    string
	prior     map[int]bridge.State
	cancel    context.CancelFunc
	stopTimer *time.Timer

	// gen identifies the current run. Duration timers and completed ramps
	// carry the generation they were started under, so a stale stop request
	// from a finished run cannot tear down its successor.
	gen uint64

	// inFlight guards the periodic dispatch: while a command is pending the
	// next tick is skipped entirely, never queued. Cleared unconditionally
	// after the dispatch settles so a failed command cannot lock ticks out.
	inFlight atomic.Bool
}

// NewEngine creates an effect engine. bus may be nil when no subscriber cares
// about effect-changed events.
func NewEngine(gw CommandGateway, registry *Registry, settings kv.Store, bus *eventbus.Bus) *Engine {
	return &Engine{
		gw:       gw,
		registry: registry,
		settings: settings,
		bus:      bus,
		logger:   log.With().Str("component", "effects").Logger(),
	}
}

// Active returns the running effect id, or "" when idle.
func (e *Engine) Active() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Start activates an effect, stopping and restoring any previous one first.
// An unpaired bridge is treated as "do nothing": the engine logs and stays
// idle rather than surfacing an error to the caller.
func (e *Engine) Start(ctx context.Context, effectID string, settings Settings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	def, ok := e.registry.Get(effectID)
	if !ok {
		return &UnknownEffectError{ID: effectID}
	}

	if e.active != "" {
		e.stopLocked()
	}

	// Capture prior state before any effect command goes out; the capture is
	// the only restoration mechanism.
	lights, err := e.gw.AllLights(ctx)
	if err != nil {
		if errors.Is(err, bridge.ErrNotConfigured) {
			e.logger.Warn().Str("effect", effectID).Msg("No bridge configured, effect not started")
			return nil
		}
		return err
	}
	prior := make(map[int]bridge.State, len(lights))
	for _, light := range lights {
		prior[light.ID] = light.State
	}

	merged := settings.withDefaults(def.DefaultSettings)
	program := def.New(merged)

	// Effects outlive the Start call; their run context belongs to the engine.
	runCtx, cancel := context.WithCancel(context.Background())

	// Immediate first command, then the periodic generator takes over.
	if cmd, done := program.Next(); !done {
		if err := e.gw.ApplyToAllLights(runCtx, cmd); err != nil {
			e.logger.Warn().Err(err).Str("effect", effectID).Msg("Initial effect command failed")
		}
	}

	e.active = effectID
	e.prior = prior
	e.cancel = cancel
	e.gen++
	gen := e.gen

	duration := merged.Duration
	if duration == 0 {
		duration = def.DefaultDuration
	}
	if duration > 0 {
		e.stopTimer = time.AfterFunc(duration, func() {
			e.stopIfCurrent(gen)
		})
	}

	go e.run(runCtx, program, gen)

	if err := e.settings.Set(activeEffectKey, effectID); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist active effect marker")
	}
	e.notify(effectID)

	e.logger.Info().
		Str("effect", effectID).
		Int("lights_captured", len(prior)).
		Dur("duration", duration).
		Msg("Effect started")

	return nil
}

// run drives the periodic generator until the run context is cancelled.
func (e *Engine) run(ctx context.Context, program Program, gen uint64) {
	ticker := time.NewTicker(program.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go e.dispatchTick(ctx, program, gen)
		}
	}
}

// dispatchTick issues one generated command unless the previous dispatch is
// still pending. Returns false when the tick was skipped.
func (e *Engine) dispatchTick(ctx context.Context, program Program, gen uint64) bool {
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Debug().Msg("Previous command still in flight, skipping tick")
		return false
	}
	defer e.inFlight.Store(false)

	cmd, done := program.Next()
	if err := e.gw.ApplyToAllLights(ctx, cmd); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn().Err(err).Msg("Effect command failed")
	}

	if done {
		e.stopIfCurrent(gen)
	}
	return true
}

// stopIfCurrent stops the engine only when the run that requested the stop is
// still the active one. A duration timer or completed ramp may race a Start
// that already replaced the run it belongs to.
func (e *Engine) stopIfCurrent(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		e.logger.Debug().Msg("Ignoring stop request from a superseded effect run")
		return
	}
	e.stopLocked()
}

// Stop deactivates the running effect and restores the captured light states.
// Calling Stop when idle is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	return nil
}

func (e *Engine) stopLocked() {
	if e.active == "" {
		return
	}

	// Cancel timers before restoring so no pending tick can race the replay;
	// cancelling the run context also aborts an in-flight dispatch.
	e.cancel()
	e.cancel = nil
	if e.stopTimer != nil {
		e.stopTimer.Stop()
		e.stopTimer = nil
	}

	stopped := e.active
	e.restorePrior()
	e.prior = nil
	e.active = ""

	if err := e.settings.Delete(activeEffectKey); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to clear active effect marker")
	}
	e.notify("")

	e.logger.Info().Str("effect", stopped).Msg("Effect stopped")
}

// restorePrior replays the captured state one command per light; captured
// states differ per light, so a group broadcast cannot restore them.
func (e *Engine) restorePrior() {
	if len(e.prior) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	for id, state := range e.prior {
		if err := e.gw.SetLightState(ctx, id, state); err != nil {
			e.logger.Warn().Err(err).Int("light", id).Msg("Failed to restore light state")
		}
	}
}

func (e *Engine) notify(effectID string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeEffect,
		Data: map[string]interface{}{"effect": effectID},
	})
}
