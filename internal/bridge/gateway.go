// Package bridge dispatches clamped light state commands to the Hue bridge,
// preferring a single group broadcast with a transparent per-light fallback.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned when no bridge has been paired. Callers treat
// it as "do nothing", not as a fatal condition.
var ErrNotConfigured = errors.New("hue bridge is not configured")

// AllLightsGroup is the reserved Hue group addressing every light.
const AllLightsGroup = 0

// Controller is the narrow surface of the Hue bridge the gateway needs.
type Controller interface {
	Lights(ctx context.Context) ([]Light, error)
	GroupLightIDs(ctx context.Context, groupID int) ([]int, error)
	SetLight(ctx context.Context, id int, state huego.State) error
	SetGroup(ctx context.Context, id int, state huego.State) error
}

// Gateway clamps and rate-limits state commands before handing them to the
// bridge controller. A nil controller means no bridge is configured.
type Gateway struct {
	ctrl    Controller
	limiter *rate.Limiter
}

// NewGateway creates a gateway. rps bounds dispatches per second; zero or
// negative disables rate limiting. ctrl may be nil when no bridge is paired.
func NewGateway(ctrl Controller, rps float64) *Gateway {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Gateway{
		ctrl:    ctrl,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Configured reports whether a bridge controller is attached.
func (g *Gateway) Configured() bool {
	return g.ctrl != nil
}

// AllLights returns every light known to the bridge with its current state.
func (g *Gateway) AllLights(ctx context.Context) ([]Light, error) {
	if g.ctrl == nil {
		return nil, ErrNotConfigured
	}
	return g.ctrl.Lights(ctx)
}

// GroupLightIDs returns the light ids belonging to a group.
func (g *Gateway) GroupLightIDs(ctx context.Context, groupID int) ([]int, error) {
	if g.ctrl == nil {
		return nil, ErrNotConfigured
	}
	return g.ctrl.GroupLightIDs(ctx, groupID)
}

// ApplyToAllLights dispatches a clamped state to every light, preferring the
// reserved all-lights group broadcast.
func (g *Gateway) ApplyToAllLights(ctx context.Context, state State) error {
	return g.ApplyToGroup(ctx, AllLightsGroup, state)
}

// ApplyToGroup dispatches a clamped state to a group. If the broadcast call
// fails, the gateway falls back to one command per group member; the fallback
// only surfaces an error when every individual call also fails.
func (g *Gateway) ApplyToGroup(ctx context.Context, groupID int, state State) error {
	if g.ctrl == nil {
		return ErrNotConfigured
	}

	clamped := state.clamped()

	if err := g.wait(ctx); err != nil {
		return err
	}
	err := g.ctrl.SetGroup(ctx, groupID, clamped)
	if err == nil {
		return nil
	}

	log.Warn().Err(err).Int("group", groupID).Msg("Group broadcast failed, falling back to per-light commands")

	ids, idsErr := g.ctrl.GroupLightIDs(ctx, groupID)
	if idsErr != nil {
		return fmt.Errorf("group broadcast failed and light enumeration failed: %w", idsErr)
	}
	if len(ids) == 0 {
		return fmt.Errorf("group broadcast failed: %w", err)
	}

	var lastErr error
	succeeded := 0
	for _, id := range ids {
		if err := g.wait(ctx); err != nil {
			return err
		}
		if err := g.ctrl.SetLight(ctx, id, clamped); err != nil {
			log.Warn().Err(err).Int("light", id).Msg("Per-light fallback command failed")
			lastErr = err
			continue
		}
		succeeded++
	}
	if succeeded == 0 {
		return fmt.Errorf("all per-light fallback commands failed: %w", lastErr)
	}
	return nil
}

// SetLightState dispatches a clamped state to a single light, no fallback.
func (g *Gateway) SetLightState(ctx context.Context, lightID int, state State) error {
	if g.ctrl == nil {
		return ErrNotConfigured
	}
	if err := g.wait(ctx); err != nil {
		return err
	}
	return g.ctrl.SetLight(ctx, lightID, state.clamped())
}

func (g *Gateway) wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
