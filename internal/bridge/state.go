package bridge

import "github.com/amimof/huego"

// Documented ranges for Hue v1 light state fields.
const (
	MinBrightness = 1
	MaxBrightness = 254
	MinColorTemp  = 153
	MaxColorTemp  = 500
	MinHue        = 0
	MaxHue        = 65535
	MinSaturation = 0
	MaxSaturation = 254
)

// State is a partial light state command. Nil fields are not part of the
// update; present numeric fields are clamped to their range before dispatch.
type State struct {
	On  *bool `json:"on,omitempty"`
	Bri *int  `json:"bri,omitempty"`
	Ct  *int  `json:"ct,omitempty"`
	Hue *int  `json:"hue,omitempty"`
	Sat *int  `json:"sat,omitempty"`
}

// Light is a light known to the bridge together with its full current state.
type Light struct {
	ID    int
	Name  string
	State State
}

// clamped converts the partial state into the wire representation, clamping
// every present field. The Hue v1 API always serializes the power flag, so an
// absent On resolves to on: a state command addresses a lit light.
func (s State) clamped() huego.State {
	out := huego.State{On: true}
	if s.On != nil {
		out.On = *s.On
	}
	if s.Bri != nil {
		out.Bri = uint8(clampInt(*s.Bri, MinBrightness, MaxBrightness))
	}
	if s.Ct != nil {
		out.Ct = uint16(clampInt(*s.Ct, MinColorTemp, MaxColorTemp))
	}
	if s.Hue != nil {
		out.Hue = uint16(clampInt(*s.Hue, MinHue, MaxHue))
	}
	if s.Sat != nil {
		out.Sat = uint8(clampInt(*s.Sat, MinSaturation, MaxSaturation))
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Bool returns a pointer to the given bool, for building partial states.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to the given int, for building partial states.
func Int(v int) *int { return &v }
