// Package timeline builds the ordered daily sequence of circadian phase
// segments with their target light state.
package timeline

import (
	"time"

	"github.com/aelgin/circadiand/internal/solar"
)

// Target is the default light state applied while a phase is active.
type Target struct {
	Brightness int `json:"brightness" yaml:"brightness"`
	ColorTemp  int `json:"color_temp" yaml:"color_temp"`
}

// Targets maps each phase to its configured target.
type Targets map[solar.Phase]Target

// DefaultTargets returns the compiled-in per-phase targets.
func DefaultTargets() Targets {
	return Targets{
		solar.PhaseNight: {Brightness: 60, ColorTemp: 450},
		solar.PhaseDawn:  {Brightness: 140, ColorTemp: 350},
		solar.PhaseDay:   {Brightness: 254, ColorTemp: 250},
		solar.PhaseDusk:  {Brightness: 120, ColorTemp: 380},
	}
}

// Segment is one phase interval of the daily timeline. Segments are ordered,
// non-overlapping and clipped to [start of day, end of day).
type Segment struct {
	Phase      solar.Phase `json:"phase"`
	Start      time.Time   `json:"start"`
	End        time.Time   `json:"end"`
	Brightness int         `json:"brightness"`
	ColorTemp  int         `json:"color_temp"`
}

// Builder builds daily timelines from computed sun times.
type Builder struct {
	calc    *solar.Calculator
	targets Targets
}

// NewBuilder creates a builder. Missing phases in targets fall back to the
// compiled-in defaults.
func NewBuilder(calc *solar.Calculator, targets Targets) *Builder {
	merged := DefaultTargets()
	for phase, target := range targets {
		merged[phase] = target
	}
	return &Builder{calc: calc, targets: merged}
}

// Target returns the configured target for a phase.
func (b *Builder) Target(phase solar.Phase) Target {
	return b.targets[phase]
}

// BuildDailyTimeline returns the ordered phase segments for the calendar day
// of reference at the given location.
func (b *Builder) BuildDailyTimeline(loc solar.Location, reference time.Time) ([]Segment, error) {
	times, err := b.calc.SunTimes(loc.Latitude, loc.Longitude, reference)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(reference.Year(), reference.Month(), reference.Day(), 0, 0, 0, 0, reference.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	return b.segments(times, dayStart, dayEnd), nil
}

// segments emits the four candidate phase segments clipped to the day window.
// A segment whose clipped end does not strictly exceed its clipped start is
// dropped; near the poles a whole phase can be empty for the day.
func (b *Builder) segments(st *solar.SunTimes, dayStart, dayEnd time.Time) []Segment {
	candidates := []struct {
		phase      solar.Phase
		start, end time.Time
	}{
		{solar.PhaseNight, dayStart, st.CivilDawn},
		{solar.PhaseDawn, st.CivilDawn, st.Sunrise},
		{solar.PhaseDay, st.Sunrise, st.CivilDusk},
		{solar.PhaseDusk, st.CivilDusk, dayEnd},
	}

	segments := make([]Segment, 0, len(candidates))
	for _, c := range candidates {
		start := clip(c.start, dayStart, dayEnd)
		end := clip(c.end, dayStart, dayEnd)
		if !end.After(start) {
			continue
		}
		target := b.targets[c.phase]
		segments = append(segments, Segment{
			Phase:      c.phase,
			Start:      start,
			End:        end,
			Brightness: target.Brightness,
			ColorTemp:  target.ColorTemp,
		})
	}
	return segments
}

func clip(t, lo, hi time.Time) time.Time {
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}
