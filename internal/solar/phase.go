package solar

import "time"

// Phase is the discrete circadian phase derived from solar position.
// Phases are ordered by time of day: night -> dawn -> day -> dusk.
type Phase string

const (
	PhaseNight Phase = "night"
	PhaseDawn  Phase = "dawn"
	PhaseDay   Phase = "day"
	PhaseDusk  Phase = "dusk"
)

// PhaseAt returns the phase a given instant falls into.
// A boundary instant belongs to the later phase.
func (st *SunTimes) PhaseAt(now time.Time) Phase {
	switch {
	case now.Before(st.CivilDawn):
		return PhaseNight
	case now.Before(st.Sunrise):
		return PhaseDawn
	case now.Before(st.CivilDusk):
		return PhaseDay
	default:
		return PhaseDusk
	}
}

// boundaryAfter returns the same-day boundary that ends the given phase.
// Dusk has no same-day boundary; it ends at the next day's civil dawn,
// which the calculator handles.
func (st *SunTimes) boundaryAfter(phase Phase) (time.Time, bool) {
	switch phase {
	case PhaseNight:
		return st.CivilDawn, true
	case PhaseDawn:
		return st.Sunrise, true
	case PhaseDay:
		return st.CivilDusk, true
	default:
		return time.Time{}, false
	}
}
