package effects

import (
	"math"
	"math/rand"
	"time"

	"github.com/aelgin/circadiand/internal/bridge"
)

// builtins returns the definitions of all built-in effects.
func builtins() []Definition {
	return []Definition{
		{
			ID:              "breathing",
			Name:            "Breathing",
			DefaultSettings: Settings{Speed: 5, Intensity: 70},
			New: func(s Settings) Program {
				return newTriangleWave(s, 12*time.Second, 3*time.Second, 320, 1.0)
			},
		},
		{
			ID:              "meditation",
			Name:            "Meditation",
			DefaultSettings: Settings{Speed: 3, Intensity: 50},
			New: func(s Settings) Program {
				return newTriangleWave(s, 20*time.Second, 6*time.Second, 420, 0.66)
			},
		},
		{
			ID:              "rainbow-cycle",
			Name:            "Rainbow cycle",
			DefaultSettings: Settings{Speed: 5, Intensity: 80},
			New:             newRainbow,
		},
		{
			ID:              "fireplace",
			Name:            "Fireplace",
			DefaultSettings: Settings{Speed: 7, Intensity: 60},
			New:             newFireplace,
		},
		{
			ID:              "ocean-waves",
			Name:            "Ocean waves",
			DefaultSettings: Settings{Speed: 4, Intensity: 70},
			New:             newOceanWaves,
		},
		{
			ID:              "northern-lights",
			Name:            "Northern lights",
			DefaultSettings: Settings{Speed: 3, Intensity: 60},
			New:             newNorthernLights,
		},
		{
			ID:              "party-pulse",
			Name:            "Party pulse",
			DefaultSettings: Settings{Speed: 8, Intensity: 100},
			New:             newPartyPulse,
		},
		{
			ID:              "sunrise-sim",
			Name:            "Sunrise simulation",
			DefaultDuration: 30 * time.Minute,
			DefaultSettings: Settings{Speed: 5, Intensity: 100, Duration: 30 * time.Minute},
			New:             newSunriseSim,
		},
	}
}

// briForIntensity scales intensity 1..100 into the brightness range.
func briForIntensity(intensity int) int {
	bri := intensity * bridge.MaxBrightness / 100
	if bri < bridge.MinBrightness {
		bri = bridge.MinBrightness
	}
	return bri
}

// intervalForSpeed maps speed 1..10 onto [fastest, slowest], linearly.
func intervalForSpeed(speed int, slowest, fastest time.Duration) time.Duration {
	span := slowest - fastest
	return slowest - span*time.Duration(speed-1)/9
}

// triangleWave oscillates brightness between a low and high bound at a fixed
// warm color temperature. Used by breathing and meditation.
type triangleWave struct {
	interval time.Duration
	lo, hi   int
	ct       int

	level int
	dir   int
	step  int
}

// halfCycleSteps is the number of ticks from one brightness bound to the other.
const halfCycleSteps = 16

func newTriangleWave(s Settings, slowest, fastest time.Duration, ct int, scale float64) Program {
	hi := int(float64(briForIntensity(s.Intensity)) * scale)
	if hi < bridge.MinBrightness {
		hi = bridge.MinBrightness
	}
	lo := hi / 4
	if lo < 10 {
		lo = 10
	}
	if lo >= hi {
		lo = hi - 1
	}
	step := (hi - lo) / halfCycleSteps
	if step < 1 {
		step = 1
	}
	return &triangleWave{
		interval: intervalForSpeed(s.Speed, slowest, fastest) / halfCycleSteps,
		lo:       lo,
		hi:       hi,
		ct:       ct,
		level:    lo,
		dir:      1,
		step:     step,
	}
}

func (p *triangleWave) Interval() time.Duration { return p.interval }

func (p *triangleWave) Next() (bridge.State, bool) {
	cmd := bridge.State{On: bridge.Bool(true), Bri: bridge.Int(p.level), Ct: bridge.Int(p.ct)}

	p.level += p.dir * p.step
	if p.level >= p.hi {
		p.level = p.hi
		p.dir = -1
	} else if p.level <= p.lo {
		p.level = p.lo
		p.dir = 1
	}
	return cmd, false
}

// rainbow rotates through an ordered hue list at constant brightness.
type rainbow struct {
	interval time.Duration
	bri      int
	palette  []int
	idx      int
}

var rainbowPalette = []int{0, 9362, 18724, 28086, 37448, 46810, 56172}

func newRainbow(s Settings) Program {
	return &rainbow{
		interval: intervalForSpeed(s.Speed, 5*time.Second, 1*time.Second),
		bri:      briForIntensity(s.Intensity),
		palette:  rainbowPalette,
	}
}

func (p *rainbow) Interval() time.Duration { return p.interval }

func (p *rainbow) Next() (bridge.State, bool) {
	hue := p.palette[p.idx%len(p.palette)]
	p.idx++
	return bridge.State{
		On:  bridge.Bool(true),
		Bri: bridge.Int(p.bri),
		Hue: bridge.Int(hue),
		Sat: bridge.Int(bridge.MaxSaturation),
	}, false
}

// fireplace flickers brightness randomly around a base level with warm
// color temperature jitter.
type fireplace struct {
	interval time.Duration
	base     int
	flicker  int
	rng      *rand.Rand
}

// Warm color temperature band for a believable flame.
const (
	fireplaceMinCt = 400
	fireplaceMaxCt = 500
)

func newFireplace(s Settings) Program {
	base := briForIntensity(s.Intensity)
	if base < 40 {
		base = 40
	}
	return &fireplace{
		interval: intervalForSpeed(s.Speed, 1200*time.Millisecond, 250*time.Millisecond),
		base:     base,
		flicker:  base / 3,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *fireplace) Interval() time.Duration { return p.interval }

func (p *fireplace) Next() (bridge.State, bool) {
	bri := p.base - p.flicker + p.rng.Intn(2*p.flicker+1)
	ct := fireplaceMinCt + p.rng.Intn(fireplaceMaxCt-fireplaceMinCt+1)
	return bridge.State{On: bridge.Bool(true), Bri: bridge.Int(bri), Ct: bridge.Int(ct)}, false
}

// oceanWaves follows a sinusoidal brightness wave while advancing through a
// short cool palette.
type oceanWaves struct {
	interval time.Duration
	mid, amp int
	palette  []int
	step     int
}

var oceanPalette = []int{43690, 40000, 46920, 38000}

// wavePeriodSteps is the number of ticks per full brightness wave.
const wavePeriodSteps = 32

func newOceanWaves(s Settings) Program {
	hi := briForIntensity(s.Intensity)
	return &oceanWaves{
		interval: intervalForSpeed(s.Speed, 2*time.Second, 400*time.Millisecond),
		mid:      hi * 3 / 5,
		amp:      hi * 2 / 5,
		palette:  oceanPalette,
	}
}

func (p *oceanWaves) Interval() time.Duration { return p.interval }

func (p *oceanWaves) Next() (bridge.State, bool) {
	angle := 2 * math.Pi * float64(p.step%wavePeriodSteps) / wavePeriodSteps
	bri := p.mid + int(float64(p.amp)*math.Sin(angle))
	if bri < bridge.MinBrightness {
		bri = bridge.MinBrightness
	}
	hue := p.palette[(p.step/(wavePeriodSteps/len(p.palette)))%len(p.palette)]
	p.step++
	return bridge.State{
		On:  bridge.Bool(true),
		Bri: bridge.Int(bri),
		Hue: bridge.Int(hue),
		Sat: bridge.Int(200),
	}, false
}

// northernLights picks a random palette color and a random brightness within
// a band each tick - irregular on purpose.
type northernLights struct {
	interval time.Duration
	loBri    int
	hiBri    int
	palette  []int
	rng      *rand.Rand
}

var auroraPalette = []int{25500, 30000, 46920, 50000, 56100}

func newNorthernLights(s Settings) Program {
	hi := briForIntensity(s.Intensity)
	lo := hi / 3
	if lo < bridge.MinBrightness {
		lo = bridge.MinBrightness
	}
	return &northernLights{
		interval: intervalForSpeed(s.Speed, 6*time.Second, 1500*time.Millisecond),
		loBri:    lo,
		hiBri:    hi,
		palette:  auroraPalette,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *northernLights) Interval() time.Duration { return p.interval }

func (p *northernLights) Next() (bridge.State, bool) {
	hue := p.palette[p.rng.Intn(len(p.palette))]
	bri := p.loBri + p.rng.Intn(p.hiBri-p.loBri+1)
	return bridge.State{
		On:  bridge.Bool(true),
		Bri: bridge.Int(bri),
		Hue: bridge.Int(hue),
		Sat: bridge.Int(230),
	}, false
}

// partyPulse alternates full and low brightness in lock-step with a color
// rotation at a fast cadence.
type partyPulse struct {
	interval time.Duration
	lo       int
	palette  []int
	step     int
}

func newPartyPulse(s Settings) Program {
	return &partyPulse{
		interval: intervalForSpeed(s.Speed, 600*time.Millisecond, 150*time.Millisecond),
		lo:       briForIntensity(s.Intensity) / 5,
		palette:  rainbowPalette,
	}
}

func (p *partyPulse) Interval() time.Duration { return p.interval }

func (p *partyPulse) Next() (bridge.State, bool) {
	bri := bridge.MaxBrightness
	if p.step%2 == 1 {
		bri = p.lo
	}
	hue := p.palette[p.step%len(p.palette)]
	p.step++
	return bridge.State{
		On:  bridge.Bool(true),
		Bri: bridge.Int(bri),
		Hue: bridge.Int(hue),
		Sat: bridge.Int(bridge.MaxSaturation),
	}, false
}

// sunriseSim is a one-way ramp from near-dark warm light to full cool-white
// over the configured total duration. It reports done on the final step so
// the engine stops it (and restores nothing louder than the captured state).
type sunriseSim struct {
	interval time.Duration
	steps    int
	step     int
}

// sunriseSteps fixes the ramp resolution; the tick interval stretches with
// the configured duration.
const sunriseSteps = 60

func newSunriseSim(s Settings) Program {
	duration := s.Duration
	if duration <= 0 {
		duration = 30 * time.Minute
	}
	return &sunriseSim{
		interval: duration / sunriseSteps,
		steps:    sunriseSteps,
	}
}

func (p *sunriseSim) Interval() time.Duration { return p.interval }

func (p *sunriseSim) Next() (bridge.State, bool) {
	frac := float64(p.step) / float64(p.steps-1)
	bri := bridge.MinBrightness + int(frac*float64(bridge.MaxBrightness-bridge.MinBrightness))
	ct := bridge.MaxColorTemp - int(frac*float64(bridge.MaxColorTemp-250))
	p.step++
	done := p.step >= p.steps
	return bridge.State{On: bridge.Bool(true), Bri: bridge.Int(bri), Ct: bridge.Int(ct)}, done
}
