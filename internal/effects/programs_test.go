package effects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelgin/circadiand/internal/bridge"
)

func mustDefinition(t *testing.T, id string) Definition {
	t.Helper()
	def, ok := DefaultRegistry().Get(id)
	require.True(t, ok, "effect %q not registered", id)
	return def
}

func TestDefaultRegistryContents(t *testing.T) {
	ids := DefaultRegistry().IDs()
	assert.Equal(t, []string{
		"breathing",
		"fireplace",
		"meditation",
		"northern-lights",
		"ocean-waves",
		"party-pulse",
		"rainbow-cycle",
		"sunrise-sim",
	}, ids)
}

func TestSettingsWithDefaults(t *testing.T) {
	defaults := Settings{Speed: 5, Intensity: 70, Duration: time.Minute}

	merged := Settings{}.withDefaults(defaults)
	assert.Equal(t, defaults, merged)

	merged = Settings{Speed: 99, Intensity: -3}.withDefaults(defaults)
	assert.Equal(t, 10, merged.Speed)
	assert.Equal(t, 1, merged.Intensity)
	assert.Equal(t, time.Minute, merged.Duration)

	merged = Settings{Speed: 2, Intensity: 30, Duration: time.Hour}.withDefaults(defaults)
	assert.Equal(t, Settings{Speed: 2, Intensity: 30, Duration: time.Hour}, merged)
}

func TestIntervalForSpeedEndpoints(t *testing.T) {
	slowest := 12 * time.Second
	fastest := 3 * time.Second

	assert.Equal(t, slowest, intervalForSpeed(1, slowest, fastest))
	assert.Equal(t, fastest, intervalForSpeed(10, slowest, fastest))
	assert.Less(t, intervalForSpeed(7, slowest, fastest), intervalForSpeed(3, slowest, fastest))
}

func TestTriangleWaveOscillatesWithinBounds(t *testing.T) {
	def := mustDefinition(t, "breathing")
	prog := def.New(def.DefaultSettings)

	hi := briForIntensity(def.DefaultSettings.Intensity)
	lo := hi / 4

	sawRise, sawFall := false, false
	prev := -1
	for i := 0; i < 3*2*halfCycleSteps; i++ {
		cmd, done := prog.Next()
		require.False(t, done)
		require.NotNil(t, cmd.Bri)
		bri := *cmd.Bri
		assert.GreaterOrEqual(t, bri, lo)
		assert.LessOrEqual(t, bri, hi)
		assert.Equal(t, 320, *cmd.Ct)

		if prev >= 0 {
			if bri > prev {
				sawRise = true
			}
			if bri < prev {
				sawFall = true
			}
		}
		prev = bri
	}
	assert.True(t, sawRise, "wave never rose")
	assert.True(t, sawFall, "wave never fell")
}

func TestRainbowRotatesPaletteInOrder(t *testing.T) {
	def := mustDefinition(t, "rainbow-cycle")
	prog := def.New(def.DefaultSettings)

	wantBri := briForIntensity(def.DefaultSettings.Intensity)
	for round := 0; round < 2; round++ {
		for _, wantHue := range rainbowPalette {
			cmd, done := prog.Next()
			require.False(t, done)
			assert.Equal(t, wantHue, *cmd.Hue)
			assert.Equal(t, wantBri, *cmd.Bri)
			assert.Equal(t, bridge.MaxSaturation, *cmd.Sat)
		}
	}
}

func TestFireplaceStaysInWarmBand(t *testing.T) {
	def := mustDefinition(t, "fireplace")
	prog := def.New(def.DefaultSettings)

	base := briForIntensity(def.DefaultSettings.Intensity)
	flicker := base / 3

	for i := 0; i < 200; i++ {
		cmd, done := prog.Next()
		require.False(t, done)
		assert.GreaterOrEqual(t, *cmd.Bri, base-flicker)
		assert.LessOrEqual(t, *cmd.Bri, base+flicker)
		assert.GreaterOrEqual(t, *cmd.Ct, fireplaceMinCt)
		assert.LessOrEqual(t, *cmd.Ct, fireplaceMaxCt)
	}
}

func TestNorthernLightsPicksFromPalette(t *testing.T) {
	def := mustDefinition(t, "northern-lights")
	prog := def.New(def.DefaultSettings)

	allowed := make(map[int]bool, len(auroraPalette))
	for _, hue := range auroraPalette {
		allowed[hue] = true
	}

	hi := briForIntensity(def.DefaultSettings.Intensity)
	for i := 0; i < 100; i++ {
		cmd, done := prog.Next()
		require.False(t, done)
		assert.True(t, allowed[*cmd.Hue], "hue %d not in palette", *cmd.Hue)
		assert.GreaterOrEqual(t, *cmd.Bri, hi/3)
		assert.LessOrEqual(t, *cmd.Bri, hi)
	}
}

func TestPartyPulseAlternatesBrightness(t *testing.T) {
	def := mustDefinition(t, "party-pulse")
	prog := def.New(def.DefaultSettings)

	lo := briForIntensity(def.DefaultSettings.Intensity) / 5
	for i := 0; i < 20; i++ {
		cmd, done := prog.Next()
		require.False(t, done)
		if i%2 == 0 {
			assert.Equal(t, bridge.MaxBrightness, *cmd.Bri)
		} else {
			assert.Equal(t, lo, *cmd.Bri)
		}
	}
}

func TestOceanWavesBrightnessStaysValid(t *testing.T) {
	def := mustDefinition(t, "ocean-waves")
	prog := def.New(def.DefaultSettings)

	for i := 0; i < 2*wavePeriodSteps; i++ {
		cmd, done := prog.Next()
		require.False(t, done)
		assert.GreaterOrEqual(t, *cmd.Bri, bridge.MinBrightness)
		assert.LessOrEqual(t, *cmd.Bri, bridge.MaxBrightness)
	}
}

func TestSunriseRampCompletes(t *testing.T) {
	def := mustDefinition(t, "sunrise-sim")
	prog := def.New(Settings{Duration: time.Minute})

	assert.Equal(t, time.Minute/sunriseSteps, prog.Interval())

	prevBri := -1
	var last bridge.State
	for i := 0; i < sunriseSteps; i++ {
		cmd, done := prog.Next()
		assert.Equal(t, i == sunriseSteps-1, done, "done at step %d", i)

		// The ramp only moves toward bright and cool.
		assert.GreaterOrEqual(t, *cmd.Bri, prevBri)
		prevBri = *cmd.Bri
		last = cmd
	}

	assert.Equal(t, bridge.MaxBrightness, *last.Bri)
	assert.Equal(t, 250, *last.Ct)
}
