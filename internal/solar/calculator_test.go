package solar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nycLat = 40.71
	nycLng = -74.00
)

func TestSunTimesReturnsStableSnapshot(t *testing.T) {
	calc := NewCalculator()
	date := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	first, err := calc.SunTimes(nycLat, nycLng, date)
	require.NoError(t, err)

	second, err := calc.SunTimes(nycLat, nycLng, date)
	require.NoError(t, err)

	// Identical rounded key within the validity window: same object.
	assert.Same(t, first, second)

	// A later instant on the same calendar day hits the same key.
	sameDay, err := calc.SunTimes(nycLat, nycLng, date.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Same(t, first, sameDay)
}

func TestSunTimesDistinctKeysDistinctSnapshots(t *testing.T) {
	calc := NewCalculator()
	date := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	base, err := calc.SunTimes(nycLat, nycLng, date)
	require.NoError(t, err)

	nextDay, err := calc.SunTimes(nycLat, nycLng, date.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.NotSame(t, base, nextDay)

	// Beyond the 4-decimal rounding the coordinate is a different key.
	elsewhere, err := calc.SunTimes(nycLat+0.1, nycLng, date)
	require.NoError(t, err)
	assert.NotSame(t, base, elsewhere)
}

func TestSunTimesCacheExpiresAfterTTL(t *testing.T) {
	calc := NewCalculator()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	calc.now = func() time.Time { return now }

	date := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	first, err := calc.SunTimes(nycLat, nycLng, date)
	require.NoError(t, err)

	// Advance past the validity window; the snapshot must be recomputed.
	now = now.Add(DefaultCacheTTL + time.Minute)
	second, err := calc.SunTimes(nycLat, nycLng, date)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first, second)
}

func TestSunTimesRejectsOutOfRangeCoordinates(t *testing.T) {
	calc := NewCalculator()
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		lat   float64
		lng   float64
		field string
		value float64
	}{
		{"latitude_too_high", 90.5, 0, "latitude", 90.5},
		{"latitude_too_low", -91, 0, "latitude", -91},
		{"longitude_too_high", 0, 180.1, "longitude", 180.1},
		{"longitude_too_low", 0, -200, "longitude", -200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.SunTimes(tt.lat, tt.lng, date)
			var rangeErr *CoordinateRangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, tt.field, rangeErr.Field)
			assert.Equal(t, tt.value, rangeErr.Value)
		})
	}
}

func TestLocationValidate(t *testing.T) {
	require.NoError(t, Location{Latitude: 40.71, Longitude: -74}.Validate())
	require.NoError(t, Location{Latitude: -90, Longitude: 180}.Validate())

	var rangeErr *CoordinateRangeError
	err := Location{Latitude: 91, Longitude: 0}.Validate()
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "latitude", rangeErr.Field)
}

func TestPhaseAtBoundaries(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st := &SunTimes{
		CivilDawn: day.Add(6*time.Hour + 30*time.Minute),
		Sunrise:   day.Add(7 * time.Hour),
		Sunset:    day.Add(17 * time.Hour),
		CivilDusk: day.Add(17*time.Hour + 30*time.Minute),
	}

	tests := []struct {
		name string
		at   time.Time
		want Phase
	}{
		{"deep_night", day.Add(5 * time.Hour), PhaseNight},
		{"during_dawn", day.Add(6*time.Hour + 40*time.Minute), PhaseDawn},
		{"midday", day.Add(12 * time.Hour), PhaseDay},
		{"evening", day.Add(19 * time.Hour), PhaseDusk},
		// A boundary instant belongs to the later phase.
		{"at_civil_dawn", st.CivilDawn, PhaseDawn},
		{"at_sunrise", st.Sunrise, PhaseDay},
		{"at_civil_dusk", st.CivilDusk, PhaseDusk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, st.PhaseAt(tt.at))
		})
	}
}

func TestCurrentPhaseMonotonicAcrossDay(t *testing.T) {
	calc := NewCalculator()
	day := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

	order := map[Phase]int{PhaseNight: 0, PhaseDawn: 1, PhaseDay: 2, PhaseDusk: 3}

	last := -1
	for minute := 0; minute < 24*60; minute += 10 {
		now := day.Add(time.Duration(minute) * time.Minute)
		phase, err := calc.CurrentPhase(nycLat, nycLng, now)
		require.NoError(t, err)

		rank := order[phase]
		assert.GreaterOrEqual(t, rank, last, "phase went backwards at %s", now)
		last = rank
	}
}

func TestNextPhaseChangeSameDayBoundaries(t *testing.T) {
	calc := NewCalculator()
	now := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)

	st, err := calc.SunTimes(nycLat, nycLng, now)
	require.NoError(t, err)

	next, err := calc.NextPhaseChange(PhaseNight, nycLat, nycLng, now)
	require.NoError(t, err)
	assert.Equal(t, st.CivilDawn, next)

	next, err = calc.NextPhaseChange(PhaseDawn, nycLat, nycLng, now)
	require.NoError(t, err)
	assert.Equal(t, st.Sunrise, next)

	next, err = calc.NextPhaseChange(PhaseDay, nycLat, nycLng, now)
	require.NoError(t, err)
	assert.Equal(t, st.CivilDusk, next)
}

func TestNextPhaseChangeDuskRollsToNextDay(t *testing.T) {
	calc := NewCalculator()
	now := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)

	tomorrow, err := calc.SunTimes(nycLat, nycLng, now.AddDate(0, 0, 1))
	require.NoError(t, err)

	next, err := calc.NextPhaseChange(PhaseDusk, nycLat, nycLng, now)
	require.NoError(t, err)

	// The naive same-day lookup would return a boundary already in the past.
	assert.Equal(t, tomorrow.CivilDawn, next)
	assert.True(t, next.After(now))
}

func TestNextPhaseChangePropagatesCoordinateError(t *testing.T) {
	calc := NewCalculator()
	_, err := calc.NextPhaseChange(PhaseNight, 120, 0, time.Now())
	var rangeErr *CoordinateRangeError
	require.True(t, errors.As(err, &rangeErr))
}
