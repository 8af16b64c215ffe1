package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppliesOn(t *testing.T) {
	saturday := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	sunday := saturday.AddDate(0, 0, 1)

	everyday := Entry{}
	assert.True(t, everyday.appliesOn(saturday))
	assert.True(t, everyday.appliesOn(sunday))

	weekend := Entry{Days: []int{int(time.Saturday), int(time.Sunday)}}
	assert.True(t, weekend.appliesOn(saturday))
	assert.True(t, weekend.appliesOn(sunday))
	assert.False(t, weekend.appliesOn(saturday.AddDate(0, 0, 2)))
}

func TestTimeOfDayOn(t *testing.T) {
	ref := time.Date(2024, 6, 15, 18, 45, 12, 0, time.UTC)

	at, err := timeOfDayOn("07:30", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 15, 7, 30, 0, 0, time.UTC), at)

	_, err = timeOfDayOn("7am", ref)
	assert.Error(t, err)

	_, err = timeOfDayOn("25:00", ref)
	assert.Error(t, err)
}
