package scheduler

import (
	"fmt"
	"time"
)

// Default wake and sleep targets, used when an entry leaves them unset.
const (
	DefaultWakeBrightness  = 220
	DefaultWakeColorTemp   = 260
	DefaultSleepBrightness = 60
	DefaultSleepColorTemp  = 420
)

// Entry is a user-defined wake/sleep schedule. The list is owned by the API
// layer; the scheduler only reads entries and keeps derived run-state.
type Entry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	WakeTime  string `json:"wake_time"`  // "HH:MM"
	SleepTime string `json:"sleep_time"` // "HH:MM"
	Enabled   bool   `json:"enabled"`

	// Days restricts firing to the given weekdays (time.Weekday values,
	// Sunday = 0). Empty means every day.
	Days []int `json:"days,omitempty"`

	WakeBrightness  *int `json:"wake_brightness,omitempty"`
	WakeColorTemp   *int `json:"wake_color_temp,omitempty"`
	SleepBrightness *int `json:"sleep_brightness,omitempty"`
	SleepColorTemp  *int `json:"sleep_color_temp,omitempty"`
}

// appliesOn reports whether the entry's day restriction includes the given day.
func (e *Entry) appliesOn(day time.Time) bool {
	if len(e.Days) == 0 {
		return true
	}
	weekday := int(day.Weekday())
	for _, d := range e.Days {
		if d == weekday {
			return true
		}
	}
	return false
}

// timeOfDayOn combines an "HH:MM" string with the calendar day of ref.
func timeOfDayOn(hhmm string, ref time.Time) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: %w", hhmm, err)
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, ref.Location()), nil
}

// fireState records the calendar day of the last successful wake and sleep
// firing per entry, so each fires at most once per day.
type fireState struct {
	WakeDay  string
	SleepDay string
}
