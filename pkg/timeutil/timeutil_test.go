package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsConsecutiveDay(t *testing.T) {
	late := time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC)

	assert.True(t, IsConsecutiveDay(late, time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC)))
	assert.False(t, IsConsecutiveDay(late, late.Add(10*time.Minute)))
	assert.False(t, IsConsecutiveDay(late, time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)))
}

func TestIsSameDay_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	// 01:00 at UTC+5 is 20:00 of the previous UTC day.
	local := time.Date(2025, 3, 10, 1, 0, 0, 0, loc)

	assert.True(t, IsSameDay(local, time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), StartOfDay(local))
}

func TestElapsedDays(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.InDelta(t, 7.5, ElapsedDays(now.Add(-180*time.Hour), now), 1e-9)
	assert.Zero(t, ElapsedDays(now.Add(time.Hour), now))
}
