package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	got, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*3600+30*60, got)

	got, err = ParseClock("23:59:59")
	require.NoError(t, err)
	assert.Equal(t, 86399, got)

	for _, bad := range []string{"", "9:30", "24:00", "10:60", "aa:bb", "10:00:00:00"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidTime, bad)
	}
	assert.Equal(t, "09:30:00", FormatClock(9*3600+30*60))
}

func TestDuration(t *testing.T) {
	d, err := Duration("10:00", "11:30")
	require.NoError(t, err)
	assert.Equal(t, 1.5, d)

	d, err = Duration("10:00:00", "10:45")
	require.NoError(t, err)
	assert.Equal(t, 0.75, d)

	_, err = Duration("11:00", "11:00")
	assert.ErrorIs(t, err, ErrInvalidTime)
	_, err = Duration("12:00", "11:00")
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestCountersOrderByDateTimeID(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	classes := []ClassRecord{
		{ID: 30, ClassDate: day(2), StartTime: "09:00:00"},
		{ID: 10, ClassDate: day(3), StartTime: "08:00:00"},
		{ID: 20, ClassDate: day(2), StartTime: "08:00"},
		{ID: 5, ClassDate: day(2), StartTime: "09:00"},
	}
	got := Counters(classes)
	assert.Equal(t, map[snowflake.ID]int{20: 1, 5: 2, 30: 3, 10: 4}, got)
	assert.EqualValues(t, 30, classes[0].ID, "input is not reordered")
}
