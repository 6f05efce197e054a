package rule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_NilIsAlwaysActive(t *testing.T) {
	var s *Schedule
	assert.True(t, s.Active(time.Now()))
}

func TestSchedule_HourRange(t *testing.T) {
	s := &Schedule{Location: time.UTC, StartHour: 9, EndHour: 17}

	day := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC) // a Monday

	assert.False(t, s.Active(day.Add(8*time.Hour)))
	assert.True(t, s.Active(day.Add(9*time.Hour)))
	assert.True(t, s.Active(day.Add(16*time.Hour)))
	assert.False(t, s.Active(day.Add(17*time.Hour)), "end hour is exclusive")
}

func TestSchedule_WrapsPastMidnight(t *testing.T) {
	s := &Schedule{Location: time.UTC, StartHour: 22, EndHour: 6}

	day := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)

	assert.True(t, s.Active(day.Add(23*time.Hour)))
	assert.True(t, s.Active(day.Add(2*time.Hour)))
	assert.False(t, s.Active(day.Add(6*time.Hour)))
	assert.False(t, s.Active(day.Add(12*time.Hour)))
}

func TestSchedule_EqualHoursCoverWholeDay(t *testing.T) {
	s := &Schedule{Location: time.UTC, StartHour: 0, EndHour: 0}

	for h := 0; h < 24; h++ {
		at := time.Date(2026, 3, 16, h, 30, 0, 0, time.UTC)
		assert.True(t, s.Active(at), "hour %d", h)
	}
}

func TestSchedule_DayFilter(t *testing.T) {
	s := &Schedule{
		Location: time.UTC,
		Days: map[time.Weekday]struct{}{
			time.Saturday: {},
			time.Sunday:   {},
		},
	}

	saturday := time.Date(2026, 3, 21, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)

	assert.True(t, s.Active(saturday))
	assert.False(t, s.Active(monday))
}

func TestSchedule_EvaluatesInScheduleTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s := &Schedule{Location: ny, StartHour: 23, EndHour: 6}

	// 03:30 UTC on 2026-03-16 is 23:30 the previous evening in New York.
	at := time.Date(2026, 3, 16, 3, 30, 0, 0, time.UTC)
	assert.True(t, s.Active(at))

	// 15:00 UTC is 11:00 in New York, outside the overnight window.
	assert.False(t, s.Active(time.Date(2026, 3, 16, 15, 0, 0, 0, time.UTC)))
}
