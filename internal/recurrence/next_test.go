package recurrence

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

// TestNext_OneTime returns the instant while it is ahead and nothing afterwards.
func TestNext_OneTime(t *testing.T) {
	t.Parallel()

	fire := at(2026, time.May, 4, 12, 0)
	s := alert.OneTime(fire)

	got, err := Next(s, fire.Add(-time.Second))
	require.NoError(t, err)
	require.Equal(t, fire, got)

	_, err = Next(s, fire)
	require.ErrorIs(t, err, ErrNoOccurrence)

	_, err = Next(s, fire.Add(time.Hour))
	require.ErrorIs(t, err, ErrNoOccurrence)
}

// TestNext_Daily covers today, tomorrow and the strict boundary.
func TestNext_Daily(t *testing.T) {
	t.Parallel()

	s := alert.Daily(alert.NewTimeOfDay(9, 0))

	cases := []struct {
		after time.Time
		want  time.Time
	}{
		{at(2026, time.March, 2, 8, 0), at(2026, time.March, 2, 9, 0)},
		{at(2026, time.March, 2, 9, 0), at(2026, time.March, 3, 9, 0)},
		{at(2026, time.March, 2, 10, 0), at(2026, time.March, 3, 9, 0)},
		{at(2026, time.December, 31, 23, 0), at(2027, time.January, 1, 9, 0)},
	}

	for _, tc := range cases {
		got, err := Next(s, tc.after)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, tc.after)
	}
}

// TestNext_DailyWithinOneDay checks that a daily occurrence always lies in (now, now+24h].
func TestNext_DailyWithinOneDay(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	start := at(2026, time.January, 1, 0, 0)

	for range 2000 {
		now := start.Add(time.Duration(rng.Int64N(int64(365 * 24 * time.Hour))))
		tod := alert.TimeOfDay{Hour: rng.IntN(24), Minute: rng.IntN(60), Second: rng.IntN(60)}

		got, err := Next(alert.Daily(tod), now)
		require.NoError(t, err)
		require.True(t, got.After(now))
		require.False(t, got.After(now.Add(24*time.Hour)))
		require.Equal(t, tod.Hour, got.Hour())
		require.Equal(t, tod.Minute, got.Minute())
	}
}

// TestNext_Weekly returns the earliest selected weekday strictly after now.
func TestNext_Weekly(t *testing.T) {
	t.Parallel()

	// 2026-03-02 is a Monday.
	s := alert.Weekly(alert.NewTimeOfDay(9, 0), time.Monday, time.Thursday)

	cases := []struct {
		after time.Time
		want  time.Time
	}{
		{at(2026, time.March, 2, 8, 0), at(2026, time.March, 2, 9, 0)},
		{at(2026, time.March, 2, 9, 0), at(2026, time.March, 5, 9, 0)},
		{at(2026, time.March, 5, 9, 30), at(2026, time.March, 9, 9, 0)},
		{at(2026, time.March, 7, 12, 0), at(2026, time.March, 9, 9, 0)},
	}

	for _, tc := range cases {
		got, err := Next(s, tc.after)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, tc.after)
	}

	// A single weekday that already passed today resolves a full week later.
	monday := alert.Weekly(alert.NewTimeOfDay(9, 0), time.Monday)

	got, err := Next(monday, at(2026, time.March, 2, 10, 0))
	require.NoError(t, err)
	require.Equal(t, at(2026, time.March, 9, 9, 0), got)
}

// TestNext_WeeklyProperty checks the weekday and the one-week bound over random inputs.
func TestNext_WeeklyProperty(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 4))
	start := at(2026, time.January, 1, 0, 0)

	for range 2000 {
		now := start.Add(time.Duration(rng.Int64N(int64(365 * 24 * time.Hour))))

		days := alert.WeekdaySet(rng.IntN(127) + 1)
		s := alert.Schedule{Kind: alert.KindWeekly, Time: alert.NewTimeOfDay(rng.IntN(24), rng.IntN(60)), Weekdays: days}

		got, err := Next(s, now)
		require.NoError(t, err)
		require.True(t, got.After(now))
		require.True(t, days.Has(got.Weekday()))
		require.False(t, got.After(now.Add(7*24*time.Hour)))

		// No selected day in between was skipped.
		for d := now; d.Before(got); d = d.Add(time.Hour) {
			if days.Has(d.Weekday()) {
				candidate := time.Date(d.Year(), d.Month(), d.Day(), s.Time.Hour, s.Time.Minute, 0, 0, time.UTC)
				require.False(t, candidate.After(now) && candidate.Before(got), "skipped %s", candidate)
			}
		}
	}
}

// TestNext_Monthly covers the same month, the next month and the clamp for short months.
func TestNext_Monthly(t *testing.T) {
	t.Parallel()

	tod := alert.NewTimeOfDay(8, 0)

	cases := []struct {
		name  string
		day   int
		after time.Time
		want  time.Time
	}{
		{"later this month", 15, at(2026, time.March, 2, 0, 0), at(2026, time.March, 15, 8, 0)},
		{"next month", 1, at(2026, time.March, 2, 0, 0), at(2026, time.April, 1, 8, 0)},
		{"thirty-day month clamps", 31, at(2026, time.April, 10, 0, 0), at(2026, time.April, 30, 8, 0)},
		{"february clamps", 31, at(2026, time.February, 1, 0, 0), at(2026, time.February, 28, 8, 0)},
		{"leap february clamps", 30, at(2028, time.February, 1, 0, 0), at(2028, time.February, 29, 8, 0)},
		{"after clamped day", 31, at(2026, time.April, 30, 9, 0), at(2026, time.May, 31, 8, 0)},
		{"into short month", 31, at(2026, time.January, 31, 9, 0), at(2026, time.February, 28, 8, 0)},
		{"year rollover", 5, at(2026, time.December, 6, 0, 0), at(2027, time.January, 5, 8, 0)},
	}

	for _, tc := range cases {
		got, err := Next(alert.Monthly(tod, tc.day), tc.after)
		require.NoError(t, err, tc.name)
		require.Equal(t, tc.want, got, tc.name)
	}
}

// TestNext_StartsOn suppresses occurrences before the start date.
func TestNext_StartsOn(t *testing.T) {
	t.Parallel()

	s := alert.Daily(alert.NewTimeOfDay(0, 0))
	s.StartsOn = at(2026, time.June, 1, 0, 0)

	got, err := Next(s, at(2026, time.March, 2, 12, 0))
	require.NoError(t, err)
	require.Equal(t, at(2026, time.June, 1, 0, 0), got)

	got, err = Next(s, at(2026, time.June, 3, 12, 0))
	require.NoError(t, err)
	require.Equal(t, at(2026, time.June, 4, 0, 0), got)
}

// TestNext_InvalidSchedules reports corrupt data instead of guessing.
func TestNext_InvalidSchedules(t *testing.T) {
	t.Parallel()

	now := at(2026, time.March, 2, 12, 0)

	for name, s := range map[string]alert.Schedule{
		"empty weekdays": {Kind: alert.KindWeekly, Time: alert.NewTimeOfDay(9, 0)},
		"day zero":       alert.Monthly(alert.NewTimeOfDay(9, 0), 0),
		"day 32":         alert.Monthly(alert.NewTimeOfDay(9, 0), 32),
		"bad time":       alert.Daily(alert.TimeOfDay{Hour: 25}),
		"unknown kind":   {Kind: "hourly"},
		"one-time zero":  {Kind: alert.KindOneTime},
	} {
		_, err := Next(s, now)
		require.ErrorIs(t, err, ErrInvalidSchedule, name)
	}
}

// TestUpcoming lists consecutive occurrences and stops at a spent one-time schedule.
func TestUpcoming(t *testing.T) {
	t.Parallel()

	now := at(2026, time.March, 2, 12, 0)

	got, err := Upcoming(alert.Monthly(alert.NewTimeOfDay(8, 0), 31), now, 3)
	require.NoError(t, err)
	require.Equal(t, []time.Time{
		at(2026, time.March, 31, 8, 0),
		at(2026, time.April, 30, 8, 0),
		at(2026, time.May, 31, 8, 0),
	}, got)

	got, err = Upcoming(alert.OneTime(now.Add(time.Hour)), now, 3)
	require.NoError(t, err)
	require.Equal(t, []time.Time{now.Add(time.Hour)}, got)
}

// TestDaysIn handles leap years.
func TestDaysIn(t *testing.T) {
	t.Parallel()

	require.Equal(t, 29, DaysIn(2028, time.February))
	require.Equal(t, 28, DaysIn(2026, time.February))
	require.Equal(t, 30, DaysIn(2026, time.April))
	require.Equal(t, 31, DaysIn(2026, time.December))
}
