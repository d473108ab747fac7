package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

var (
	// ErrNoOccurrence means the schedule will never fire again.
	ErrNoOccurrence = errors.New("no further occurrence")
	// ErrInvalidSchedule means the stored schedule is corrupt.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

const (
	// weeklyScanDays bounds the weekly scan: today plus one full week.
	weeklyScanDays = 7
	// monthlyScanMonths covers the current and the following month.
	monthlyScanMonths = 2
)

// Next returns the first occurrence of s strictly after after, computed in
// after's location. ErrNoOccurrence is returned for a spent one-time schedule.
func Next(s alert.Schedule, after time.Time) (time.Time, error) {
	if s.Kind == alert.KindOneTime {
		if s.At.IsZero() {
			return time.Time{}, fmt.Errorf("one-time schedule without instant: %w", ErrInvalidSchedule)
		}

		if s.At.After(after) {
			return s.At, nil
		}

		return time.Time{}, ErrNoOccurrence
	}

	if !s.Time.Valid() {
		return time.Time{}, fmt.Errorf("time of day %s: %w", s.Time, ErrInvalidSchedule)
	}

	after = notBefore(s.StartsOn, after)

	switch s.Kind {
	case alert.KindDaily:
		return nextDaily(s.Time, after), nil
	case alert.KindWeekly:
		return nextWeekly(s.Time, s.Weekdays, after)
	case alert.KindMonthly:
		return nextMonthly(s.Time, s.DayOfMonth, after)
	default:
		return time.Time{}, fmt.Errorf("kind %q: %w", string(s.Kind), ErrInvalidSchedule)
	}
}

// Upcoming lists up to n consecutive occurrences after after.
func Upcoming(s alert.Schedule, after time.Time, n int) ([]time.Time, error) {
	occurrences := make([]time.Time, 0, n)

	for range n {
		next, err := Next(s, after)
		if errors.Is(err, ErrNoOccurrence) {
			break
		}

		if err != nil {
			return nil, err
		}

		occurrences = append(occurrences, next)
		after = next
	}

	return occurrences, nil
}

// notBefore moves after to the last instant before midnight of startsOn when that is later.
func notBefore(startsOn, after time.Time) time.Time {
	if startsOn.IsZero() {
		return after
	}

	y, m, d := startsOn.Date()

	floor := time.Date(y, m, d, 0, 0, 0, 0, after.Location()).Add(-time.Nanosecond)
	if floor.After(after) {
		return floor
	}

	return after
}

func nextDaily(tod alert.TimeOfDay, after time.Time) time.Time {
	y, m, d := after.Date()

	today := tod.On(y, m, d, after.Location())
	if today.After(after) {
		return today
	}

	return tod.On(y, m, d+1, after.Location())
}

func nextWeekly(tod alert.TimeOfDay, days alert.WeekdaySet, after time.Time) (time.Time, error) {
	if days.Empty() {
		return time.Time{}, fmt.Errorf("weekly schedule without weekdays: %w", ErrInvalidSchedule)
	}

	y, m, d := after.Date()

	for i := 0; i <= weeklyScanDays; i++ {
		candidate := tod.On(y, m, d+i, after.Location())
		if days.Has(candidate.Weekday()) && candidate.After(after) {
			return candidate, nil
		}
	}

	// Unreachable with a non-empty set: the same weekday a week later is always ahead.
	return time.Time{}, fmt.Errorf("weekly scan exhausted: %w", ErrInvalidSchedule)
}

func nextMonthly(tod alert.TimeOfDay, dayOfMonth int, after time.Time) (time.Time, error) {
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return time.Time{}, fmt.Errorf("day of month %d: %w", dayOfMonth, ErrInvalidSchedule)
	}

	y, m, _ := after.Date()

	for i := range monthlyScanMonths {
		first := time.Date(y, m+time.Month(i), 1, 0, 0, 0, 0, after.Location())
		year, month := first.Year(), first.Month()

		candidate := tod.On(year, month, min(dayOfMonth, DaysIn(year, month)), after.Location())
		if candidate.After(after) {
			return candidate, nil
		}
	}

	return time.Time{}, fmt.Errorf("monthly scan exhausted: %w", ErrInvalidSchedule)
}

// DaysIn returns the number of days in month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
