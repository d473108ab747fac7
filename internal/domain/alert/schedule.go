package alert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleKind names the recurrence variant of a schedule.
type ScheduleKind string

const (
	// KindOneTime fires once at an absolute instant.
	KindOneTime ScheduleKind = "once"
	// KindDaily fires every day at a time of day.
	KindDaily ScheduleKind = "daily"
	// KindWeekly fires at a time of day on selected weekdays.
	KindWeekly ScheduleKind = "weekly"
	// KindMonthly fires at a time of day on a day of the month.
	KindMonthly ScheduleKind = "monthly"
)

// ErrBadTimeOfDay is returned when a time of day cannot be parsed.
var ErrBadTimeOfDay = errors.New("time of day must look like HH:MM or HH:MM:SS")

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// NewTimeOfDay is a shorthand for a time of day with zero seconds.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("%q: %w", s, ErrBadTimeOfDay)
	}

	values := make([]int, 3)

	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return TimeOfDay{}, fmt.Errorf("%q: %w", s, ErrBadTimeOfDay)
		}

		values[i] = v
	}

	tod := TimeOfDay{Hour: values[0], Minute: values[1], Second: values[2]}
	if !tod.Valid() {
		return TimeOfDay{}, fmt.Errorf("%q is out of range: %w", s, ErrBadTimeOfDay)
	}

	return tod, nil
}

// Valid reports whether the time of day lies within 00:00:00..23:59:59.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 &&
		t.Minute >= 0 && t.Minute < 60 &&
		t.Second >= 0 && t.Second < 60
}

// On returns the instant at this time of day on the given date in loc.
func (t TimeOfDay) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, t.Hour, t.Minute, t.Second, 0, loc)
}

// String renders "HH:MM" or "HH:MM:SS" when seconds are set.
func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}

	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// ErrBadWeekday is returned for an unknown weekday abbreviation.
var ErrBadWeekday = errors.New("unknown weekday")

// weekdayNames maps weekday abbreviations (Monday first) to time.Weekday.
//
//nolint:gochecknoglobals // Read-only lookup table.
var weekdayNames = []struct {
	name string
	day  time.Weekday
}{
	{"mon", time.Monday},
	{"tue", time.Tuesday},
	{"wed", time.Wednesday},
	{"thu", time.Thursday},
	{"fri", time.Friday},
	{"sat", time.Saturday},
	{"sun", time.Sunday},
}

// WeekdaySet is a bit set of weekdays indexed by time.Weekday.
type WeekdaySet uint8

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var set WeekdaySet

	for _, d := range days {
		set |= 1 << uint(d)
	}

	return set
}

// ParseWeekdays parses a comma separated list such as "mon,wed,fri".
// Full English names are accepted too.
func ParseWeekdays(s string) (WeekdaySet, error) {
	var set WeekdaySet

	for _, field := range strings.Split(s, ",") {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}

		found := false

		for _, wd := range weekdayNames {
			if field == wd.name || field == strings.ToLower(wd.day.String()) {
				set |= 1 << uint(wd.day)
				found = true

				break
			}
		}

		if !found {
			return 0, fmt.Errorf("%q: %w", field, ErrBadWeekday)
		}
	}

	return set, nil
}

// Has reports whether d is selected.
func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Empty reports whether no day is selected.
func (s WeekdaySet) Empty() bool {
	return s&0x7f == 0
}

// Days lists the selected days, Monday first.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, len(weekdayNames))

	for _, wd := range weekdayNames {
		if s.Has(wd.day) {
			days = append(days, wd.day)
		}
	}

	return days
}

// String renders the set as "mon,wed,fri".
func (s WeekdaySet) String() string {
	names := make([]string, 0, len(weekdayNames))

	for _, wd := range weekdayNames {
		if s.Has(wd.day) {
			names = append(names, wd.name)
		}
	}

	return strings.Join(names, ",")
}

// MarshalText implements encoding.TextMarshaler.
func (s WeekdaySet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *WeekdaySet) UnmarshalText(text []byte) error {
	parsed, err := ParseWeekdays(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// Schedule describes when a rule fires. Exactly one variant is meaningful,
// selected by Kind; fields of other variants must stay zero.
type Schedule struct {
	// Kind selects the variant.
	Kind ScheduleKind `json:"kind" yaml:"kind"`
	// At is the absolute fire instant of a one-time schedule.
	At time.Time `json:"at,omitzero" yaml:"at,omitempty"`
	// Time is the time of day for repeating schedules.
	Time TimeOfDay `json:"time,omitzero" yaml:"time,omitempty"`
	// Weekdays selects the days of a weekly schedule.
	Weekdays WeekdaySet `json:"weekdays,omitempty" yaml:"weekdays,omitempty"`
	// DayOfMonth is the 1..31 day of a monthly schedule, clamped to short months.
	DayOfMonth int `json:"day_of_month,omitempty" yaml:"day_of_month,omitempty"`
	// StartsOn suppresses occurrences of repeating schedules before this date.
	StartsOn time.Time `json:"starts_on,omitzero" yaml:"starts_on,omitempty"`
}

// OneTime returns a schedule firing once at at.
func OneTime(at time.Time) Schedule {
	return Schedule{Kind: KindOneTime, At: at}
}

// Daily returns a schedule firing every day at tod.
func Daily(tod TimeOfDay) Schedule {
	return Schedule{Kind: KindDaily, Time: tod}
}

// Weekly returns a schedule firing at tod on each of days.
func Weekly(tod TimeOfDay, days ...time.Weekday) Schedule {
	return Schedule{Kind: KindWeekly, Time: tod, Weekdays: NewWeekdaySet(days...)}
}

// Monthly returns a schedule firing at tod on dayOfMonth.
func Monthly(tod TimeOfDay, dayOfMonth int) Schedule {
	return Schedule{Kind: KindMonthly, Time: tod, DayOfMonth: dayOfMonth}
}

// Repeating reports whether the schedule produces more than one occurrence.
func (s Schedule) Repeating() bool {
	return s.Kind != KindOneTime
}

// Equal reports whether both schedules describe the same occurrences.
func (s Schedule) Equal(other Schedule) bool {
	return s.Kind == other.Kind &&
		s.At.Equal(other.At) &&
		s.Time == other.Time &&
		s.Weekdays == other.Weekdays &&
		s.DayOfMonth == other.DayOfMonth &&
		s.StartsOn.Equal(other.StartsOn)
}

// String renders a short human description, e.g. "weekly mon,fri at 09:00".
func (s Schedule) String() string {
	switch s.Kind {
	case KindOneTime:
		return "once at " + s.At.Format(time.DateTime)
	case KindDaily:
		return "daily at " + s.Time.String()
	case KindWeekly:
		return fmt.Sprintf("weekly %s at %s", s.Weekdays, s.Time)
	case KindMonthly:
		return fmt.Sprintf("monthly on day %d at %s", s.DayOfMonth, s.Time)
	default:
		return fmt.Sprintf("unknown schedule %q", string(s.Kind))
	}
}
