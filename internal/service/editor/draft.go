// Package editor turns command-line rule edits into rule changes.
package editor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

// atLayouts are accepted for one-time fire instants, tried in order.
var atLayouts = []string{ //nolint:gochecknoglobals // Read-only parsing table.
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

var (
	// ErrBadKind is returned for an unknown schedule kind.
	ErrBadKind = errors.New("kind must be once, daily, weekly or monthly")
	// ErrBadDisplay is returned for an unknown display mode.
	ErrBadDisplay = errors.New("display must be main or all")
	// ErrBadDuration is returned for a negative phase duration.
	ErrBadDuration = errors.New("duration must not be negative")
)

// Draft holds the fields a user asked to change. Nil fields are left alone.
type Draft struct {
	// Label replaces the rule label.
	Label *string
	// Kind switches the schedule variant.
	Kind *string
	// At is the one-time fire instant.
	At *string
	// Time is the time of day of repeating schedules.
	Time *string
	// Weekdays lists the days of a weekly schedule, e.g. "mon,thu".
	Weekdays *string
	// DayOfMonth is the day of a monthly schedule.
	DayOfMonth *int
	// StartsOn is the first date of a repeating schedule, "" clears it.
	StartsOn *string
	// Text is the overlay text.
	Text *string
	// Color is the overlay color.
	Color *string
	// TextColor is the overlay text color.
	TextColor *string
	// Opacity of the overlay.
	Opacity *float64
	// TextOpacity of the overlay text.
	TextOpacity *float64
	// Expansion is the growth phase length.
	Expansion *time.Duration
	// Hold is the full-coverage phase length.
	Hold *time.Duration
	// StartSize is the initial overlay edge in pixels.
	StartSize *int
	// Display selects the monitors covered.
	Display *string
	// Enabled toggles the rule.
	Enabled *bool
}

// Apply writes the draft into rule. Dates and times without a zone are read
// in loc. The result is not validated; the daemon does that.
func (d *Draft) Apply(rule *alert.Rule, loc *time.Location) error {
	if d.Label != nil {
		rule.Label = *d.Label
	}

	if d.Enabled != nil {
		rule.Enabled = *d.Enabled
	}

	if err := d.applySchedule(&rule.Schedule, loc); err != nil {
		return err
	}

	return d.applyAppearance(&rule.Appearance)
}

func (d *Draft) applySchedule(s *alert.Schedule, loc *time.Location) error {
	if d.Kind != nil {
		kind := alert.ScheduleKind(strings.ToLower(strings.TrimSpace(*d.Kind)))

		switch kind {
		case alert.KindOneTime, alert.KindDaily, alert.KindWeekly, alert.KindMonthly:
		default:
			return fmt.Errorf("%q: %w", *d.Kind, ErrBadKind)
		}

		if kind != s.Kind {
			*s = switchKind(*s, kind)
		}
	}

	if d.At != nil {
		at, err := parseAt(*d.At, loc)
		if err != nil {
			return err
		}

		s.At = at
	}

	if d.Time != nil {
		tod, err := alert.ParseTimeOfDay(*d.Time)
		if err != nil {
			return fmt.Errorf("parse time: %w", err)
		}

		s.Time = tod
	}

	if d.Weekdays != nil {
		days, err := alert.ParseWeekdays(*d.Weekdays)
		if err != nil {
			return fmt.Errorf("parse weekdays: %w", err)
		}

		s.Weekdays = days
	}

	if d.DayOfMonth != nil {
		s.DayOfMonth = *d.DayOfMonth
	}

	if d.StartsOn != nil {
		if *d.StartsOn == "" {
			s.StartsOn = time.Time{}
		} else {
			startsOn, err := time.ParseInLocation(time.DateOnly, *d.StartsOn, loc)
			if err != nil {
				return fmt.Errorf("parse starts-on: %w", err)
			}

			s.StartsOn = startsOn
		}
	}

	return nil
}

// switchKind keeps what the new variant can reuse and drops the rest.
func switchKind(s alert.Schedule, kind alert.ScheduleKind) alert.Schedule {
	next := alert.Schedule{Kind: kind}

	if kind != alert.KindOneTime && s.Kind != alert.KindOneTime {
		next.Time = s.Time
		next.StartsOn = s.StartsOn
	}

	return next
}

func parseAt(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)

	for _, layout := range atLayouts {
		at, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return at, nil
		}
	}

	return time.Time{}, fmt.Errorf("parse at %q: expected YYYY-MM-DD HH:MM", value)
}

func (d *Draft) applyAppearance(a *alert.Appearance) error {
	if d.Text != nil {
		a.Text = *d.Text
	}

	if d.Color != nil {
		c, err := alert.ParseColor(*d.Color)
		if err != nil {
			return fmt.Errorf("parse color: %w", err)
		}

		a.Color = c
	}

	if d.TextColor != nil {
		c, err := alert.ParseColor(*d.TextColor)
		if err != nil {
			return fmt.Errorf("parse text color: %w", err)
		}

		a.TextColor = c
	}

	if d.Opacity != nil {
		a.Opacity = *d.Opacity
	}

	if d.TextOpacity != nil {
		a.TextOpacity = *d.TextOpacity
	}

	if d.Expansion != nil {
		seconds, err := phaseSeconds(*d.Expansion)
		if err != nil {
			return fmt.Errorf("expansion: %w", err)
		}

		a.ExpansionSeconds = seconds
	}

	if d.Hold != nil {
		seconds, err := phaseSeconds(*d.Hold)
		if err != nil {
			return fmt.Errorf("hold: %w", err)
		}

		a.HoldSeconds = seconds
	}

	if d.StartSize != nil {
		a.StartSize = *d.StartSize
	}

	if d.Display != nil {
		display := alert.Display(strings.ToLower(strings.TrimSpace(*d.Display)))
		if display != alert.DisplayMain && display != alert.DisplayAll {
			return fmt.Errorf("%q: %w", *d.Display, ErrBadDisplay)
		}

		a.Display = display
	}

	return nil
}

func phaseSeconds(d time.Duration) (float64, error) {
	if d < 0 {
		return 0, fmt.Errorf("%s: %w", d, ErrBadDuration)
	}

	return d.Seconds(), nil
}
