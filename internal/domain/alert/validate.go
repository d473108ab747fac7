package alert

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalid is matched by every ValidationError through errors.Is.
var ErrInvalid = errors.New("invalid alert rule")

// ValidationError describes one offending field of a rule.
type ValidationError struct {
	// Field is the dotted path of the offending field.
	Field string
	// Reason explains the constraint that was violated.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalid.
func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every rule invariant and joins all violations.
func (r *Rule) Validate() error {
	var errs []error

	if r.ID == "" {
		errs = append(errs, invalid("id", "must not be empty"))
	}

	errs = append(errs, r.Schedule.Validate(), r.Appearance.Validate())

	return errors.Join(errs...)
}

// Validate checks that exactly one variant is populated and that it is in range.
func (s Schedule) Validate() error {
	var errs []error

	switch s.Kind {
	case KindOneTime:
		if s.At.IsZero() {
			errs = append(errs, invalid("schedule.at", "is required for a one-time schedule"))
		}

		if s.Time != (TimeOfDay{}) || !s.Weekdays.Empty() || s.DayOfMonth != 0 || !s.StartsOn.IsZero() {
			errs = append(errs, invalid("schedule", "one-time schedule must not carry repeating fields"))
		}
	case KindDaily, KindWeekly, KindMonthly:
		if !s.At.IsZero() {
			errs = append(errs, invalid("schedule.at", "is only allowed for one-time schedules"))
		}

		if !s.Time.Valid() {
			errs = append(errs, invalid("schedule.time", "%s is outside 00:00:00..23:59:59", s.Time))
		}

		errs = append(errs, s.validateVariant())
	default:
		errs = append(errs, invalid("schedule.kind", "unknown kind %q", string(s.Kind)))
	}

	return errors.Join(errs...)
}

func (s Schedule) validateVariant() error {
	var errs []error

	if s.Kind == KindWeekly {
		if s.Weekdays.Empty() {
			errs = append(errs, invalid("schedule.weekdays", "at least one weekday is required"))
		}
	} else if !s.Weekdays.Empty() {
		errs = append(errs, invalid("schedule.weekdays", "is only allowed for weekly schedules"))
	}

	if s.Kind == KindMonthly {
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			errs = append(errs, invalid("schedule.day_of_month", "%d is outside 1..31", s.DayOfMonth))
		}
	} else if s.DayOfMonth != 0 {
		errs = append(errs, invalid("schedule.day_of_month", "is only allowed for monthly schedules"))
	}

	return errors.Join(errs...)
}

// Validate checks numeric ranges of the appearance.
func (a Appearance) Validate() error {
	var errs []error

	errs = append(errs,
		validatePhase("appearance.expansion_seconds", a.ExpansionSeconds),
		validatePhase("appearance.hold_seconds", a.HoldSeconds),
	)

	if !(a.Opacity >= 0 && a.Opacity <= 1) {
		errs = append(errs, invalid("appearance.opacity", "%.2f is outside [0, 1]", a.Opacity))
	}

	if !(a.TextOpacity >= 0 && a.TextOpacity <= 1) {
		errs = append(errs, invalid("appearance.text_opacity", "%.2f is outside [0, 1]", a.TextOpacity))
	}

	if a.StartSize < 1 {
		errs = append(errs, invalid("appearance.start_size", "must be at least 1 pixel"))
	}

	switch a.Display {
	case DisplayMain, DisplayAll:
	default:
		errs = append(errs, invalid("appearance.display", "unknown display %q", string(a.Display)))
	}

	return errors.Join(errs...)
}

func validatePhase(field string, value float64) error {
	switch {
	case math.IsNaN(value) || math.IsInf(value, 0):
		return invalid(field, "must be a finite number")
	case value < 0:
		return invalid(field, "must not be negative")
	case value > MaxPhaseSeconds:
		return invalid(field, "%g is longer than %d seconds", value, MaxPhaseSeconds)
	}

	return nil
}
