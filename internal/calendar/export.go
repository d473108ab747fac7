package calendar

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/logger"
	"github.com/oshokin/gentle-alert/internal/recurrence"
	"github.com/oshokin/gentle-alert/internal/version"
)

const (
	// ContentType is the MIME type of the exported feed.
	ContentType = "text/calendar; charset=utf-8"

	// floatingLayout renders a date-time without a zone.
	floatingLayout = "20060102T150405"

	// shortMonthDay is the largest day present in every month.
	shortMonthDay = 28
)

// Options tunes the export.
type Options struct {
	// Now stamps every event. Defaults to time.Now.
	Now time.Time
	// Location resolves wall-clock schedules. Defaults to time.Local.
	Location *time.Location
	// IncludeDisabled exports disabled rules too.
	IncludeDisabled bool
}

//nolint:gochecknoglobals // Lookup table.
var weekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Build converts rules into a calendar. Rules whose schedule cannot be
// resolved are logged and left out.
func Build(ctx context.Context, rules []*alert.Rule, opts Options) *ical.Calendar {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	if opts.Location == nil {
		opts.Location = time.Local
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//gentle-alert//"+version.Short()+"//EN")

	for _, rule := range rules {
		if !rule.Enabled && !opts.IncludeDisabled {
			continue
		}

		event, err := buildEvent(rule, opts)
		if err != nil {
			logger.WarnKV(ctx, "Rule left out of calendar", "rule_id", rule.ID, "error", err)

			continue
		}

		cal.Children = append(cal.Children, event.Component)
	}

	return cal
}

// Export writes the calendar of rules to w.
func Export(ctx context.Context, w io.Writer, rules []*alert.Rule, opts Options) error {
	cal := Build(ctx, rules, opts)

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}

	return nil
}

func buildEvent(rule *alert.Rule, opts Options) (*ical.Event, error) {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, rule.ID+"@gentle-alert")
	event.Props.SetDateTime(ical.PropDateTimeStamp, opts.Now.UTC())
	event.Props.SetText(ical.PropSummary, summary(rule))
	event.Props.SetText(ical.PropDescription, rule.Schedule.String())

	if !rule.Enabled {
		event.Props.SetText(ical.PropStatus, "CANCELLED")
	}

	lifetime := rule.Appearance.Lifetime()

	if !rule.Schedule.Repeating() {
		if rule.Schedule.At.IsZero() {
			return nil, fmt.Errorf("one-time rule without instant: %w", recurrence.ErrInvalidSchedule)
		}

		event.Props.SetDateTime(ical.PropDateTimeStart, rule.Schedule.At.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, rule.Schedule.At.Add(lifetime).UTC())

		return event, nil
	}

	// The series starts at the first occurrence after the rule was created.
	first, err := recurrence.Next(rule.Schedule, rule.CreatedAt.In(opts.Location))
	if err != nil {
		return nil, err
	}

	option, err := recurrenceRule(rule.Schedule)
	if err != nil {
		return nil, err
	}

	setFloating(event, ical.PropDateTimeStart, first)
	setFloating(event, ical.PropDateTimeEnd, first.Add(lifetime))
	event.Props.SetRecurrenceRule(option)

	return event, nil
}

// recurrenceRule expresses a repeating schedule as an RRULE.
func recurrenceRule(s alert.Schedule) (*rrule.ROption, error) {
	switch s.Kind {
	case alert.KindDaily:
		return &rrule.ROption{Freq: rrule.DAILY}, nil
	case alert.KindWeekly:
		days := s.Weekdays.Days()
		if len(days) == 0 {
			return nil, fmt.Errorf("weekly schedule without weekdays: %w", recurrence.ErrInvalidSchedule)
		}

		byWeekday := make([]rrule.Weekday, 0, len(days))
		for _, d := range days {
			byWeekday = append(byWeekday, weekdays[d])
		}

		return &rrule.ROption{Freq: rrule.WEEKLY, Byweekday: byWeekday}, nil
	case alert.KindMonthly:
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return nil, fmt.Errorf("day of month %d: %w", s.DayOfMonth, recurrence.ErrInvalidSchedule)
		}

		if s.DayOfMonth <= shortMonthDay {
			return &rrule.ROption{Freq: rrule.MONTHLY, Bymonthday: []int{s.DayOfMonth}}, nil
		}

		// Earliest of the day and the month's last day: clamps to short months.
		return &rrule.ROption{
			Freq:       rrule.MONTHLY,
			Bymonthday: []int{s.DayOfMonth, -1},
			Bysetpos:   []int{1},
		}, nil
	default:
		return nil, fmt.Errorf("kind %q: %w", string(s.Kind), recurrence.ErrInvalidSchedule)
	}
}

// setFloating stores t as local wall-clock time without a zone.
func setFloating(event *ical.Event, name string, t time.Time) {
	prop := ical.NewProp(name)
	prop.SetValueType(ical.ValueDateTime)
	prop.Value = t.Format(floatingLayout)
	event.Props.Set(prop)
}

func summary(rule *alert.Rule) string {
	if text := rule.DisplayText(); text != "" {
		return text
	}

	return "Alert"
}
