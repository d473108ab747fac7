package editor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

func ptr[T any](v T) *T {
	return &v
}

// TestDraft_NewWeeklyRule fills a fresh rule from flags.
func TestDraft_NewWeeklyRule(t *testing.T) {
	t.Parallel()

	rule := &alert.Rule{Enabled: true, Appearance: alert.DefaultAppearance()}

	draft := &Draft{
		Label:     ptr("Stand up"),
		Kind:      ptr("Weekly"),
		Time:      ptr("10:30"),
		Weekdays:  ptr("mon,thu"),
		Text:      ptr("Stretch!"),
		Color:     ptr("#336699"),
		Expansion: ptr(90 * time.Second),
		Hold:      ptr(time.Minute),
		Display:   ptr("all"),
	}

	require.NoError(t, draft.Apply(rule, time.UTC))
	require.Equal(t, "Stand up", rule.Label)
	require.Equal(t, alert.Weekly(alert.NewTimeOfDay(10, 30), time.Monday, time.Thursday), rule.Schedule)
	require.Equal(t, "Stretch!", rule.Appearance.Text)
	require.Equal(t, "#336699", rule.Appearance.Color.String())
	require.InDelta(t, 90.0, rule.Appearance.ExpansionSeconds, 1e-9)
	require.InDelta(t, 60.0, rule.Appearance.HoldSeconds, 1e-9)
	require.Equal(t, alert.DisplayAll, rule.Appearance.Display)
	require.Equal(t, alert.DefaultStartSize, rule.Appearance.StartSize)
	require.True(t, rule.Enabled)
	require.NoError(t, rule.Schedule.Validate())
}

// TestDraft_SwitchKind keeps the time of day between repeating kinds only.
func TestDraft_SwitchKind(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)

	rule := &alert.Rule{Schedule: alert.Weekly(alert.NewTimeOfDay(8, 0), time.Friday)}

	require.NoError(t, (&Draft{Kind: ptr("monthly"), DayOfMonth: ptr(31)}).Apply(rule, loc))
	require.Equal(t, alert.Monthly(alert.NewTimeOfDay(8, 0), 31), rule.Schedule)

	require.NoError(t, (&Draft{Kind: ptr("once"), At: ptr("2026-12-31 23:30")}).Apply(rule, loc))
	require.Equal(t, alert.KindOneTime, rule.Schedule.Kind)
	require.True(t, rule.Schedule.At.Equal(time.Date(2026, time.December, 31, 23, 30, 0, 0, loc)))
	require.Zero(t, rule.Schedule.DayOfMonth)
	require.NoError(t, rule.Schedule.Validate())

	require.NoError(t, (&Draft{Kind: ptr("daily"), Time: ptr("07:15"), StartsOn: ptr("2027-01-10")}).Apply(rule, loc))
	require.Equal(t, alert.KindDaily, rule.Schedule.Kind)
	require.True(t, rule.Schedule.At.IsZero())
	require.True(t, rule.Schedule.StartsOn.Equal(time.Date(2027, time.January, 10, 0, 0, 0, 0, loc)))

	require.NoError(t, (&Draft{StartsOn: ptr("")}).Apply(rule, loc))
	require.True(t, rule.Schedule.StartsOn.IsZero())
}

// TestDraft_LeavesUnsetFields changes only what the draft names.
func TestDraft_LeavesUnsetFields(t *testing.T) {
	t.Parallel()

	rule := &alert.Rule{
		Label:      "Water",
		Schedule:   alert.Daily(alert.NewTimeOfDay(12, 0)),
		Appearance: alert.DefaultAppearance(),
		Enabled:    true,
	}
	want := rule.Clone()

	require.NoError(t, (&Draft{}).Apply(rule, time.UTC))
	require.Equal(t, want, rule)

	require.NoError(t, (&Draft{Enabled: ptr(false), Opacity: ptr(0.8)}).Apply(rule, time.UTC))
	require.False(t, rule.Enabled)
	require.InDelta(t, 0.8, rule.Appearance.Opacity, 1e-9)
	require.Equal(t, want.Schedule, rule.Schedule)
	require.Equal(t, "Water", rule.Label)
}

// TestDraft_Errors rejects values that cannot be parsed.
func TestDraft_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		draft *Draft
		err   error
	}{
		{name: "kind", draft: &Draft{Kind: ptr("hourly")}, err: ErrBadKind},
		{name: "time", draft: &Draft{Time: ptr("noon")}, err: alert.ErrBadTimeOfDay},
		{name: "weekday", draft: &Draft{Weekdays: ptr("mon,funday")}, err: alert.ErrBadWeekday},
		{name: "color", draft: &Draft{Color: ptr("blue")}, err: alert.ErrBadColor},
		{name: "text color", draft: &Draft{TextColor: ptr("#12")}, err: alert.ErrBadColor},
		{name: "display", draft: &Draft{Display: ptr("left")}, err: ErrBadDisplay},
		{name: "hold", draft: &Draft{Hold: ptr(-time.Second)}, err: ErrBadDuration},
		{name: "at", draft: &Draft{At: ptr("tomorrow")}},
		{name: "starts on", draft: &Draft{StartsOn: ptr("10/01/2027")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.draft.Apply(&alert.Rule{}, time.UTC)
			require.Error(t, err)

			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
			}
		})
	}
}
