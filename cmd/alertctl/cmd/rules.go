package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/gentle-alert/internal/api/grpc/control"
	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/service/editor"
)

// errKindRequired is returned by add without --kind.
var errKindRequired = errors.New("--kind is required")

// draftFlags binds rule fields to command flags.
type draftFlags struct {
	label       string
	kind        string
	at          string
	timeOfDay   string
	weekdays    string
	dayOfMonth  int
	startsOn    string
	text        string
	color       string
	textColor   string
	opacity     float64
	textOpacity float64
	expansion   time.Duration
	hold        time.Duration
	startSize   int
	display     string
}

func (f *draftFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringVar(&f.label, "label", "", "rule label")
	flags.StringVar(&f.kind, "kind", "", "schedule kind: once, daily, weekly or monthly")
	flags.StringVar(&f.at, "at", "", `fire instant of a one-time rule, "YYYY-MM-DD HH:MM"`)
	flags.StringVar(&f.timeOfDay, "time", "", "time of day of a repeating rule, HH:MM")
	flags.StringVar(&f.weekdays, "weekdays", "", `days of a weekly rule, e.g. "mon,thu"`)
	flags.IntVar(&f.dayOfMonth, "day", 0, "day of a monthly rule, 1..31")
	flags.StringVar(&f.startsOn, "starts-on", "", "first date of a repeating rule, YYYY-MM-DD")
	flags.StringVar(&f.text, "text", "", "overlay text")
	flags.StringVar(&f.color, "color", "", "overlay color, #RRGGBB")
	flags.StringVar(&f.textColor, "text-color", "", "overlay text color, #RRGGBB")
	flags.Float64Var(&f.opacity, "opacity", 0, "overlay opacity, 0..1")
	flags.Float64Var(&f.textOpacity, "text-opacity", 0, "overlay text opacity, 0..1")
	flags.DurationVar(&f.expansion, "expansion", 0, "time to grow to full coverage")
	flags.DurationVar(&f.hold, "hold", 0, "time to hold full coverage before dismissal")
	flags.IntVar(&f.startSize, "start-size", 0, "initial overlay edge in pixels")
	flags.StringVar(&f.display, "display", "", "monitors covered: main or all")
}

// draft keeps only the flags given on the command line.
func (f *draftFlags) draft(cmd *cobra.Command) *editor.Draft {
	var (
		flags = cmd.Flags()
		d     = new(editor.Draft)
	)

	setIf(flags.Changed("label"), &d.Label, f.label)
	setIf(flags.Changed("kind"), &d.Kind, f.kind)
	setIf(flags.Changed("at"), &d.At, f.at)
	setIf(flags.Changed("time"), &d.Time, f.timeOfDay)
	setIf(flags.Changed("weekdays"), &d.Weekdays, f.weekdays)
	setIf(flags.Changed("day"), &d.DayOfMonth, f.dayOfMonth)
	setIf(flags.Changed("starts-on"), &d.StartsOn, f.startsOn)
	setIf(flags.Changed("text"), &d.Text, f.text)
	setIf(flags.Changed("color"), &d.Color, f.color)
	setIf(flags.Changed("text-color"), &d.TextColor, f.textColor)
	setIf(flags.Changed("opacity"), &d.Opacity, f.opacity)
	setIf(flags.Changed("text-opacity"), &d.TextOpacity, f.textOpacity)
	setIf(flags.Changed("expansion"), &d.Expansion, f.expansion)
	setIf(flags.Changed("hold"), &d.Hold, f.hold)
	setIf(flags.Changed("start-size"), &d.StartSize, f.startSize)
	setIf(flags.Changed("display"), &d.Display, f.display)

	return d
}

func setIf[T any](changed bool, field **T, value T) {
	if changed {
		*field = &value
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List alert rules with their next occurrence.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				views, err := client.ListRules(ctx)
				if err != nil {
					return err
				}

				return printRules(cmd.OutOrStdout(), views)
			})
		},
	}
}

func newAddCommand() *cobra.Command {
	var (
		flags    draftFlags
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an alert rule.",
		Example: `  alertctl add --kind daily --time 09:00 --text "Stand up"
  alertctl add --kind weekly --weekdays mon,thu --time 17:30 --label "Timesheet"
  alertctl add --kind once --at "2026-12-31 23:30" --expansion 5m --hold 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("kind") {
				return errKindRequired
			}

			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				status, err := client.Status(ctx)
				if err != nil {
					return err
				}

				rule := &alert.Rule{Appearance: status.Defaults, Enabled: !disabled}
				if err = flags.draft(cmd).Apply(rule, time.Local); err != nil {
					return err
				}

				created, err := client.CreateRule(ctx, rule)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintln(cmd.OutOrStdout(), created.ID)

				return nil
			})
		},
	}

	flags.bind(cmd)
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the rule disabled")

	return cmd
}

func newEditCommand() *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "edit <rule-id>",
		Short: "Change fields of an alert rule. A live overlay keeps its appearance.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				rule, err := client.GetRule(ctx, args[0])
				if err != nil {
					return err
				}

				if err = flags.draft(cmd).Apply(rule, time.Local); err != nil {
					return err
				}

				updated, err := client.UpdateRule(ctx, rule)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", updated.ID, updated.Schedule)

				return nil
			})
		},
	}

	flags.bind(cmd)

	return cmd
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <rule-id>...",
		Aliases: []string{"delete"},
		Short:   "Delete alert rules and close their overlays.",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				for _, id := range args {
					if err := client.DeleteRule(ctx, id); err != nil {
						return err
					}
				}

				return nil
			})
		},
	}
}

func newEnableCommand(enabled bool) *cobra.Command {
	use, short := "enable", "Enable alert rules."
	if !enabled {
		use, short = "disable", "Disable alert rules. Live overlays stay until stopped."
	}

	return &cobra.Command{
		Use:   use + " <rule-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				for _, id := range args {
					if _, err := client.SetRuleEnabled(ctx, id, enabled); err != nil {
						return err
					}
				}

				return nil
			})
		},
	}
}

func newTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test <rule-id>",
		Short: "Show the overlay of a rule right away, without recording a fire.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				result, err := client.TestFire(ctx, args[0])
				if err != nil {
					return err
				}

				return printResult(cmd.OutOrStdout(), result, "overlay of this rule is already active")
			})
		},
	}
}

func printRules(w io.Writer, views []control.RuleView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "ID\tENABLED\tSCHEDULE\tNEXT\tLABEL")

	for _, view := range views {
		next := "-"
		if view.NextFire != nil {
			next = view.NextFire.Local().Format(time.DateTime)
		}

		_, _ = fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n",
			view.ID, view.Enabled, view.Schedule, next, view.DisplayText())
	}

	return tw.Flush()
}

func printResult(w io.Writer, result *control.CommandResult, notApplied string) error {
	if !result.Applied {
		_, err := fmt.Fprintln(w, notApplied)

		return err
	}

	_, err := fmt.Fprintf(w, "%d overlay(s) affected\n", result.Affected)

	return err
}
