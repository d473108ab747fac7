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
	"github.com/oshokin/gentle-alert/internal/service/tray"
)

// errTargetRequired is returned when neither a rule id nor --all is given.
var errTargetRequired = errors.New("pass a rule id or --all")

func newSessionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List live overlays.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				sessions, err := client.ListSessions(ctx)
				if err != nil {
					return err
				}

				return printSessions(cmd.OutOrStdout(), sessions, time.Now())
			})
		},
	}
}

func newStopCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "stop [rule-id]",
		Short: "Close an overlay, or every overlay with --all.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errTargetRequired
			}

			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				var (
					result *control.CommandResult
					err    error
				)

				if all {
					result, err = client.StopAll(ctx)
				} else {
					result, err = client.Stop(ctx, args[0])
				}

				if err != nil {
					return err
				}

				return printResult(cmd.OutOrStdout(), result, "nothing to stop")
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "stop every overlay")

	return cmd
}

func newDelayCommand() *cobra.Command {
	var (
		all   bool
		delay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "delay [rule-id]",
		Short: "Hide an overlay for a while; it comes back from the start.",
		Long: `Hides a visible overlay. When the delay elapses the overlay reappears
and grows again from its start size. Without --for the first delay preset
from the settings is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errTargetRequired
			}

			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				d := delay
				if d == 0 {
					status, err := client.Status(ctx)
					if err != nil {
						return err
					}

					if len(status.DelayPresets) > 0 {
						d = status.DelayPresets[0]
					}
				}

				var (
					result *control.CommandResult
					err    error
				)

				if all {
					result, err = client.DelayAll(ctx, d)
				} else {
					result, err = client.Delay(ctx, args[0], d)
				}

				if err != nil {
					return err
				}

				return printResult(cmd.OutOrStdout(), result, "no visible overlay to delay")
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "delay every visible overlay")
	cmd.Flags().DurationVar(&delay, "for", 0, "delay length, e.g. 10m")

	return cmd
}

func newWatchCommand() *cobra.Command {
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show live overlays as progress bars until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				monitor := tray.NewMonitor(cmd.OutOrStdout(), nil)
				defer monitor.Close()

				err := tray.Follow(ctx, client, monitor, refresh)
				if ctx.Err() != nil {
					return nil
				}

				return err
			})
		},
	}

	cmd.Flags().DurationVar(&refresh, "refresh", tray.DefaultRefresh, "bar refresh interval")

	return cmd
}

func printSessions(w io.Writer, sessions []alert.Session, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "RULE\tSTATE\tPROGRESS\tFIRES\tSTARTED\tTEXT")

	for i := range sessions {
		s := &sessions[i]

		state := string(s.State)
		if s.State == alert.StateDelayed {
			state += " until " + s.DelayUntil.Local().Format(time.TimeOnly)
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%.0f%%\t%d\t%s\t%s\n",
			s.RuleID, state, s.Progress(now)*100, s.Fires, s.StartedAt.Local().Format(time.DateTime), s.Text)
	}

	return tw.Flush()
}
