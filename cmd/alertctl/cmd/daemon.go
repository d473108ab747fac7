package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/gentle-alert/internal/api/grpc/control"
	"github.com/oshokin/gentle-alert/internal/calendar"
	"github.com/oshokin/gentle-alert/internal/config"
	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Describe the running daemon.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				status, err := client.Status(ctx)
				if err != nil {
					return err
				}

				presets := make([]string, 0, len(status.DelayPresets))
				for _, d := range status.DelayPresets {
					presets = append(presets, d.String())
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "version:  %s\n", status.Version)
				_, _ = fmt.Fprintf(out, "started:  %s\n", status.StartedAt.Local().Format(time.DateTime))
				_, _ = fmt.Fprintf(out, "storage:  %s\n", status.Storage)
				_, _ = fmt.Fprintf(out, "rules:    %d\n", status.Rules)
				_, _ = fmt.Fprintf(out, "overlays: %d\n", status.Sessions)
				_, _ = fmt.Fprintf(out, "delays:   %s\n", strings.Join(presets, ", "))

				return nil
			})
		},
	}
}

func newExitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exit",
		Short: "Ask the daemon to save the rules and exit.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				return client.Shutdown(ctx)
			})
		},
	}
}

func newExportCommand() *cobra.Command {
	var (
		output          string
		includeDisabled bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the rules as an iCalendar file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, client *control.Client) error {
				views, err := client.ListRules(ctx)
				if err != nil {
					return err
				}

				rules := make([]*alert.Rule, 0, len(views))
				for _, view := range views {
					rules = append(rules, view.Rule)
				}

				opts := calendar.Options{IncludeDisabled: includeDisabled}

				if output == "" || output == "-" {
					return calendar.Export(ctx, cmd.OutOrStdout(), rules, opts)
				}

				return exportToFile(ctx, output, rules, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write, stdout when empty")
	cmd.Flags().BoolVar(&includeDisabled, "disabled", false, "export disabled rules as cancelled events")

	return cmd
}

func exportToFile(ctx context.Context, path string, rules []*alert.Rule, opts calendar.Options) error {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err = calendar.Export(ctx, file, rules, opts); err != nil {
		_ = file.Close()

		return err
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}
