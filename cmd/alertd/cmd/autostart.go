package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/gentle-alert/internal/logger"
	"github.com/oshokin/gentle-alert/internal/service/autostart"
)

func newAutostartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage starting alertd with the user session.",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Start alertd when the user logs in.",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				app, err := autostart.NewApp(autostart.Options{ConfigPath: configPath})
				if err != nil {
					return err
				}

				_, err = autostart.Enable(logger.WithName(c.Context(), "autostart"), app)

				return err
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Stop starting alertd when the user logs in.",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				app, err := autostart.NewApp(autostart.Options{ConfigPath: configPath})
				if err != nil {
					return err
				}

				_, err = autostart.Disable(logger.WithName(c.Context(), "autostart"), app)

				return err
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print whether alertd starts with the user session.",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				app, err := autostart.NewApp(autostart.Options{ConfigPath: configPath})
				if err != nil {
					return err
				}

				state := "disabled"
				if app.IsEnabled() {
					state = "enabled"
				}

				_, _ = fmt.Fprintln(c.OutOrStdout(), "autostart:", state)

				return nil
			},
		},
	)

	return cmd
}
