package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/gentle-alert/internal/service/daemon"
	"github.com/oshokin/gentle-alert/internal/version"
)

var (
	// configPath to the settings YAML file.
	configPath string
	// controlAddress overrides the gRPC listen address.
	controlAddress string
	// httpAddress overrides the HTTP listen address.
	httpAddress string
	// storageDriver overrides the rule storage driver.
	storageDriver string
	// storagePath overrides the rule storage location.
	storagePath string
	// logLevel overrides the log level.
	logLevel string

	// rootCmd represents the base command for running the alert daemon.
	rootCmd = &cobra.Command{
		Use:   "alertd",
		Short: "Run the gentle alert scheduler.",
		Long: `Starts the daemon that fires alert rules and drives their overlays.

Rules are loaded from the configured storage (a YAML file or an SQLite database)
and saved back whenever they change. Trays and editors talk to the daemon over
the gRPC control API; renderers can also use the read-only HTTP API and its
server-sent event stream. Pass --http-address=- to turn the HTTP API off.

Settings are read from the configuration file, which is created with defaults
on first start.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return daemon.Run(ctx, &daemon.Options{
				ConfigPath:     configPath,
				ControlAddress: controlAddress,
				HTTPAddress:    httpAddress,
				StorageDriver:  storageDriver,
				StoragePath:    storagePath,
				LogLevel:       logLevel,
			})
		},
	}
)

// Execute runs the alertd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(newAutostartCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "path to configuration file (default: user config directory)")
	rootCmd.Flags().StringVar(&controlAddress, "control-address", "", "gRPC control API listen address")
	rootCmd.Flags().StringVar(&httpAddress, "http-address", "", `HTTP API listen address, "-" disables it`)
	rootCmd.Flags().StringVar(&storageDriver, "storage-driver", "", "rule storage driver: file or sqlite")
	rootCmd.Flags().StringVar(&storagePath, "storage-path", "", "rule storage location")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")
}
