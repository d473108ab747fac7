package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/gentle-alert/internal/api/grpc/control"
	"github.com/oshokin/gentle-alert/internal/config"
	"github.com/oshokin/gentle-alert/internal/logger"
	"github.com/oshokin/gentle-alert/internal/version"
)

var (
	// configPath to the settings YAML file shared with the daemon.
	configPath string
	// controlAddress overrides the daemon address from the settings.
	controlAddress string
	// timeout overrides the per-call timeout from the settings.
	timeout time.Duration
	// logLevel of diagnostics written to stderr.
	logLevel string

	// errUnknownLogLevel is returned for a --log-level zap does not know.
	errUnknownLogLevel = errors.New("unknown log level")

	// rootCmd represents the base command for talking to the alert daemon.
	rootCmd = &cobra.Command{
		Use:   "alertctl",
		Short: "Control the gentle alert daemon.",
		Long: `Edits alert rules and controls live overlays of a running alertd.

Rule commands (list, add, edit, rm, enable, disable, test) change the rule set;
tray commands (sessions, stop, delay, watch) act on overlays already on screen.
The daemon address is read from the shared configuration file unless
--address is given.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(cmd.ErrOrStderr(), logLevel)
		},
	}
)

// Execute runs the alertctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	rootCmd.AddCommand(
		newListCommand(),
		newAddCommand(),
		newEditCommand(),
		newRemoveCommand(),
		newEnableCommand(true),
		newEnableCommand(false),
		newTestCommand(),
		newSessionsCommand(),
		newStopCommand(),
		newDelayCommand(),
		newWatchCommand(),
		newExportCommand(),
		newStatusCommand(),
		newExitCommand(),
	)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "path to configuration file (default: user config directory)")
	rootCmd.PersistentFlags().StringVarP(&controlAddress, "address", "a", "", "daemon control address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout of every daemon call")
	rootCmd.PersistentFlags().
		StringVarP(&logLevel, "log-level", "l", "warn", "log level: debug, info, warn or error")
}

// setupLogging sends diagnostics to w, keeping stdout for command results.
func setupLogging(w io.Writer, level string) error {
	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, level)
	}

	logger.SetLogger(logger.NewWithWriter(w, nil))
	logger.SetLevel(parsed)

	return nil
}

// loadSettings reads the shared settings, falling back to the defaults when
// the daemon never created them.
func loadSettings() (*config.Config, error) {
	settings, err := config.Load(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return settings, nil
}

// connect dials the daemon described by the settings and the flags.
func connect(ctx context.Context) (*control.Client, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	address := controlAddress
	if address == "" {
		address = settings.ControlAddress
	}

	callTimeout := timeout
	if callTimeout <= 0 {
		callTimeout = settings.Timeout
	}

	logger.Debugf(ctx, "Dialing daemon at %s with a %s call timeout", address, callTimeout)

	return control.Dial(ctx, address, control.WithCallTimeout(callTimeout))
}

// withClient runs fn with a connected client and closes it afterwards.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, client *control.Client) error) error {
	ctx := cmd.Context()

	client, err := connect(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	return fn(ctx, client)
}
