package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oshokin/gentle-alert/internal/api/grpc/control"
	"github.com/oshokin/gentle-alert/internal/api/rest"
	"github.com/oshokin/gentle-alert/internal/clock"
	"github.com/oshokin/gentle-alert/internal/config"
	"github.com/oshokin/gentle-alert/internal/logger"
	"github.com/oshokin/gentle-alert/internal/repository/rules"
	"github.com/oshokin/gentle-alert/internal/service/events"
	"github.com/oshokin/gentle-alert/internal/service/scheduler"
	"github.com/oshokin/gentle-alert/internal/store"
)

// shutdownTimeout bounds graceful shutdown steps.
const shutdownTimeout = 5 * time.Second

// Options controls the alertd process.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ControlAddress overrides the gRPC listen address from the settings.
	ControlAddress string
	// HTTPAddress overrides the HTTP listen address; "-" disables the HTTP API.
	HTTPAddress string
	// StorageDriver overrides the storage driver from the settings.
	StorageDriver string
	// StoragePath overrides the storage path from the settings.
	StoragePath string
	// LogLevel overrides the log level from the settings.
	LogLevel string
	// Clock replaces the system clock.
	Clock clock.Clock
	// Fs holds the rules file of the file driver. Defaults to the OS filesystem.
	Fs afero.Fs
	// Processes lists running processes for the single-instance check.
	// Defaults to ps.Processes.
	Processes ProcessLister
}

// disabledAddress turns the HTTP API off from the command line.
const disabledAddress = "-"

// Run starts the daemon and blocks until ctx is canceled, a client requests
// shutdown or a component fails.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alertd")

	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}

	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok {
		logger.SetLevel(level)
	}

	processes := opts.Processes
	if processes == nil {
		processes = ps.Processes
	}

	if err = ensureSingleInstance(processes, currentExecutable()); err != nil {
		return err
	}

	repo, closeRepo, err := openRepository(ctx, settings, opts)
	if err != nil {
		return err
	}

	defer closeRepo()

	loaded, err := repo.Load(ctx)
	if err != nil && !errors.Is(err, rules.ErrNotFound) {
		return fmt.Errorf("load rules: %w", err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	ruleStore := store.New(loaded...)
	// Rules disabled below must reach storage on the first sync.
	loadedRevision := ruleStore.Revision()

	disableInvalid(ctx, ruleStore, clk.Now())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		hub   = events.NewHub(events.DefaultBuffer)
		sched = scheduler.New(scheduler.Options{
			Store:        ruleStore,
			Clock:        clk,
			Notifier:     hub,
			PollInterval: settings.PollInterval,
		})
		svc = &service{
			store:         ruleStore,
			repo:          repo,
			scheduler:     sched,
			hub:           hub,
			clock:         clk,
			defaults:      settings.Defaults,
			delayPresets:  settings.DelayPresets,
			storage:       settings.Storage.Driver + ":" + settings.Storage.Path,
			startedAt:     clk.Now(),
			shutdown:      cancel,
			savedRevision: loadedRevision,
		}
	)

	listener, err := new(net.ListenConfig).Listen(ctx, "tcp", settings.ControlAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ControlAddress, err)
	}

	logger.InfoKV(ctx, "Daemon starting",
		"control_address", settings.ControlAddress,
		"http_address", settings.HTTPAddress,
		"storage", svc.storage,
		"rules", ruleStore.Len(),
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return sched.Run(groupCtx)
	})

	group.Go(func() error {
		return serveControl(groupCtx, listener, svc)
	})

	group.Go(func() error {
		return svc.syncLoop(groupCtx, settings.PollInterval)
	})

	group.Go(func() error {
		// Closing the hub ends open Watch and SSE streams so servers can drain.
		<-groupCtx.Done()
		hub.Close()

		return nil
	})

	if settings.HTTPAddress != "" {
		router := rest.NewRouter(rest.Options{Service: svc, Clock: clk})

		group.Go(func() error {
			return rest.Serve(groupCtx, settings.HTTPAddress, router)
		})
	}

	err = group.Wait()

	logger.Info(ctx, "Daemon stopped")

	return err
}

func loadSettings(opts *Options) (*config.Config, error) {
	settings, err := config.LoadOrCreate(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.ControlAddress != "" {
		settings.ControlAddress = opts.ControlAddress
	}

	switch opts.HTTPAddress {
	case "":
	case disabledAddress:
		settings.HTTPAddress = ""
	default:
		settings.HTTPAddress = opts.HTTPAddress
	}

	if opts.StorageDriver != "" {
		settings.Storage.Driver = opts.StorageDriver
		settings.Storage.Path = ""
	}

	if opts.StoragePath != "" {
		settings.Storage.Path = opts.StoragePath
	}

	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}

	if err = config.Validate(settings); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	settings.Storage.Path = config.ResolvePath(opts.ConfigPath, settings.Storage.Path)

	return settings, nil
}

// openRepository opens the configured rule storage and returns its closer.
func openRepository(ctx context.Context, settings *config.Config, opts *Options) (rules.Repository, func(), error) {
	switch settings.Storage.Driver {
	case config.DriverSQLite:
		repo, err := rules.OpenSQLite(ctx, settings.Storage.Path)
		if err != nil {
			return nil, nil, err
		}

		return repo, func() {
			if closeErr := repo.Close(); closeErr != nil {
				logger.WarnKV(ctx, "Unable to close rules database", "error", closeErr)
			}
		}, nil
	default:
		return rules.NewFileRepository(opts.Fs, settings.Storage.Path), func() {}, nil
	}
}

// serveControl serves the gRPC control API until ctx is canceled.
func serveControl(ctx context.Context, listener net.Listener, svc control.Service) error {
	ctx = logger.WithName(ctx, "control")

	grpcServer := grpc.NewServer()
	control.RegisterControlServer(grpcServer, control.NewServer(svc))

	logger.InfoKV(ctx, "Control API listening", "address", listener.Addr().String())

	// Done channel is closed after the server fully stops.
	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")

		stopped := make(chan struct{})

		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			grpcServer.Stop()
		}
	}()

	if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// disableInvalid turns off stored rules that fail validation, so a hand-edited
// rules file cannot put out-of-range values in front of the scheduler.
func disableInvalid(ctx context.Context, ruleStore *store.Store, now time.Time) int {
	disabled := 0

	for _, rule := range ruleStore.List() {
		validateErr := rule.Validate()
		if validateErr == nil || !rule.Enabled {
			continue
		}

		if _, err := ruleStore.SetEnabled(rule.ID, false, now); err != nil {
			logger.WarnKV(ctx, "Unable to disable invalid rule", "rule_id", rule.ID, "error", err)

			continue
		}

		logger.WarnKV(ctx, "Stored rule is invalid, disabling", "rule_id", rule.ID, "error", validateErr)

		disabled++
	}

	return disabled
}
