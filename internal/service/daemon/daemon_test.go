package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/gentle-alert/internal/clock"
	"github.com/oshokin/gentle-alert/internal/config"
	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/repository/rules"
	"github.com/oshokin/gentle-alert/internal/service/events"
	"github.com/oshokin/gentle-alert/internal/service/scheduler"
	"github.com/oshokin/gentle-alert/internal/store"
)

// fakeProcess implements ps.Process.
type fakeProcess struct {
	// pid is the process id.
	pid int
	// executable is the binary name.
	executable string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.executable }

// TestEnsureSingleInstance detects other processes of the same executable only.
func TestEnsureSingleInstance(t *testing.T) {
	t.Parallel()

	self := fakeProcess{pid: os.Getpid(), executable: "alertd"}

	only := func() ([]ps.Process, error) {
		return []ps.Process{self, fakeProcess{pid: 42, executable: "alertctl"}}, nil
	}
	require.NoError(t, ensureSingleInstance(only, "alertd"))

	twice := func() ([]ps.Process, error) {
		return []ps.Process{self, fakeProcess{pid: 43, executable: "alertd"}}, nil
	}
	require.ErrorIs(t, ensureSingleInstance(twice, "alertd"), ErrAlreadyRunning)

	broken := func() ([]ps.Process, error) {
		return nil, errors.New("no /proc")
	}
	require.Error(t, ensureSingleInstance(broken, "alertd"))
}

// countingRepository wraps a repository and counts saves.
type countingRepository struct {
	rules.Repository

	// mu guards saves.
	mu sync.Mutex
	// saves counts Save calls.
	saves int
}

func (r *countingRepository) Save(ctx context.Context, all []*alert.Rule) error {
	r.mu.Lock()
	r.saves++
	r.mu.Unlock()

	return r.Repository.Save(ctx, all)
}

func (r *countingRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.saves
}

// newTestService wires a service with a running scheduler. It must be called
// inside a synctest bubble; the returned cancel stops the loop.
func newTestService(t *testing.T, seed ...*alert.Rule) (*service, *countingRepository, context.CancelFunc) {
	t.Helper()

	var (
		ctx, cancel = context.WithCancel(context.Background())
		ruleStore   = store.New(seed...)
		repo        = &countingRepository{
			Repository: rules.NewFileRepository(afero.NewMemMapFs(), "/config/alerts.yaml"),
		}
		hub   = events.NewHub(events.DefaultBuffer)
		sched = scheduler.New(scheduler.Options{
			Store:        ruleStore,
			Clock:        clock.Real{},
			Notifier:     hub,
			PollInterval: time.Second,
		})
	)

	svc := &service{
		store:         ruleStore,
		repo:          repo,
		scheduler:     sched,
		hub:           hub,
		clock:         clock.Real{},
		defaults:      alert.DefaultAppearance(),
		delayPresets:  config.DefaultDelayPresets(),
		storage:       "file:/config/alerts.yaml",
		startedAt:     time.Now(),
		shutdown:      cancel,
		savedRevision: ruleStore.Revision(),
	}

	go func() {
		_ = sched.Run(ctx)
	}()

	return svc, repo, cancel
}

func stretchRule() *alert.Rule {
	return &alert.Rule{
		Label:    "Stretch",
		Schedule: alert.Daily(alert.NewTimeOfDay(9, 0)),
		Enabled:  true,
	}
}

// TestService_RuleLifecycle creates, edits, toggles and deletes a rule, saving after each change.
func TestService_RuleLifecycle(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		svc, repo, cancel := newTestService(t)
		defer cancel()

		ctx := context.Background()

		created, err := svc.CreateRule(ctx, stretchRule())
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		require.Equal(t, alert.DefaultAppearance(), created.Appearance)
		require.True(t, time.Now().Equal(created.CreatedAt))
		require.Equal(t, 1, repo.count())

		views := svc.ListRules(ctx)
		require.Len(t, views, 1)
		require.NotNil(t, views[0].NextFire)
		require.Equal(t, 9, views[0].NextFire.Hour())

		// Invalid rules never reach the store.
		_, err = svc.CreateRule(ctx, &alert.Rule{Schedule: alert.Monthly(alert.NewTimeOfDay(9, 0), 40)})
		require.ErrorIs(t, err, alert.ErrInvalid)
		require.Equal(t, 1, repo.count())

		created.Label = "Stretch more"
		updated, err := svc.UpdateRule(ctx, created)
		require.NoError(t, err)
		require.Equal(t, "Stretch more", updated.Label)
		require.Equal(t, 2, repo.count())

		disabled, err := svc.SetRuleEnabled(ctx, created.ID, false)
		require.NoError(t, err)
		require.False(t, disabled.Enabled)
		require.Nil(t, svc.ListRules(ctx)[0].NextFire)

		// Setting the same flag again changes nothing and saves nothing.
		_, err = svc.SetRuleEnabled(ctx, created.ID, false)
		require.NoError(t, err)
		require.Equal(t, 3, repo.count())

		saved, err := repo.Load(ctx)
		require.NoError(t, err)
		require.Len(t, saved, 1)
		require.Equal(t, "Stretch more", saved[0].Label)
		require.False(t, saved[0].Enabled)

		require.NoError(t, svc.DeleteRule(ctx, created.ID))
		require.ErrorIs(t, svc.DeleteRule(ctx, created.ID), store.ErrNotFound)

		saved, err = repo.Load(ctx)
		require.NoError(t, err)
		require.Empty(t, saved)

		_, err = svc.GetRule(ctx, created.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

// TestService_DeleteCancelsOverlay stops the live overlay of a deleted rule.
func TestService_DeleteCancelsOverlay(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		svc, _, cancel := newTestService(t)
		defer cancel()

		ctx := context.Background()

		feed, unsubscribe := svc.Subscribe()
		defer unsubscribe()

		created, err := svc.CreateRule(ctx, stretchRule())
		require.NoError(t, err)

		fired, err := svc.TestFire(ctx, created.ID)
		require.NoError(t, err)
		require.True(t, fired)
		require.Len(t, svc.Sessions(ctx), 1)

		ev := <-feed
		require.Equal(t, alert.CauseTest, ev.Cause)

		require.NoError(t, svc.DeleteRule(ctx, created.ID))
		require.Empty(t, svc.Sessions(ctx))

		ev = <-feed
		require.Equal(t, alert.CauseRuleDeleted, ev.Cause)
		require.Equal(t, alert.StateStopped, ev.Session.State)

		status := svc.Status(ctx)
		require.Zero(t, status.Rules)
		require.Zero(t, status.Sessions)
		require.Equal(t, config.DefaultDelayPresets(), status.DelayPresets)
	})
}

// TestService_SyncLoop persists fire times and auto-disabled one-time rules.
func TestService_SyncLoop(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		svc, repo, cancel := newTestService(t)

		ctx, stopSync := context.WithCancel(context.Background())
		syncDone := make(chan error, 1)

		go func() {
			syncDone <- svc.syncLoop(ctx, time.Second)
		}()

		once := &alert.Rule{
			Label:    "Dentist",
			Schedule: alert.OneTime(time.Now().Add(90 * time.Second)),
			Enabled:  true,
		}

		created, err := svc.CreateRule(context.Background(), once)
		require.NoError(t, err)

		time.Sleep(95 * time.Second)
		synctest.Wait()

		saved, err := repo.Load(context.Background())
		require.NoError(t, err)
		require.Len(t, saved, 1)
		require.Equal(t, created.ID, saved[0].ID)
		require.False(t, saved[0].Enabled)
		require.NotNil(t, saved[0].LastFiredAt)

		savesBefore := repo.count()

		// Nothing changed, so stopping does not write again.
		stopSync()
		require.NoError(t, <-syncDone)
		require.Equal(t, savesBefore, repo.count())

		cancel()
	})
}

// TestDisableInvalid turns off hand-edited rules that would otherwise reach the scheduler.
func TestDisableInvalid(t *testing.T) {
	t.Parallel()

	var (
		created = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
		now     = created.Add(48 * time.Hour)
		valid   = alert.NewRule("Stretch", alert.Daily(alert.NewTimeOfDay(9, 0)), alert.DefaultAppearance(), created)
		garish  = alert.NewRule("Garish", alert.Daily(alert.NewTimeOfDay(9, 0)), alert.DefaultAppearance(), created)
		dormant = alert.NewRule("Dormant", alert.Daily(alert.NewTimeOfDay(9, 0)), alert.DefaultAppearance(), created)
	)

	garish.Appearance.Opacity = 5
	dormant.Appearance.HoldSeconds = -10
	dormant.Enabled = false

	ruleStore := store.New(valid, garish, dormant)
	loaded := ruleStore.Revision()

	require.Equal(t, 1, disableInvalid(context.Background(), ruleStore, now))
	require.Greater(t, ruleStore.Revision(), loaded)

	stored, err := ruleStore.Get(garish.ID)
	require.NoError(t, err)
	require.False(t, stored.Enabled)

	stored, err = ruleStore.Get(valid.ID)
	require.NoError(t, err)
	require.True(t, stored.Enabled)

	scan := ruleStore.ListDue(now, nil)
	require.Len(t, scan.Due, 1)
	require.Equal(t, valid.ID, scan.Due[0].Rule.ID)
	require.Empty(t, scan.Failed)
}

// TestService_Shutdown cancels the daemon context.
func TestService_Shutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	svc := &service{shutdown: cancel}

	svc.Shutdown(context.Background())
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

// TestLoadSettings applies command-line overrides over the settings file.
func TestLoadSettings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultConfigFilename)

	settings := config.Default()
	settings.HTTPAddress = config.DefaultHTTPAddress
	require.NoError(t, config.Save(path, settings))

	loaded, err := loadSettings(&Options{ConfigPath: path})
	require.NoError(t, err)
	require.Equal(t, config.DefaultHTTPAddress, loaded.HTTPAddress)
	require.Equal(t, filepath.Join(dir, config.DefaultRulesFilename), loaded.Storage.Path)

	loaded, err = loadSettings(&Options{
		ConfigPath:     path,
		ControlAddress: "127.0.0.1:50000",
		HTTPAddress:    "-",
		StorageDriver:  config.DriverSQLite,
	})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:50000", loaded.ControlAddress)
	require.Empty(t, loaded.HTTPAddress)
	require.Equal(t, config.DriverSQLite, loaded.Storage.Driver)
	require.Equal(t, filepath.Join(dir, config.DefaultDatabaseFilename), loaded.Storage.Path)

	_, err = loadSettings(&Options{ConfigPath: path, StorageDriver: "postgres"})
	require.Error(t, err)
}
