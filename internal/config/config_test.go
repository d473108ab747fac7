package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

// TestValidate checks defaults and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty settings get defaults.
	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultControlAddress, cfg.ControlAddress)
	require.Equal(t, DefaultPollInterval, cfg.PollInterval)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DriverFile, cfg.Storage.Driver)
	require.Equal(t, DefaultRulesFilename, cfg.Storage.Path)
	require.Equal(t, alert.DefaultAppearance(), cfg.Defaults)
	require.Equal(t, DefaultDelayPresets(), cfg.DelayPresets)

	// SQLite gets its own default path.
	cfg = &Config{Storage: Storage{Driver: DriverSQLite}}
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultDatabaseFilename, cfg.Storage.Path)

	bad := []*Config{
		{ControlAddress: "bad:address"},
		{HTTPAddress: "nowhere:port"},
		{Storage: Storage{Driver: "postgres"}},
		{LogLevel: "loud"},
		{DelayPresets: []time.Duration{time.Minute, -time.Minute}},
		{Defaults: alert.Appearance{Opacity: 3, StartSize: 1, Display: alert.DisplayMain}},
	}

	for _, c := range bad {
		require.Error(t, Validate(c))
	}

	require.Error(t, Validate(nil))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := Default()
	settings.HTTPAddress = DefaultHTTPAddress
	settings.PollInterval = 500 * time.Millisecond
	settings.Storage = Storage{Driver: DriverSQLite, Path: "rules.db"}
	settings.Defaults.Text = "Time to stretch"
	settings.DelayPresets = []time.Duration{5 * time.Minute, time.Hour}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())

	require.Error(t, Save(path, nil))
}

// TestLoadOrCreate writes defaults for a missing file and reads them back afterwards.
func TestLoadOrCreate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", DefaultConfigFilename)

	created, err := LoadOrCreate(path)
	require.NoError(t, err)
	require.Equal(t, Default(), created)

	_, err = os.Stat(path)
	require.NoError(t, err)

	loaded, err := LoadOrCreate(path)
	require.NoError(t, err)
	require.Equal(t, created, loaded)
}

// TestLoad_Errors reports missing and malformed files.
func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("control_address: ["), DefaultFilePermissions))

	_, err = Load(broken)
	require.Error(t, err)
}

// TestResolvePath anchors relative storage paths next to the settings file.
func TestResolvePath(t *testing.T) {
	t.Parallel()

	abs := filepath.Join(t.TempDir(), "alerts.db")

	require.Equal(t, abs, ResolvePath("/etc/gentle-alert.yaml", abs))
	require.Equal(t, filepath.Join("/etc", "alerts.yaml"), ResolvePath("/etc/gentle-alert.yaml", "alerts.yaml"))
	require.Empty(t, ResolvePath("/etc/gentle-alert.yaml", ""))
}
