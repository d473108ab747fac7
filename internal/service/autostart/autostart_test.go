package autostart

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeEntry records autostart calls.
type fakeEntry struct {
	// enabled is the current registration.
	enabled bool
	// err is returned by Enable and Disable.
	err error
	// calls counts Enable and Disable calls.
	calls int
}

func (f *fakeEntry) IsEnabled() bool { return f.enabled }

func (f *fakeEntry) Enable() error {
	f.calls++
	if f.err != nil {
		return f.err
	}

	f.enabled = true

	return nil
}

func (f *fakeEntry) Disable() error {
	f.calls++
	if f.err != nil {
		return f.err
	}

	f.enabled = false

	return nil
}

// TestNewApp passes an absolute config path to the daemon.
func TestNewApp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	executable := filepath.Join(dir, "alertd")

	app, err := NewApp(Options{Executable: executable})
	require.NoError(t, err)
	require.Equal(t, appName, app.Name)
	require.Equal(t, []string{executable}, app.Exec)

	app, err = NewApp(Options{Executable: executable, ConfigPath: filepath.Join(dir, "gentle-alert.yaml")})
	require.NoError(t, err)
	require.Equal(t, []string{executable, "--config", filepath.Join(dir, "gentle-alert.yaml")}, app.Exec)
}

// TestEnableDisable only touches the entry when its state changes.
func TestEnableDisable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	entry := &fakeEntry{}

	changed, err := Enable(ctx, entry)
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, entry.enabled)

	changed, err = Enable(ctx, entry)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 1, entry.calls)

	changed, err = Disable(ctx, entry)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = Disable(ctx, entry)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 2, entry.calls)

	entry.err = errors.New("read-only home")

	_, err = Enable(ctx, entry)
	require.ErrorIs(t, err, entry.err)
}
