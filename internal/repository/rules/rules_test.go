package rules

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

func sampleRules() []*alert.Rule {
	created := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	fired := time.Date(2026, time.March, 4, 9, 30, 0, 0, time.UTC)

	daily := alert.NewRule("Stretch", alert.Daily(alert.NewTimeOfDay(9, 30)), alert.DefaultAppearance(), created)
	daily.LastFiredAt = &fired

	weeklyAppearance := alert.DefaultAppearance()
	weeklyAppearance.Text = "Stand-up"
	weeklyAppearance.Color = alert.Color{R: 0x20, G: 0x40, B: 0x80}
	weeklyAppearance.Display = alert.DisplayAll
	weekly := alert.NewRule("", alert.Weekly(alert.NewTimeOfDay(10, 0), time.Monday, time.Thursday),
		weeklyAppearance, created.Add(time.Minute))
	armed := time.Date(2026, time.March, 5, 12, 15, 0, 0, time.UTC)
	weekly.ArmedAt = &armed

	monthly := alert.NewRule("Rent", alert.Monthly(alert.NewTimeOfDay(18, 0), 31), alert.DefaultAppearance(),
		created.Add(2*time.Minute))
	monthly.Enabled = false
	monthly.Schedule.StartsOn = time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

	once := alert.NewRule("Dentist", alert.OneTime(time.Date(2026, time.March, 20, 14, 0, 0, 0, time.UTC)),
		alert.DefaultAppearance(), created.Add(3*time.Minute))

	return []*alert.Rule{daily, weekly, monthly, once}
}

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(afero.NewMemMapFs(), "/config/missing.yaml")
	loaded, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, loaded)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns the same rules.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	repo := NewFileRepository(fs, "/config/gentle-alert/alerts.yaml")
	want := sampleRules()

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)

	// The temporary file is renamed away.
	exists, err := afero.Exists(fs, repo.Path()+".tmp")
	require.NoError(t, err)
	require.False(t, exists)

	// Saving an empty set leaves a loadable, empty file.
	require.NoError(t, repo.Save(context.Background(), nil))

	got, err = repo.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

// TestFileRepository_BadContents reports malformed and future files.
func TestFileRepository_BadContents(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	repo := NewFileRepository(fs, "/alerts.yaml")

	require.NoError(t, afero.WriteFile(fs, "/alerts.yaml", []byte("rules: {"), 0o600))

	_, err := repo.Load(context.Background())
	require.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/alerts.yaml", []byte("version: 99\nrules: []\n"), 0o600))

	_, err = repo.Load(context.Background())
	require.ErrorIs(t, err, ErrUnsupportedVersion)

	require.NoError(t, afero.WriteFile(fs, "/alerts.yaml", []byte("version: 1\nrules:\n  - id: x\n    schedule:\n      kind: daily\n      time: \"25:00\"\n"), 0o600))

	_, err = repo.Load(context.Background())
	require.Error(t, err)
}

// TestSQLiteRepository_SaveLoad_Roundtrip migrates a fresh database and round-trips the rules.
func TestSQLiteRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alerts.db")

	repo, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, loaded)

	want := sampleRules()
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)

	// Saving replaces the set instead of appending to it.
	require.NoError(t, repo.Save(ctx, want[:1]))

	got, err = repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want[:1], got)

	require.NoError(t, repo.Close())

	// Reopening runs no migrations and keeps the data.
	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, reopened.Close())
	})

	got, err = reopened.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want[:1], got)
}

// TestRepository_Interface keeps both implementations interchangeable.
func TestRepository_Interface(t *testing.T) {
	t.Parallel()

	var (
		_ Repository = (*FileRepository)(nil)
		_ Repository = (*SQLiteRepository)(nil)
	)
}
