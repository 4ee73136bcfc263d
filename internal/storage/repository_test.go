package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "finance.db")
	repo, err := NewSQLiteRepository(path, log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func snapshotAt(id string, at time.Time, readings ...core.Reading) core.SensorSnapshot {
	return core.SensorSnapshot{ID: id, TakenAt: at, Readings: readings}
}

func TestMigrationsApplied(t *testing.T) {
	_, path := newTestRepo(t)

	version, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, RunMigrations(path), "re-running migrations is a no-op")
}

func TestRegisterIntegration(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.RegisterIntegration(ctx, "finance_assistant", "instance-a", "Finance Assistant")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.RegisterIntegration(ctx, "finance_assistant", "instance-b", "Finance Assistant")
	require.NoError(t, err)
	assert.False(t, created, "second instance is already configured")

	id, err := repo.InstanceID(ctx, "finance_assistant")
	require.NoError(t, err)
	assert.Equal(t, "instance-a", id)

	_, err = repo.InstanceID(ctx, "other_domain")
	assert.Error(t, err)
}

func TestSaveSnapshotAndHistory(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	for i, state := range []string{"100.00", "110.50", "unknown"} {
		snap := snapshotAt(
			"snap-"+state,
			base.Add(time.Duration(i)*time.Hour),
			core.ReadingOf("sensor.finance_assistant_summary_analytics_net_worth", state),
			core.ReadingOf("sensor.other", "1"),
		)
		require.NoError(t, repo.SaveSnapshot(ctx, snap))
	}

	points, err := repo.History(ctx, "sensor.finance_assistant_summary_analytics_net_worth", 10)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, "unknown", points[0].State)
	assert.Nil(t, points[0].Numeric)
	assert.Equal(t, "110.50", points[1].State)
	require.NotNil(t, points[1].Numeric)
	assert.InDelta(t, 110.5, *points[1].Numeric, 1e-9)
	assert.True(t, points[2].TakenAt.Equal(base))

	limited, err := repo.History(ctx, "sensor.finance_assistant_summary_analytics_net_worth", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := repo.History(ctx, "sensor.unknown_entity", 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = repo.History(ctx, "sensor.other", 0)
	assert.Error(t, err)
}

func TestSaveSnapshotIsIdempotent(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	snap := snapshotAt("dup", time.Now(), core.ReadingOf("sensor.a", "1"))

	require.NoError(t, repo.SaveSnapshot(ctx, snap))
	require.NoError(t, repo.SaveSnapshot(ctx, snap))

	points, err := repo.History(ctx, "sensor.a", 10)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	assert.Error(t, repo.SaveSnapshot(ctx, core.SensorSnapshot{}))
}

func TestLatestReadings(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.LatestReadings(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshots)

	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordSnapshot(ctx, snapshotAt("new", base.Add(time.Hour), core.ReadingOf("sensor.a", "2"), core.ReadingOf("sensor.b", "3"))))
	require.NoError(t, repo.RecordSnapshot(ctx, snapshotAt("old", base, core.ReadingOf("sensor.a", "1"))))

	latest, err := repo.LatestReadings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)
	require.Len(t, latest.Readings, 2)
	r, ok := latest.Value("sensor.b")
	require.True(t, ok)
	assert.Equal(t, "3", r.State)
}

func TestPruneBefore(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, repo.SaveSnapshot(ctx, snapshotAt(id, base.AddDate(0, 0, i), core.ReadingOf("sensor.a", "1"))))
	}

	removed, err := repo.PruneBefore(ctx, base.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	points, err := repo.History(ctx, "sensor.a", 100)
	require.NoError(t, err)
	assert.Len(t, points, 2)

	removed, err = repo.PruneBefore(ctx, base)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestExports(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	day := core.NewDate(2025, time.March, 10)

	_, err := repo.ExportRef(ctx, day)
	assert.ErrorIs(t, err, ErrNotExported)

	require.NoError(t, repo.MarkExported(ctx, day, "Net Worth!A12"))
	ref, err := repo.ExportRef(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, "Net Worth!A12", ref)

	require.NoError(t, repo.MarkExported(ctx, day, "Net Worth!A13"))
	ref, err = repo.ExportRef(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, "Net Worth!A13", ref)
}
