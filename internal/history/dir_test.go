package history

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/foodbuzz/pkg/entity"
	"github.com/elonfeng/foodbuzz/pkg/trend"
)

func TestDir_MissingDirectory(t *testing.T) {
	d := NewDir(filepath.Join(t.TempDir(), "history"))

	keys, err := d.SnapshotKeys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDir_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "history")
	d := NewDir(root)

	seen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	in := []entity.Entity{{
		Name:       "Bestia",
		Cuisine:    "Italian",
		LastSeen:   seen,
		Mentions:   3,
		ScoreBuzz:  3,
		ScoreTrend: 1,
		ScoreTotal: 6,
		Extra:      map[string]string{entity.ColSentimentLabel: "must-try"},
	}}

	require.NoError(t, d.SaveSnapshot(ctx, "2025W09", in))
	assert.FileExists(t, filepath.Join(root, "mentions_2025W09.csv"))

	out, err := d.LoadSnapshot(ctx, "2025W09")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Bestia", out[0].Name)
	assert.Equal(t, 6.0, out[0].ScoreTotal)
	assert.True(t, seen.Equal(out[0].LastSeen))
	assert.Equal(t, "must-try", out[0].Extra[entity.ColSentimentLabel])
}

func TestDir_KeysIgnoreOtherFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	d := NewDir(root)

	require.NoError(t, d.SaveSnapshot(ctx, "2025W10", nil))
	require.NoError(t, d.SaveSnapshot(ctx, "2025W09", nil))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "mentions_.csv"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "mentions_2025W01.csv"), 0o755))

	keys, err := d.SnapshotKeys(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"2025W09", "2025W10"}, keys)
}

func TestDir_LoadMissingScoreColumn(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)
	require.NoError(t, os.WriteFile(d.Path("2025W09"), []byte("name\nBestia\n"), 0o644))

	_, err := d.LoadSnapshot(context.Background(), "2025W09")
	assert.ErrorIs(t, err, entity.ErrMissingColumn)
}

func TestDir_TrackerMovers(t *testing.T) {
	ctx := context.Background()
	tracker := trend.NewTracker(NewDir(t.TempDir()), 0, nil)

	week1 := time.Date(2025, 2, 24, 0, 0, 0, 0, time.UTC)
	_, err := tracker.Snapshot(ctx, week1, []entity.Entity{{Name: "Taco Spot", ScoreTotal: 10}})
	require.NoError(t, err)
	_, err = tracker.Snapshot(ctx, week1.AddDate(0, 0, 7), []entity.Entity{
		{Name: "Taco Spot", ScoreTotal: 15},
		{Name: "New Place", ScoreTotal: 5},
	})
	require.NoError(t, err)

	report, err := tracker.Movers(ctx)
	require.NoError(t, err)
	require.True(t, report.Enough)
	require.Len(t, report.Movers, 2)
	assert.Equal(t, "New Place", report.Movers[0].Name)
	assert.Equal(t, "Taco Spot", report.Movers[1].Name)
	assert.Equal(t, 5.0, report.Movers[1].Delta)
}
