package trend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/foodbuzz/pkg/entity"
)

type memoryHistory struct {
	tables  map[string][]entity.Entity
	loadErr error
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{tables: make(map[string][]entity.Entity)}
}

func (m *memoryHistory) SaveSnapshot(_ context.Context, key string, entities []entity.Entity) error {
	m.tables[key] = append([]entity.Entity(nil), entities...)
	return nil
}

func (m *memoryHistory) SnapshotKeys(_ context.Context) ([]string, error) {
	keys := make([]string, 0, len(m.tables))
	for k := range m.tables {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *memoryHistory) LoadSnapshot(_ context.Context, key string) ([]entity.Entity, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.tables[key], nil
}

func TestWeekKey(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{t: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), want: "2025W10"},
		{t: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), want: "2025W02"},
		// ISO weeks can belong to the neighbouring calendar year.
		{t: time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), want: "2025W01"},
		{t: time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC), want: "2020W53"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeekKey(tt.t), tt.t.String())
	}
	assert.Less(t, WeekKey(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)), WeekKey(time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)))
}

func TestTracker_SnapshotOverwritesWithinWeek(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHistory()
	tracker := NewTracker(h, 0, nil)

	monday := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	key1, err := tracker.Snapshot(ctx, monday, []entity.Entity{{Name: "Bestia", ScoreTotal: 3}})
	require.NoError(t, err)
	key2, err := tracker.Snapshot(ctx, monday.Add(72*time.Hour), []entity.Entity{{Name: "Republique", ScoreTotal: 5}})
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	keys, err := tracker.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025W10"}, keys)
	assert.Equal(t, "Republique", h.tables["2025W10"][0].Name)
}

func TestTracker_MoversInsufficientHistory(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHistory()
	tracker := NewTracker(h, 0, nil)

	report, err := tracker.Movers(ctx)
	require.NoError(t, err)
	assert.False(t, report.Enough)
	assert.Empty(t, report.Movers)

	_, err = tracker.Snapshot(ctx, time.Now(), []entity.Entity{{Name: "Bestia", ScoreTotal: 1}})
	require.NoError(t, err)

	report, err = tracker.Movers(ctx)
	require.NoError(t, err)
	assert.False(t, report.Enough)
	assert.Empty(t, report.Movers)
}

func TestTracker_Movers(t *testing.T) {
	ctx := context.Background()
	h := newMemoryHistory()
	h.tables["2025W08"] = []entity.Entity{{Name: "Old Favorite", ScoreTotal: 50}}
	h.tables["2025W09"] = []entity.Entity{{Name: "Taco Spot", ScoreTotal: 10}}
	h.tables["2025W10"] = []entity.Entity{{Name: "Taco Spot", ScoreTotal: 15}, {Name: "New Place", ScoreTotal: 5}}

	report, err := NewTracker(h, 0, nil).Movers(ctx)
	require.NoError(t, err)

	assert.True(t, report.Enough)
	assert.Equal(t, "2025W10", report.LatestKey)
	assert.Equal(t, "2025W09", report.PreviousKey)
	assert.Equal(t, []Mover{
		{Name: "New Place", ScoreTotalNew: 5, ScoreTotalOld: 0, Delta: 5},
		{Name: "Taco Spot", ScoreTotalNew: 15, ScoreTotalOld: 10, Delta: 5},
	}, report.Movers)
}

func TestTracker_MoversLoadError(t *testing.T) {
	h := newMemoryHistory()
	h.tables["2025W09"] = nil
	h.tables["2025W10"] = nil
	h.loadErr = entity.ErrMissingColumn

	_, err := NewTracker(h, 0, nil).Movers(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrMissingColumn))
}
