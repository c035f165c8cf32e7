package trend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/foodbuzz/pkg/mention"
)

func at(day string) mention.Raw {
	t, err := time.Parse("2006-01-02T15:04", day)
	if err != nil {
		panic(err)
	}
	return mention.Raw{Name: "Somewhere", Created: t}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2025, 3, 3, 23, 0, 0, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC), time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)},
		{time.Date(2021, 1, 3, 8, 0, 0, 0, time.UTC), time.Date(2020, 12, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := WeekStart(tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.in, got)
		assert.Equal(t, WeekKey(tt.in), WeekKey(got))
	}
}

func TestNewForecast(t *testing.T) {
	unnamed := at("2025-03-17T09:00")
	unnamed.Name = ""
	mentions := []mention.Raw{
		at("2025-03-03T10:00"),
		unnamed,
		at("2025-03-09T22:00"),
		{Name: "No Date"},
		at("2025-03-04T10:00"),
	}

	f := NewForecast(mentions, 4, 2)
	assert.Equal(t, 1, f.Undated)
	assert.Equal(t, 4, f.Window)

	require.Len(t, f.Weeks, 3)
	assert.Equal(t, "2025W10", f.Weeks[0].Key)
	assert.Equal(t, 3, f.Weeks[0].Mentions)
	assert.InDelta(t, 3.0, f.Weeks[0].MovingAverage, 1e-12)
	assert.Equal(t, "2025W11", f.Weeks[1].Key)
	assert.Equal(t, 0, f.Weeks[1].Mentions)
	assert.InDelta(t, 1.5, f.Weeks[1].MovingAverage, 1e-12)
	assert.Equal(t, "2025W12", f.Weeks[2].Key)
	assert.Equal(t, 1, f.Weeks[2].Mentions)
	assert.InDelta(t, 4.0/3.0, f.Weeks[2].MovingAverage, 1e-12)

	require.Len(t, f.Projected, 2)
	assert.Equal(t, "2025W13", f.Projected[0].Key)
	assert.Equal(t, "2025W14", f.Projected[1].Key)
	assert.InDelta(t, 4.0/3.0, f.Projected[1].Mentions, 1e-12)
}

func TestNewForecast_WindowSlides(t *testing.T) {
	mentions := []mention.Raw{
		at("2025-03-03T10:00"), at("2025-03-03T11:00"), at("2025-03-03T12:00"),
		at("2025-03-17T10:00"),
	}

	f := NewForecast(mentions, 2, 1)
	require.Len(t, f.Weeks, 3)
	assert.InDelta(t, 3.0, f.Weeks[0].MovingAverage, 1e-12)
	assert.InDelta(t, 1.5, f.Weeks[1].MovingAverage, 1e-12)
	assert.InDelta(t, 0.5, f.Weeks[2].MovingAverage, 1e-12)
	require.Len(t, f.Projected, 1)
	assert.InDelta(t, 0.5, f.Projected[0].Mentions, 1e-12)
}

func TestNewForecast_Empty(t *testing.T) {
	f := NewForecast([]mention.Raw{{Name: "Undated"}}, 0, 4)
	assert.Equal(t, DefaultForecastWindow, f.Window)
	assert.Empty(t, f.Weeks)
	assert.Empty(t, f.Projected)
	assert.Equal(t, 1, f.Undated)
}

func TestForecast_Tail(t *testing.T) {
	var mentions []mention.Raw
	for week := 0; week < 10; week++ {
		mentions = append(mentions, mention.Raw{Created: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*week)})
	}
	f := NewForecast(mentions, 4, 4)
	require.Len(t, f.Weeks, 10)

	tail := f.Tail(8)
	require.Len(t, tail, 8)
	assert.Equal(t, "2025W04", tail[0].Key)
	assert.Len(t, f.Tail(0), 10)
	assert.Len(t, f.Tail(50), 10)
}
