package trend

import (
	"time"

	"github.com/elonfeng/foodbuzz/pkg/mention"
)

// Forecast defaults: a four-week moving average projected four weeks ahead.
const (
	DefaultForecastWindow  = 4
	DefaultForecastHorizon = 4
)

// WeekVolume is the number of raw mentions created in one ISO week.
type WeekVolume struct {
	Key           string    `json:"week"`
	Start         time.Time `json:"start"`
	Mentions      int       `json:"mentions"`
	MovingAverage float64   `json:"moving_average"`
}

// ProjectedWeek is a forecast mention count for a future ISO week.
type ProjectedWeek struct {
	Key      string    `json:"week"`
	Start    time.Time `json:"start"`
	Mentions float64   `json:"mentions"`
}

// Forecast is the weekly mention volume with a flat moving-average projection.
type Forecast struct {
	Window    int             `json:"window"`
	Weeks     []WeekVolume    `json:"weeks"`
	Projected []ProjectedWeek `json:"projected"`
	// Undated counts mentions without a usable created timestamp.
	Undated int `json:"undated"`
}

// WeekStart returns midnight UTC on the Monday of t's ISO week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// NewForecast buckets mentions by ISO week of their creation time, fills weeks
// without mentions with zero, and smooths the series with a trailing moving
// average over up to window weeks. The last average is repeated for horizon
// weeks after the final bucket. Every decoded mention counts, named or not.
func NewForecast(mentions []mention.Raw, window, horizon int) Forecast {
	if window <= 0 {
		window = DefaultForecastWindow
	}
	if horizon < 0 {
		horizon = 0
	}

	f := Forecast{Window: window, Weeks: []WeekVolume{}, Projected: []ProjectedWeek{}}

	counts := make(map[time.Time]int)
	var first, last time.Time
	for _, m := range mentions {
		if m.Created.IsZero() {
			f.Undated++
			continue
		}
		start := WeekStart(m.Created)
		counts[start]++
		if first.IsZero() || start.Before(first) {
			first = start
		}
		if start.After(last) {
			last = start
		}
	}
	if len(counts) == 0 {
		return f
	}

	sum := 0
	for start := first; !start.After(last); start = start.AddDate(0, 0, 7) {
		n := counts[start]
		f.Weeks = append(f.Weeks, WeekVolume{Key: WeekKey(start), Start: start, Mentions: n})

		i := len(f.Weeks) - 1
		sum += n
		if i >= window {
			sum -= f.Weeks[i-window].Mentions
		}
		f.Weeks[i].MovingAverage = float64(sum) / float64(min(i+1, window))
	}

	next := f.Weeks[len(f.Weeks)-1].MovingAverage
	for i := 1; i <= horizon; i++ {
		start := last.AddDate(0, 0, 7*i)
		f.Projected = append(f.Projected, ProjectedWeek{Key: WeekKey(start), Start: start, Mentions: next})
	}
	return f
}

// Tail returns the last n weeks of the series, or all of them when n <= 0.
func (f Forecast) Tail(n int) []WeekVolume {
	if n <= 0 || n >= len(f.Weeks) {
		return f.Weeks
	}
	return f.Weeks[len(f.Weeks)-n:]
}
