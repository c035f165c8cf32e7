// Package entity holds the canonical restaurant record produced by
// deduplication and the tabular file format shared with downstream tools.
package entity

import (
	"encoding/json"
	"math"
	"time"
)

// Column names of the canonical entity table, in file order.
const (
	ColName         = "name"
	ColNeighborhood = "neighborhood"
	ColCuisine      = "cuisine"
	ColWhy          = "why"
	ColSourceURL    = "source_url"
	ColSentiment    = "sentiment"
	ColFirstSeen    = "first_seen"
	ColLastSeen     = "last_seen"
	ColMentions     = "mentions"
	ColScoreBuzz    = "score_buzz"
	ColScoreTrend   = "score_trend"
	ColScoreTotal   = "score_total"
)

// Columns added by downstream enrichment and geocoding. They are carried
// through unchanged and written in this order ahead of any other extras.
const (
	ColSignatureDishes = "signature_dishes"
	ColSentimentLabel  = "sentiment_label"
	ColLat             = "lat"
	ColLng             = "lng"
)

// Columns is the header written for every canonical table.
var Columns = []string{
	ColName, ColNeighborhood, ColCuisine, ColWhy, ColSourceURL, ColSentiment,
	ColFirstSeen, ColLastSeen, ColMentions, ColScoreBuzz, ColScoreTrend, ColScoreTotal,
}

var knownExtras = []string{ColSignatureDishes, ColSentimentLabel, ColLat, ColLng}

// Entity is one de-duplicated restaurant. Empty strings and zero times mean the
// value is unknown; scores are NaN when they could not be computed.
type Entity struct {
	Name         string
	Neighborhood string
	Cuisine      string
	Why          string
	SourceURL    string
	Sentiment    string
	FirstSeen    time.Time
	LastSeen     time.Time
	Mentions     int
	ScoreBuzz    float64
	ScoreTrend   float64
	ScoreTotal   float64

	// Extra holds downstream columns this package does not interpret.
	Extra map[string]string
}

type entityJSON struct {
	Name         string            `json:"name"`
	Neighborhood string            `json:"neighborhood,omitempty"`
	Cuisine      string            `json:"cuisine,omitempty"`
	Why          string            `json:"why,omitempty"`
	SourceURL    string            `json:"source_url,omitempty"`
	Sentiment    string            `json:"sentiment,omitempty"`
	FirstSeen    *time.Time        `json:"first_seen"`
	LastSeen     *time.Time        `json:"last_seen"`
	Mentions     int               `json:"mentions"`
	ScoreBuzz    *float64          `json:"score_buzz"`
	ScoreTrend   *float64          `json:"score_trend"`
	ScoreTotal   *float64          `json:"score_total"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// MarshalJSON renders unknown timestamps and NaN scores as null.
func (e Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(entityJSON{
		Name:         e.Name,
		Neighborhood: e.Neighborhood,
		Cuisine:      e.Cuisine,
		Why:          e.Why,
		SourceURL:    e.SourceURL,
		Sentiment:    e.Sentiment,
		FirstSeen:    timePtr(e.FirstSeen),
		LastSeen:     timePtr(e.LastSeen),
		Mentions:     e.Mentions,
		ScoreBuzz:    floatPtr(e.ScoreBuzz),
		ScoreTrend:   floatPtr(e.ScoreTrend),
		ScoreTotal:   floatPtr(e.ScoreTotal),
		Extra:        e.Extra,
	})
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func floatPtr(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
