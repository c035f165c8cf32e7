// Package mention decodes the raw restaurant mentions written by the extraction
// step, one JSON object per line.
package mention

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Raw is one extracted reference to a restaurant. Empty strings stand for
// values that were null or absent in the source record.
type Raw struct {
	Name         string `json:"name"`
	Neighborhood string `json:"neighborhood"`
	Cuisine      string `json:"cuisine"`
	Why          string `json:"why"`
	SourceURL    string `json:"source_url"`
	Sentiment    string `json:"sentiment"`
	CreatedISO   string `json:"created_iso"`

	// Created is CreatedISO parsed; zero when missing or unparsable.
	Created time.Time `json:"-"`
}

// NormalizedName is the trimmed name used for clustering.
func (r Raw) NormalizedName() string {
	return strings.TrimSpace(r.Name)
}

// Batch is the result of decoding a mention source.
type Batch struct {
	Mentions []Raw
	// Skipped counts lines that were not valid mention records.
	Skipped int
}

// Named returns the mentions with a non-empty normalized name, in input order.
func Named(mentions []Raw) []Raw {
	named := make([]Raw, 0, len(mentions))
	for _, m := range mentions {
		if m.NormalizedName() != "" {
			named = append(named, m)
		}
	}
	return named
}

// ParseTime parses a loosely formatted timestamp and returns it in UTC.
// The second return value is false when s is blank or unparsable.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
