package dedupe

import (
	"math"

	"github.com/elonfeng/foodbuzz/pkg/entity"
	"github.com/elonfeng/foodbuzz/pkg/mention"
)

// DefaultSentiment is used when no mention in a cluster carries a sentiment.
const DefaultSentiment = "positive"

// Aggregate reduces the mentions at members to one canonical entity:
//   - name, neighborhood, cuisine, sentiment: most frequent non-empty value,
//     ties going to the value seen first in cluster order
//   - why, source_url: first non-empty value
//   - first_seen, last_seen: min and max of the parsable timestamps
//   - mentions: cluster size, including mentions without a usable timestamp
//
// Scores are left as NaN for the scorer to fill in.
func Aggregate(mentions []mention.Raw, members []int) entity.Entity {
	names := make([]string, 0, len(members))
	neighborhoods := make([]string, 0, len(members))
	cuisines := make([]string, 0, len(members))
	sentiments := make([]string, 0, len(members))

	e := entity.Entity{
		Mentions:   len(members),
		ScoreBuzz:  math.NaN(),
		ScoreTrend: math.NaN(),
		ScoreTotal: math.NaN(),
	}

	for _, idx := range members {
		m := mentions[idx]
		names = append(names, m.NormalizedName())
		neighborhoods = append(neighborhoods, m.Neighborhood)
		cuisines = append(cuisines, m.Cuisine)
		sentiments = append(sentiments, m.Sentiment)

		if e.Why == "" {
			e.Why = m.Why
		}
		if e.SourceURL == "" {
			e.SourceURL = m.SourceURL
		}

		if m.Created.IsZero() {
			continue
		}
		if e.FirstSeen.IsZero() || m.Created.Before(e.FirstSeen) {
			e.FirstSeen = m.Created
		}
		if e.LastSeen.IsZero() || m.Created.After(e.LastSeen) {
			e.LastSeen = m.Created
		}
	}

	e.Name = mode(names)
	e.Neighborhood = mode(neighborhoods)
	e.Cuisine = mode(cuisines)
	e.Sentiment = mode(sentiments)
	if e.Sentiment == "" {
		e.Sentiment = DefaultSentiment
	}

	return e
}

// mode returns the most frequent non-empty value. Ties go to the value that
// appeared first. It returns "" when every value is empty.
func mode(values []string) string {
	counts := make(map[string]int, len(values))
	var order []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	best, bestCount := "", 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}
