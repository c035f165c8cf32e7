package trend

import (
	"math"
	"time"

	"github.com/elonfeng/foodbuzz/pkg/entity"
)

// DefaultHalfLifeDays is the age at which the recency weight halves.
const DefaultHalfLifeDays = 30

const hoursPerDay = 24

// Scorer turns mention counts and recency into buzz, trend and total scores.
type Scorer struct {
	halfLifeDays int
}

// NewScorer creates a scorer. Half-lives below one day are clamped to one.
func NewScorer(halfLifeDays int) Scorer {
	return Scorer{halfLifeDays: max(halfLifeDays, 1)}
}

// HalfLifeDays returns the effective half-life.
func (s Scorer) HalfLifeDays() int {
	return max(s.halfLifeDays, 1)
}

// Lambda is the decay constant ln(2)/half-life, per day.
func (s Scorer) Lambda() float64 {
	return math.Ln2 / float64(s.HalfLifeDays())
}

// Trend returns the recency weight for an entity last seen ageDays ago:
// 1 at age 0, 0.5 at one half-life, tending to 0 but never reaching it. NaN
// ages stay NaN and negative ages (clock skew, future timestamps) count as 0.
func (s Scorer) Trend(ageDays float64) float64 {
	if math.IsNaN(ageDays) {
		return math.NaN()
	}
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Max(math.Exp(-ageDays*s.Lambda()), math.SmallestNonzeroFloat64)
}

// Score fills the score fields of e as of now:
//
//	score_buzz  = mentions
//	score_trend = Trend(days since last_seen)
//	score_total = score_buzz * (1 + score_trend)
//
// An entity without last_seen gets NaN trend and total.
func (s Scorer) Score(e *entity.Entity, now time.Time) {
	e.ScoreBuzz = float64(e.Mentions)

	age := math.NaN()
	if !e.LastSeen.IsZero() {
		age = now.Sub(e.LastSeen).Hours() / hoursPerDay
	}
	e.ScoreTrend = s.Trend(age)
	e.ScoreTotal = e.ScoreBuzz * (1 + e.ScoreTrend)
}

// Apply scores every entity in place.
func (s Scorer) Apply(entities []entity.Entity, now time.Time) {
	for i := range entities {
		s.Score(&entities[i], now)
	}
}
