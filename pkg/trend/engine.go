package trend

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/elonfeng/foodbuzz/pkg/dedupe"
	"github.com/elonfeng/foodbuzz/pkg/entity"
	"github.com/elonfeng/foodbuzz/pkg/mention"
)

// Engine turns raw mentions into scored canonical entities.
type Engine struct {
	threshold  float64
	scorer     Scorer
	similarity dedupe.SimilarityFunc
	logger     *zerolog.Logger
}

// NewEngine creates an engine. minSimilarity is a 0-100 percentage and is
// clamped into that range.
func NewEngine(minSimilarity, halfLifeDays int, logger *zerolog.Logger) *Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Engine{
		threshold: float64(min(max(minSimilarity, 0), 100)),
		scorer:    NewScorer(halfLifeDays),
		logger:    logger,
	}
}

// WithSimilarity replaces the name similarity measure.
func (e *Engine) WithSimilarity(sim dedupe.SimilarityFunc) *Engine {
	e.similarity = sim
	return e
}

// Result is the outcome of one Detect pass.
type Result struct {
	Entities []entity.Entity
	// Dropped counts mentions discarded for lacking a name.
	Dropped int
}

// Detect drops unnamed mentions, clusters the rest by name similarity, reduces
// each cluster to one entity and scores it as of now. Entities are returned in
// cluster order, which follows the order of the input mentions.
func (e *Engine) Detect(mentions []mention.Raw, now time.Time) Result {
	named := mention.Named(mentions)
	res := Result{Dropped: len(mentions) - len(named)}
	if len(named) == 0 {
		return res
	}

	names := make([]string, len(named))
	for i, m := range named {
		names[i] = m.NormalizedName()
	}

	clusters := dedupe.ClusterNames(names, e.threshold, e.similarity)

	res.Entities = make([]entity.Entity, 0, len(clusters))
	for _, c := range clusters {
		ent := dedupe.Aggregate(named, c.Members)
		e.scorer.Score(&ent, now)

		if len(c.Members) > 1 {
			e.logger.Debug().
				Str("base", names[c.Base]).
				Str("canonical", ent.Name).
				Int("mentions", len(c.Members)).
				Msg("merged mentions")
		}
		res.Entities = append(res.Entities, ent)
	}

	e.logger.Info().
		Int("mentions", len(mentions)).
		Int("dropped", res.Dropped).
		Int("entities", len(res.Entities)).
		Float64("threshold", e.threshold).
		Int("half_life_days", e.scorer.HalfLifeDays()).
		Msg("deduplicated mentions")

	return res
}
