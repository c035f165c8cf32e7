package entity

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_Passes(t *testing.T) {
	table := Table{Header: append(append([]string{}, Columns...), ColSentimentLabel), Entities: sampleEntities()}

	assert.Empty(t, Validate(table, ValidateOpts{Enriched: true}))
}

func TestValidate_Problems(t *testing.T) {
	table := Table{
		Header: []string{ColName, ColScoreBuzz, ColScoreTotal},
		Entities: []Entity{
			{Name: "", ScoreBuzz: 1, ScoreTotal: 1.5},
			{Name: "Bestia", ScoreBuzz: -1, ScoreTotal: math.NaN()},
			{Name: "Republique", ScoreBuzz: 2, ScoreTotal: 5},
			{Name: "Kismet", ScoreBuzz: 2, ScoreTotal: 3, Extra: map[string]string{ColSentimentLabel: "meh"}},
		},
	}

	problems := Validate(table, ValidateOpts{Enriched: true})

	joined := strings.Join(problems, "\n")
	assert.Len(t, problems, 5)
	assert.Contains(t, joined, "missing columns: neighborhood, cuisine, why, score_trend, sentiment_label")
	assert.Contains(t, joined, "1 rows with null restaurant names")
	assert.Contains(t, joined, "1 rows with negative score_buzz")
	assert.Contains(t, joined, "1 rows with score_total outside")
	assert.Contains(t, joined, "unexpected sentiment_label values: meh")
}

func TestValidate_LabelOptionalWhenNotEnriched(t *testing.T) {
	table := Table{Header: Columns, Entities: sampleEntities()[:1]}

	assert.Empty(t, Validate(table, ValidateOpts{}))
}
