package entity

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// SentimentLabels are the values the enrichment step may assign.
var SentimentLabels = map[string]bool{"must-try": true, "good": true, "mixed": true}

const scoreTolerance = 1e-9

// ValidateOpts controls which checks Validate applies.
type ValidateOpts struct {
	// Enriched requires the sentiment_label column added by enrichment.
	Enriched bool
}

// Validate runs data quality checks on a decoded table and returns one message
// per failed check. An empty result means the table passed.
func Validate(t Table, opts ValidateOpts) []string {
	var problems []string

	required := []string{ColName, ColNeighborhood, ColCuisine, ColWhy, ColScoreBuzz, ColScoreTrend, ColScoreTotal}
	if opts.Enriched {
		required = append(required, ColSentimentLabel)
	}
	var missing []string
	for _, col := range required {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		problems = append(problems, fmt.Sprintf("missing columns: %s", strings.Join(missing, ", ")))
	}

	var nullNames, negativeBuzz, outOfRange int
	unexpected := make(map[string]bool)
	for _, e := range t.Entities {
		if strings.TrimSpace(e.Name) == "" {
			nullNames++
		}
		if e.ScoreBuzz < 0 {
			negativeBuzz++
		}
		if !math.IsNaN(e.ScoreBuzz) && !math.IsNaN(e.ScoreTotal) &&
			(e.ScoreTotal < e.ScoreBuzz-scoreTolerance || e.ScoreTotal > 2*e.ScoreBuzz+scoreTolerance) {
			outOfRange++
		}
		if label := e.Extra[ColSentimentLabel]; label != "" && !SentimentLabels[label] {
			unexpected[label] = true
		}
	}

	if nullNames > 0 {
		problems = append(problems, fmt.Sprintf("%d rows with null restaurant names", nullNames))
	}
	if negativeBuzz > 0 {
		problems = append(problems, fmt.Sprintf("%d rows with negative score_buzz", negativeBuzz))
	}
	if outOfRange > 0 {
		problems = append(problems, fmt.Sprintf("%d rows with score_total outside [score_buzz, 2*score_buzz]", outOfRange))
	}
	if len(unexpected) > 0 {
		labels := make([]string, 0, len(unexpected))
		for l := range unexpected {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		problems = append(problems, fmt.Sprintf("unexpected sentiment_label values: %s", strings.Join(labels, ", ")))
	}

	return problems
}
