package trend

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/elonfeng/foodbuzz/pkg/entity"
)

// MoversColumns is the header of the movers table.
var MoversColumns = []string{"name", "score_total_new", "score_total_old", "delta"}

// Mover is the change in total score of one entity between two snapshots.
type Mover struct {
	Name          string
	ScoreTotalNew float64
	ScoreTotalOld float64
	Delta         float64
}

// ComputeMovers joins latest to previous on name and ranks by delta =
// new - old. Entities absent from previous (or with no old score) count as
// old = 0. Entities only in previous are ignored. Ties are broken by name and
// NaN deltas sort last. At most limit rows are returned; limit <= 0 means all.
//
// If previous repeats a name, its first row is used.
func ComputeMovers(latest, previous []entity.Entity, limit int) []Mover {
	old := make(map[string]float64, len(previous))
	for _, e := range previous {
		if _, ok := old[e.Name]; !ok {
			old[e.Name] = e.ScoreTotal
		}
	}

	movers := make([]Mover, 0, len(latest))
	for _, e := range latest {
		prev, ok := old[e.Name]
		if !ok || math.IsNaN(prev) {
			prev = 0
		}
		movers = append(movers, Mover{
			Name:          e.Name,
			ScoreTotalNew: e.ScoreTotal,
			ScoreTotalOld: prev,
			Delta:         e.ScoreTotal - prev,
		})
	}

	sort.SliceStable(movers, func(i, j int) bool {
		a, b := movers[i].Delta, movers[j].Delta
		switch {
		case math.IsNaN(a) != math.IsNaN(b):
			return math.IsNaN(b)
		case !math.IsNaN(a) && a != b:
			return a > b
		default:
			return movers[i].Name < movers[j].Name
		}
	})

	if limit > 0 && len(movers) > limit {
		movers = movers[:limit]
	}
	return movers
}

type moverJSON struct {
	Name          string   `json:"name"`
	ScoreTotalNew *float64 `json:"score_total_new"`
	ScoreTotalOld float64  `json:"score_total_old"`
	Delta         *float64 `json:"delta"`
}

// MarshalJSON renders NaN scores as null.
func (m Mover) MarshalJSON() ([]byte, error) {
	return json.Marshal(moverJSON{
		Name:          m.Name,
		ScoreTotalNew: finite(m.ScoreTotalNew),
		ScoreTotalOld: m.ScoreTotalOld,
		Delta:         finite(m.Delta),
	})
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// WriteMoversCSV writes the movers table.
func WriteMoversCSV(w io.Writer, movers []Mover) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MoversColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, m := range movers {
		record := []string{m.Name, formatScore(m.ScoreTotalNew), formatScore(m.ScoreTotalOld), formatScore(m.Delta)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write mover %s: %w", m.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMoversFile atomically replaces path with the movers table.
func WriteMoversFile(path string, movers []Mover) error {
	return entity.WriteAtomic(path, func(w io.Writer) error {
		return WriteMoversCSV(w, movers)
	})
}

func formatScore(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
