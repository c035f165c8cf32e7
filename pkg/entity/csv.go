package entity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/elonfeng/foodbuzz/pkg/mention"
)

// ErrMissingColumn is returned when a table lacks a column that scoring or
// mover computation depends on.
var ErrMissingColumn = errors.New("missing required column")

// requiredColumns must be present in any table read back from disk.
var requiredColumns = []string{ColName, ColScoreTotal}

// Table is a decoded canonical entity file.
type Table struct {
	// Header is the column list exactly as found in the file.
	Header   []string
	Entities []Entity
}

// HasColumn reports whether the file header contained col.
func (t Table) HasColumn(col string) bool {
	for _, h := range t.Header {
		if h == col {
			return true
		}
	}
	return false
}

// WriteCSV writes entities with the canonical header followed by any extra columns.
func WriteCSV(w io.Writer, entities []Entity) error {
	extras := extraColumns(entities)
	header := append(append([]string{}, Columns...), extras...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range entities {
		e := &entities[i]
		record := []string{
			e.Name, e.Neighborhood, e.Cuisine, e.Why, e.SourceURL, e.Sentiment,
			formatTime(e.FirstSeen), formatTime(e.LastSeen),
			strconv.Itoa(e.Mentions),
			formatFloat(e.ScoreBuzz), formatFloat(e.ScoreTrend), formatFloat(e.ScoreTotal),
		}
		for _, col := range extras {
			record = append(record, e.Extra[col])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV decodes a canonical table. Optional columns that are absent are left
// at their zero value (NaN for scores); a missing name or score_total column
// is an ErrMissingColumn error.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, fmt.Errorf("%w: %s (empty file)", ErrMissingColumn, ColName)
		}
		return Table{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return Table{}, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	core := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		core[c] = true
	}

	table := Table{Header: header}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row %d: %w", line, err)
		}

		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		}

		e := Entity{
			Name:         get(ColName),
			Neighborhood: get(ColNeighborhood),
			Cuisine:      get(ColCuisine),
			Why:          get(ColWhy),
			SourceURL:    get(ColSourceURL),
			Sentiment:    get(ColSentiment),
			FirstSeen:    parseTime(get(ColFirstSeen)),
			LastSeen:     parseTime(get(ColLastSeen)),
			Mentions:     parseInt(get(ColMentions)),
			ScoreBuzz:    parseFloat(get(ColScoreBuzz)),
			ScoreTrend:   parseFloat(get(ColScoreTrend)),
			ScoreTotal:   parseFloat(get(ColScoreTotal)),
		}
		for i, h := range header {
			if core[h] || i >= len(record) {
				continue
			}
			if e.Extra == nil {
				e.Extra = make(map[string]string)
			}
			e.Extra[h] = record[i]
		}
		table.Entities = append(table.Entities, e)
	}

	return table, nil
}

// ReadFile reads a canonical table from path.
func ReadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	table, err := ReadCSV(f)
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	return table, nil
}

// WriteFile writes entities to path through a temporary file and rename, so
// readers never observe a partially written table.
func WriteFile(path string, entities []Entity) error {
	return WriteAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, entities)
	})
}

// WriteAtomic creates path's directory if needed, hands write a temporary file
// next to path and renames it into place once write succeeds.
func WriteAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

func extraColumns(entities []Entity) []string {
	seen := make(map[string]bool)
	for i := range entities {
		for k := range entities[i].Extra {
			seen[k] = true
		}
	}

	var cols []string
	for _, k := range knownExtras {
		if seen[k] {
			cols = append(cols, k)
			delete(seen, k)
		}
	}
	rest := make([]string, 0, len(seen))
	for k := range seen {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseTime(s string) time.Time {
	t, _ := mention.ParseTime(s)
	return t
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func parseInt(s string) int {
	f := parseFloat(s)
	if math.IsNaN(f) {
		return 0
	}
	return int(f)
}
