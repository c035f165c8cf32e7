package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntities() []Entity {
	return []Entity{
		{
			Name:         "Tacos El Rey",
			Neighborhood: "Boyle Heights",
			Cuisine:      "Mexican",
			Why:          "al pastor, \"best\" in town",
			SourceURL:    "https://reddit.com/r/FoodLosAngeles/1",
			Sentiment:    "positive",
			FirstSeen:    time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC),
			LastSeen:     time.Date(2025, 3, 8, 12, 30, 0, 0, time.UTC),
			Mentions:     3,
			ScoreBuzz:    3,
			ScoreTrend:   0.5,
			ScoreTotal:   4.5,
		},
		{
			Name:       "Sqirl",
			Sentiment:  "positive",
			Mentions:   1,
			ScoreBuzz:  1,
			ScoreTrend: math.NaN(),
			ScoreTotal: math.NaN(),
			Extra:      map[string]string{ColSentimentLabel: "must-try", ColLat: "34.08", "zeta": "z"},
		},
	}
}

func TestWriteCSV_Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleEntities()))

	firstLine := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t,
		"name,neighborhood,cuisine,why,source_url,sentiment,first_seen,last_seen,mentions,score_buzz,score_trend,score_total,sentiment_label,lat,zeta",
		firstLine)
	assert.Contains(t, buf.String(), "Sqirl,,,,,positive,,,1,1,,,must-try,34.08,z")
}

func TestReadCSV_RoundTripsValues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleEntities()))

	table, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, table.Entities, 2)

	rey := table.Entities[0]
	assert.Equal(t, "al pastor, \"best\" in town", rey.Why)
	assert.True(t, rey.LastSeen.Equal(time.Date(2025, 3, 8, 12, 30, 0, 0, time.UTC)))
	assert.Equal(t, 3, rey.Mentions)
	assert.InDelta(t, 4.5, rey.ScoreTotal, 1e-12)

	sqirl := table.Entities[1]
	assert.True(t, sqirl.FirstSeen.IsZero())
	assert.True(t, math.IsNaN(sqirl.ScoreTrend))
	assert.True(t, math.IsNaN(sqirl.ScoreTotal))
	assert.Equal(t, "must-try", sqirl.Extra[ColSentimentLabel])
	assert.True(t, table.HasColumn("zeta"))
}

func TestReadCSV_MissingScoreTotal(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("name,score_buzz\nBestia,2\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))
	assert.Contains(t, err.Error(), "score_total")
}

func TestReadCSV_EmptyFile(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadCSV_MinimalColumns(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("score_total,name\n7.5,Bestia\n,Republique\n"))
	require.NoError(t, err)
	require.Len(t, table.Entities, 2)

	assert.Equal(t, "Bestia", table.Entities[0].Name)
	assert.InDelta(t, 7.5, table.Entities[0].ScoreTotal, 1e-12)
	assert.True(t, math.IsNaN(table.Entities[0].ScoreBuzz))
	assert.True(t, math.IsNaN(table.Entities[1].ScoreTotal))
}

func TestWriteFile_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "mentions_clean.csv")

	require.NoError(t, WriteFile(path, sampleEntities()))
	require.NoError(t, WriteFile(path, sampleEntities()[:1]))

	table, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, table.Entities, 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestReadFile_NotExist(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEntity_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(sampleEntities()[1])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["score_total"])
	assert.Nil(t, decoded["last_seen"])
	assert.Equal(t, float64(1), decoded["score_buzz"])
	assert.Equal(t, "Sqirl", decoded["name"])
}
