package mention

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJSONL = `{"name":"Tacos El Rey","neighborhood":"Boyle Heights","cuisine":"Mexican","why":"al pastor","source_url":"https://reddit.com/r/FoodLosAngeles/1","sentiment":"positive","created_iso":"2025-03-01T18:00:00Z","post_id":"abc"}

{"name":"  Bestia ","created_iso":"2025-03-02 10:15:00"}
{"name":null,"cuisine":"Italian"}
not json at all
{"name":42}
{"name":"Sqirl","neighborhood":"","created_iso":"yesterday-ish"}
[1,2,3]
`

func TestRead(t *testing.T) {
	logger := zerolog.Nop()

	batch, err := Read(strings.NewReader(testJSONL), &logger)
	require.NoError(t, err)

	require.Len(t, batch.Mentions, 4)
	assert.Equal(t, 3, batch.Skipped)

	first := batch.Mentions[0]
	assert.Equal(t, "Tacos El Rey", first.Name)
	assert.Equal(t, "Boyle Heights", first.Neighborhood)
	assert.Equal(t, "https://reddit.com/r/FoodLosAngeles/1", first.SourceURL)
	assert.Equal(t, time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC), first.Created)

	second := batch.Mentions[1]
	assert.Equal(t, "Bestia", second.NormalizedName())
	assert.Equal(t, time.Date(2025, 3, 2, 10, 15, 0, 0, time.UTC), second.Created)
	assert.Empty(t, second.Neighborhood)

	assert.Empty(t, batch.Mentions[2].Name)
	assert.Equal(t, "Italian", batch.Mentions[2].Cuisine)

	sqirl := batch.Mentions[3]
	assert.Empty(t, sqirl.Neighborhood)
	assert.True(t, sqirl.Created.IsZero())
	assert.Equal(t, "yesterday-ish", sqirl.CreatedISO)
}

func TestRead_OversizedLineIsSkipped(t *testing.T) {
	huge := `{"name":"` + strings.Repeat("x", maxLineBytes) + `"}`
	input := `{"name":"Bestia"}` + "\n" + huge + "\n" + `{"name":"Sqirl"}`

	batch, err := Read(strings.NewReader(input), nil)
	require.NoError(t, err)
	require.Len(t, batch.Mentions, 2)
	assert.Equal(t, "Bestia", batch.Mentions[0].Name)
	assert.Equal(t, "Sqirl", batch.Mentions[1].Name)
	assert.Equal(t, 1, batch.Skipped)
}

func TestLoad_MissingFile(t *testing.T) {
	batch, err := Load(filepath.Join(t.TempDir(), "mentions_raw.jsonl"), nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Mentions)
	assert.Zero(t, batch.Skipped)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mentions_raw.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(testJSONL), 0o644))

	batch, err := Load(path, nil)
	require.NoError(t, err)
	assert.Len(t, batch.Mentions, 4)
}

func TestNamed(t *testing.T) {
	in := []Raw{{Name: "Bestia"}, {Name: "   "}, {Name: ""}, {Name: " Republique"}}

	out := Named(in)

	require.Len(t, out, 2)
	assert.Equal(t, "Bestia", out[0].NormalizedName())
	assert.Equal(t, "Republique", out[1].NormalizedName())
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{in: "2025-03-01T18:00:00Z", want: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC), ok: true},
		{in: "2025-03-01T18:00:00-08:00", want: time.Date(2025, 3, 2, 2, 0, 0, 0, time.UTC), ok: true},
		{in: "2025-03-01", want: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), ok: true},
		{in: "", ok: false},
		{in: "not a date", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}
