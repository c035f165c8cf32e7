package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "Howlin' Ray's", b: "Howlin' Ray's", want: 100},
		{name: "case and punctuation", a: "Joe's Pizza", b: "joes pizza", want: 100},
		{name: "reordered tokens", a: "Pizza Joe's", b: "Joe's Pizza", want: 100},
		{name: "superset", a: "Bestia", b: "Bestia Arts District", want: 100},
		{name: "duplicate tokens", a: "Tacos Tacos El Rey", b: "Tacos El Rey", want: 100},
		{name: "accents folded", a: "Café Dulce", b: "Cafe Dulce", want: 100},
		{name: "one letter off", a: "Tacos Lupe", b: "Tacos Lupo", want: 90},
		{name: "empty left", a: "", b: "Bestia", want: 0},
		{name: "punctuation only", a: "!!!", b: "Bestia", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TokenSetRatio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestTokenSetRatio_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"Joe's Pizza", "Luigi's Pasta"},
		{"Tacos Lupe", "Tacos Lupo"},
		{"Sun Nong Dan", "Sun Nong Don Koreatown"},
		{"Guerrilla Tacos", "Guerilla Tacos"},
	}
	for _, p := range pairs {
		assert.InDelta(t, TokenSetRatio(p[0], p[1]), TokenSetRatio(p[1], p[0]), 1e-9, "%q vs %q", p[0], p[1])
	}
}

func TestTokenSetRatio_DissimilarNamesStayLow(t *testing.T) {
	assert.Less(t, TokenSetRatio("Joe's Pizza", "Luigi's Pasta"), 88.0)
	assert.Less(t, TokenSetRatio("Bestia", "Republique"), 88.0)
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 75.0, Ratio("abcd", "abce"), 1e-9)
	assert.InDelta(t, 100.0, Ratio("", ""), 1e-9)
	assert.InDelta(t, 0.0, Ratio("abc", ""), 1e-9)
	assert.InDelta(t, 0.0, Ratio("abc", "xyz"), 1e-9)
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"joes", "pizza"}, Tokens("  Joe’s   PIZZA! "))
	assert.Equal(t, []string{"cafe", "de", "leche"}, Tokens("Café-de-Leche"))
	assert.Empty(t, Tokens(" -- "))
}
