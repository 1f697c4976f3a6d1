package dice_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/rollbox/internal/dice"
)

func TestScan(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"1d20+5 and 2d6+3", []string{"1d20+5", "2d6+3"}},
		{"Attack: 1d20+5, Damage: 2d6+3", []string{"1d20+5", "2d6+3"}},
		{"roll a d20 please", []string{"d20"}},
		{"(1D8-1)", []string{"1D8-1"}},
		{"Sword6d6 is not a roll", nil},
		{"2d6x", nil},
		{"2d6+3rd attack", []string{"2d6"}},
		{"2d6+1d4", []string{"2d6", "1d4"}},
		{"no dice here", nil},
		{"", nil},
		{"1d6,1d8;1d10", []string{"1d6", "1d8", "1d10"}},
		{"épée 1d6", []string{"1d6"}},
		{"é1d6", nil},
		{"2d", nil},
		{"Attack: 1d20 + 5", []string{"1d20 + 5"}},
		{"hit 2d6 -\t1 slashing", []string{"2d6 -\t1"}},
		{"1d6 + 2d6", []string{"1d6", "2d6"}},
		{"1d6 +2nd", []string{"1d6"}},
		{"1d6\n+2", []string{"1d6"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := dice.Scan(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanSpans_Offsets(t *testing.T) {
	text := "Attack: 1d20+5, Damage: 2d6+3"
	spans := dice.ScanSpans(text)
	assert.Equal(t, []dice.Span{
		{Start: 8, End: 14, Text: "1d20+5"},
		{Start: 24, End: 29, Text: "2d6+3"},
	}, spans)
}

// Scanner matches are located, not validated: out-of-range groups are
// still reported and rejected later by Parse.
func TestScan_FalsePositivesCaughtByParse(t *testing.T) {
	found := dice.Scan("cast 1d1 then 200d6")
	assert.Equal(t, []string{"1d1", "200d6"}, found)
	for _, s := range found {
		assert.False(t, dice.IsExpression(s), s)
	}
}

func TestScan_SpacedModifierParses(t *testing.T) {
	found := dice.Scan("Attack: 1d20 + 5, Damage: 2d6 - 1")
	assert.Equal(t, []string{"1d20 + 5", "2d6 - 1"}, found)
	for _, s := range found {
		assert.True(t, dice.IsExpression(s), s)
	}
}

// TestScanSpans_NonOverlapping_Property verifies spans are ordered,
// non-overlapping and point at their text.
func TestScanSpans_NonOverlapping_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		words := rapid.SliceOfN(rapid.OneOf(
			rapid.StringMatching(`[0-9]{0,2}d[0-9]{1,3}([+-][0-9]{1,2})?`),
			rapid.StringMatching(`[a-z]{1,6}`),
			rapid.SampledFrom([]string{",", "+", "-", " ", ":"}),
		), 0, 12).Draw(rt, "words")
		sep := rapid.SampledFrom([]string{"", " "}).Draw(rt, "sep")
		text := strings.Join(words, sep)

		spans := dice.ScanSpans(text)
		end := 0
		for _, s := range spans {
			assert.GreaterOrEqual(rt, s.Start, end)
			assert.Less(rt, s.Start, s.End)
			assert.Equal(rt, text[s.Start:s.End], s.Text)
			end = s.End
		}
	})
}

// TestScan_SingleExpression_Property verifies a lone valid expression
// surrounded by spaces is found whole.
func TestScan_SingleExpression_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		expr := rapid.StringMatching(`[1-9][0-9]?d[1-9][0-9]{0,2}([+-][1-9][0-9]{0,2})?`).Draw(rt, "expr")
		got := dice.Scan("roll " + expr + " now")
		assert.Equal(rt, []string{expr}, got)
	})
}
