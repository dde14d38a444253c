package regex

import (
	"encoding/json"
	"testing"
	"unicode"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offsetsOf(matches []Match) (got [][3]int) {
	for _, m := range matches {
		isMatch := 0
		if m.IsMatch {
			isMatch = 1
		}
		got = append(got, [3]int{m.Offsets.Start, m.Offsets.End, isMatch})
	}
	return
}

func TestFindMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern *Pattern
		text    string
		want    [][3]int
	}{
		{"literal", Literal("-"), "a-b-c", [][3]int{{0, 1, 0}, {1, 2, 1}, {2, 3, 0}, {3, 4, 1}, {4, 5, 0}}},
		{"literal at edges", Literal("ab"), "abxab", [][3]int{{0, 2, 1}, {2, 3, 0}, {3, 5, 1}}},
		{"regex", MustRegex(`\s+`), "hey  you", [][3]int{{0, 3, 0}, {3, 5, 1}, {5, 8, 0}}},
		{"regex runes", MustRegex(`é+`), "caféé!", [][3]int{{0, 3, 0}, {3, 5, 1}, {5, 6, 0}}},
		{"rune func", RuneFunc(unicode.IsDigit), "a12", [][3]int{{0, 1, 0}, {1, 2, 1}, {2, 3, 1}}},
		{"no match", Literal("z"), "abc", [][3]int{{0, 3, 0}}},
		{"empty text", Literal("z"), "", [][3]int{{0, 0, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := tt.pattern.FindMatches([]rune(tt.text))
			require.NoError(t, err)
			assert.Equal(t, tt.want, offsetsOf(matches))
		})
	}
}

func TestLookAhead(t *testing.T) {
	p := MustRegex(`\s+(?!\S)|\s+`)
	matches, err := p.FindMatches([]rune("a   b"))
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Offsets: tokens.Offsets{Start: 0, End: 1}},
		{Offsets: tokens.Offsets{Start: 1, End: 3}, IsMatch: true},
		{Offsets: tokens.Offsets{Start: 3, End: 4}, IsMatch: true},
		{Offsets: tokens.Offsets{Start: 4, End: 5}},
	}, matches)
}

func TestInvalidRegex(t *testing.T) {
	_, err := Regex("(unclosed")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidPattern))
}

func TestReplaceAll(t *testing.T) {
	got, err := Literal("▁").ReplaceAll("▁hello▁world", " ")
	require.NoError(t, err)
	assert.Equal(t, " hello world", got)

	got, err = MustRegex(` {2,}`).ReplaceAll("a   b  c", " ")
	require.NoError(t, err)
	assert.Equal(t, "a b c", got)
}

func TestJSON(t *testing.T) {
	for _, p := range []*Pattern{Literal(" "), MustRegex(`\d+`)} {
		data, err := json.Marshal(p)
		require.NoError(t, err)
		var got Pattern
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, p.String(), got.String())
	}

	var p Pattern
	require.NoError(t, json.Unmarshal([]byte(`{"Regex": "\\s+"}`), &p))
	assert.True(t, p.IsRegex())
	err := json.Unmarshal([]byte(`{}`), &p)
	assert.True(t, errors.Is(err, errs.ErrConfig))
}
