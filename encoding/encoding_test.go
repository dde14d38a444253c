package encoding

import (
	"encoding/json"
	"testing"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEncoding creates an encoding with ids 1..n, one word per token and one
// character per token.
func newTestEncoding(n int) *Encoding {
	toks := make([]tokens.Token, n)
	wordIDs := make([]int, n)
	for ii := range toks {
		toks[ii] = tokens.NewToken(uint32(ii+1), string(rune('a'+ii)), tokens.Offsets{Start: ii, End: ii + 1})
		wordIDs[ii] = ii
	}
	return New(toks, wordIDs, 0)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name              string
		maxLength, stride int
		direction         Direction
		want              []uint32
		wantOverflowing   [][]uint32
	}{
		{"right", 2, 0, Right, []uint32{1, 2}, [][]uint32{{3, 4}, {5}}},
		{"right with stride", 3, 1, Right, []uint32{1, 2, 3}, [][]uint32{{3, 4, 5}}},
		{"left", 2, 0, Left, []uint32{4, 5}, [][]uint32{{2, 3}, {1}}},
		{"left with stride", 3, 1, Left, []uint32{3, 4, 5}, [][]uint32{{1, 2, 3}}},
		{"no truncation needed", 5, 0, Right, []uint32{1, 2, 3, 4, 5}, nil},
		{"zero length", 0, 0, Right, []uint32{}, [][]uint32{{1, 2, 3, 4, 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEncoding(5)
			require.NoError(t, e.Truncate(tt.maxLength, tt.stride, tt.direction))
			require.NoError(t, e.Validate())
			assert.Equal(t, tt.want, e.IDs)
			assert.LessOrEqual(t, e.Len(), max(tt.maxLength, 0))
			var overflowing [][]uint32
			for _, o := range e.Overflowing {
				overflowing = append(overflowing, o.IDs)
				assert.LessOrEqual(t, o.Len(), 5)
			}
			assert.Equal(t, tt.wantOverflowing, overflowing)
		})
	}

	e := newTestEncoding(5)
	err := e.Truncate(2, 2, Right)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestPad(t *testing.T) {
	e := newTestEncoding(2)
	e.Pad(4, 0, 1, "[PAD]", Right)
	require.NoError(t, e.Validate())
	assert.Equal(t, []uint32{1, 2, 0, 0}, e.IDs)
	assert.Equal(t, []uint32{0, 0, 1, 1}, e.TypeIDs)
	assert.Equal(t, []string{"a", "b", "[PAD]", "[PAD]"}, e.Tokens)
	assert.Equal(t, []uint32{1, 1, 0, 0}, e.AttentionMask)
	assert.Equal(t, []uint32{0, 0, 1, 1}, e.SpecialTokensMask)
	assert.Equal(t, []int{0, 1, NoIndex, NoIndex}, e.WordIDs)
	assert.Equal(t, []int{0, 0, NoIndex, NoIndex}, e.SequenceIDs)

	// Idempotent.
	again := e.Clone()
	again.Pad(4, 0, 1, "[PAD]", Right)
	assert.Equal(t, e, again)

	// Shorter target: no-op.
	shorter := e.Clone()
	shorter.Pad(1, 0, 1, "[PAD]", Right)
	assert.Equal(t, e, shorter)

	left := newTestEncoding(2)
	left.Pad(3, 9, 0, "<pad>", Left)
	assert.Equal(t, []uint32{9, 1, 2}, left.IDs)
	assert.Equal(t, []tokens.Offsets{{Start: 0, End: 0}, {Start: 0, End: 1}, {Start: 1, End: 2}}, left.Offsets)
	assert.Equal(t, []uint32{0, 1, 1}, left.AttentionMask)

	// Overflowing encodings are padded too.
	withOverflow := newTestEncoding(3)
	require.NoError(t, withOverflow.Truncate(2, 0, Right))
	withOverflow.Pad(2, 0, 0, "[PAD]", Right)
	assert.Equal(t, []uint32{1, 2}, withOverflow.IDs)
	assert.Equal(t, []uint32{3, 0}, withOverflow.Overflowing[0].IDs)
}

func TestMerge(t *testing.T) {
	a := newTestEncoding(2)
	b := newTestEncoding(3)
	b.SetSequenceID(1)
	b.SetTypeID(1)

	merged := Merge([]*Encoding{a, b}, false)
	require.NoError(t, merged.Validate())
	assert.Equal(t, []uint32{1, 2, 1, 2, 3}, merged.IDs)
	assert.Equal(t, []uint32{0, 0, 1, 1, 1}, merged.TypeIDs)
	assert.Equal(t, []int{0, 0, 1, 1, 1}, merged.SequenceIDs)
	assert.Equal(t, tokens.Offsets{Start: 0, End: 1}, merged.Offsets[2])
	assert.Equal(t, 2, merged.NSequences())

	growing := a.Clone()
	growing.MergeWith(b, true)
	assert.Equal(t, []tokens.Offsets{{Start: 0, End: 1}, {Start: 1, End: 2}, {Start: 2, End: 3}, {Start: 3, End: 4}, {Start: 4, End: 5}}, growing.Offsets)

	// Overflowing encodings are combined.
	withOverflow := newTestEncoding(3)
	require.NoError(t, withOverflow.Truncate(2, 0, Right))
	pair := newTestEncoding(2)
	require.NoError(t, pair.Truncate(1, 0, Right))
	withOverflow.MergeWith(pair, false)
	assert.Equal(t, []uint32{1, 2, 1}, withOverflow.IDs)
	var overflowing [][]uint32
	for _, o := range withOverflow.Overflowing {
		overflowing = append(overflowing, o.IDs)
	}
	assert.Equal(t, [][]uint32{{3, 1}, {3, 2}, {1, 2, 2}}, overflowing)
}

func TestQueries(t *testing.T) {
	// "[CLS] a b [SEP] c [SEP]" where "a b" is one word of sequence 0, "c" a word of sequence 1.
	e := WithCapacity(6)
	e.Append(101, 0, "[CLS]", tokens.Offsets{}, NoIndex, NoIndex, 1, 1)
	e.Append(1, 0, "a", tokens.Offsets{Start: 0, End: 1}, 0, 0, 0, 1)
	e.Append(2, 0, "##b", tokens.Offsets{Start: 1, End: 2}, 0, 0, 0, 1)
	e.Append(102, 0, "[SEP]", tokens.Offsets{}, NoIndex, NoIndex, 1, 1)
	e.Append(3, 1, "c", tokens.Offsets{Start: 0, End: 1}, 0, 1, 0, 1)
	e.Append(102, 1, "[SEP]", tokens.Offsets{}, NoIndex, NoIndex, 1, 1)
	require.NoError(t, e.Validate())
	assert.Equal(t, 2, e.NSequences())

	start, stop, found := e.WordToTokens(0, 0)
	require.True(t, found)
	assert.Equal(t, []int{1, 3}, []int{start, stop})
	start, stop, found = e.WordToTokens(0, 1)
	require.True(t, found)
	assert.Equal(t, []int{4, 5}, []int{start, stop})
	_, _, found = e.WordToTokens(7, 0)
	assert.False(t, found)

	offsets, found := e.WordToChars(0, 0)
	require.True(t, found)
	assert.Equal(t, tokens.Offsets{Start: 0, End: 2}, offsets)

	seq, found := e.TokenToSequence(4)
	require.True(t, found)
	assert.Equal(t, 1, seq)
	_, found = e.TokenToSequence(0)
	assert.False(t, found)
	_, found = e.TokenToSequence(10)
	assert.False(t, found)

	seq, offsets, found = e.TokenToChars(2)
	require.True(t, found)
	assert.Equal(t, 0, seq)
	assert.Equal(t, tokens.Offsets{Start: 1, End: 2}, offsets)

	seq, word, found := e.TokenToWord(4)
	require.True(t, found)
	assert.Equal(t, []int{1, 0}, []int{seq, word})
	_, _, found = e.TokenToWord(3)
	assert.False(t, found)

	token, found := e.CharToToken(1, 0)
	require.True(t, found)
	assert.Equal(t, 2, token)
	token, found = e.CharToToken(0, 1)
	require.True(t, found)
	assert.Equal(t, 4, token)
	_, found = e.CharToToken(5, 0)
	assert.False(t, found)

	word, found = e.CharToWord(1, 0)
	require.True(t, found)
	assert.Equal(t, 0, word)
}

func TestValidate(t *testing.T) {
	e := newTestEncoding(3)
	e.AttentionMask = e.AttentionMask[:2]
	assert.True(t, errors.Is(e.Validate(), errs.ErrInternal))
}

func TestDirectionJSON(t *testing.T) {
	data, err := json.Marshal(Left)
	require.NoError(t, err)
	assert.Equal(t, `"Left"`, string(data))
	var d Direction
	require.NoError(t, json.Unmarshal([]byte(`"Right"`), &d))
	assert.Equal(t, Right, d)
	assert.True(t, errors.Is(json.Unmarshal([]byte(`"Up"`), &d), errs.ErrConfig))
}
