package decoders

import (
	"testing"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	replaceRegex, err := NewReplaceRegex(`\s+`, " ")
	require.NoError(t, err)
	metaspaceNever := NewMetaspace()
	metaspaceNever.PrependScheme = pretokenizers.PrependNever

	tests := []struct {
		name    string
		decoder Decoder
		tokens  []string
		want    string
	}{
		{"bpe", NewBPE(DefaultBPESuffix), []string{"hello</w>", "wor", "ld</w>"}, "hello world"},
		{"byte level", NewByteLevel(), []string{"Hello", "Ġmy", "Ġfriend", ",", "ĠÃ©"}, "Hello my friend, é"},
		{"byte level incomplete", NewByteLevel(), []string{"Ġa", "Ã"}, " a�"},
		{"byte level foreign token", NewByteLevel(), []string{"Ġa", "日本"}, " a日本"},
		{"wordpiece", NewWordPiece(), []string{"i", "like", "play", "##ing", "."}, "i like playing."},
		{"wordpiece no cleanup", &WordPiece{Prefix: "##"}, []string{"i", "like", "play", "##ing", "."}, "i like playing ."},
		{"metaspace", NewMetaspace(), []string{"▁Hey", "▁friend!", "▁▁x"}, "Hey friend!  x"},
		{"metaspace first token spaces", NewMetaspace(), []string{"▁▁Hey", "▁x"}, " Hey x"},
		{"metaspace first token unprefixed", NewMetaspace(), []string{"Hey", "▁x"}, "Hey x"},
		{"metaspace never", metaspaceNever, []string{"▁Hey", "▁friend!"}, " Hey friend!"},
		{"ctc", NewCTC(), []string{"<pad>", "h", "h", "e", "l", "l", "<pad>", "l", "o", "|", "w", "o", "r", "l", "d"}, "hello world"},
		{"fuse", Fuse{}, []string{"a", "b", "c"}, "abc"},
		{"byte fallback", ByteFallback{}, []string{"a", "<0xE2>", "<0x82>", "<0xAC>", "b"}, "a€b"},
		{"byte fallback invalid", ByteFallback{}, []string{"<0xE2>", "<0x82>", "a", "<0xZZ>"}, "��a<0xZZ>"},
		{"strip", NewStrip('_', 1, 2), []string{"__a__", "___", "b"}, "_ab"},
		{"replace", NewReplace("▁", " "), []string{"▁a", "b▁"}, " ab "},
		{"replace regex", replaceRegex, []string{"a \t b"}, "a b"},
		{"sequence", NewSequence(NewReplace("▁", " "), ByteFallback{}, Fuse{}, NewStrip(' ', 1, 0)),
			[]string{"▁Hey", "<0xE2>", "<0x82>", "<0xAC>", "▁there"}, "Hey€ there"},
		{"empty", NewWordPiece(), []string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.decoder, tt.tokens)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanup(t *testing.T) {
	for input, want := range map[string]string{
		"hello , world !": "hello, world!",
		"i do not know .": "i don't know.",
		"it ' s they 're": "it's they're",
		// " ' " becomes "'", then " 'm" matches.
		"a  ' m": "a'm",
	} {
		assert.Equal(t, want, Cleanup(input), input)
	}
}

func TestLossyUTF8(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{[]byte("abc"), "abc"},
		{[]byte{0xE2, 0x82}, "�"},
		{[]byte{0xFF, 0xFF}, "��"},
		{[]byte{'a', 0xE2, 0x82, 'b'}, "a�b"},
		{[]byte{0xE0, 0x80, 'x'}, "��x"},
		{[]byte{0xF0, 0x9F, 0x98}, "�"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lossyUTF8(tt.input), "lossyUTF8(%v)", tt.input)
	}
}

func TestJSON(t *testing.T) {
	replaceRegex, err := NewReplaceRegex(`\s+`, " ")
	require.NoError(t, err)
	for _, decoder := range []Decoder{
		NewBPE(DefaultBPESuffix),
		NewByteLevel(),
		NewWordPiece(),
		&WordPiece{Prefix: "@@", Cleanup: false},
		NewMetaspace(),
		NewCTC(),
		NewReplace("▁", " "),
		replaceRegex,
		Fuse{},
		ByteFallback{},
		NewStrip(' ', 1, 0),
		NewSequence(NewReplace("▁", " "), ByteFallback{}, Fuse{}),
		nil,
	} {
		raw, err := ToJSON(decoder)
		require.NoError(t, err)
		parsed, err := FromJSON(raw)
		require.NoErrorf(t, err, "parsing %s", raw)
		assert.Equal(t, decoder, parsed, "round trip of %s", raw)
	}

	raw, err := ToJSON(NewStrip(' ', 1, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Strip","content":" ","start":1,"stop":0}`, string(raw))

	// Legacy Metaspace decoder.
	parsed, err := FromJSON([]byte(`{"type":"Metaspace","replacement":"▁","add_prefix_space":false}`))
	require.NoError(t, err)
	assert.Equal(t, pretokenizers.PrependNever, parsed.(*Metaspace).PrependScheme)

	_, err = FromJSON([]byte(`{"type":"Strip","content":"ab","start":1,"stop":0}`))
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
	_, err = FromJSON([]byte(`{"type":"Replace","content":""}`))
	assert.True(t, errors.Is(err, errs.ErrConfig))
	_, err = FromJSON([]byte(`{"type":"Unknown"}`))
	assert.True(t, errors.Is(err, errs.ErrConfig))
	_, err = FromJSON([]byte(`{"type":"Sequence","decoders":[null]}`))
	assert.True(t, errors.Is(err, errs.ErrConfig))
}
