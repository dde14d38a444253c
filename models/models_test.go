package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

// values and ids extracts the values and ids of toks.
func valuesAndIDs(toks []tokens.Token) ([]string, []uint32) {
	values := make([]string, len(toks))
	ids := make([]uint32, len(toks))
	for ii, tok := range toks {
		values[ii] = tok.Value
		ids[ii] = tok.ID
	}
	return values, ids
}

func offsetsOf(toks []tokens.Token) []tokens.Offsets {
	offsets := make([]tokens.Offsets, len(toks))
	for ii, tok := range toks {
		offsets[ii] = tok.Offsets
	}
	return offsets
}

func TestWordPiece(t *testing.T) {
	wp, err := NewWordPiece(Vocab{"a": 0, "b": 1, "ab": 2, "##c": 3, "[UNK]": 4}, DefaultWordPieceConfig())
	require.NoError(t, err)

	toks, err := wp.Tokenize("abc")
	require.NoError(t, err)
	values, ids := valuesAndIDs(toks)
	assert.Equal(t, []string{"ab", "##c"}, values)
	assert.Equal(t, []uint32{2, 3}, ids)
	assert.Equal(t, []tokens.Offsets{{Start: 0, End: 2}, {Start: 2, End: 3}}, offsetsOf(toks))

	// "d" can't be split: the whole word becomes unknown.
	toks, err = wp.Tokenize("abd")
	require.NoError(t, err)
	assert.Equal(t, []tokens.Token{tokens.NewToken(4, "[UNK]", tokens.Offsets{Start: 0, End: 3})}, toks)

	config := DefaultWordPieceConfig()
	config.MaxInputCharsPerWord = 2
	wp, err = NewWordPiece(Vocab{"abc": 0, "[UNK]": 1}, config)
	require.NoError(t, err)
	toks, err = wp.Tokenize("abc")
	require.NoError(t, err)
	assert.Equal(t, "[UNK]", toks[0].Value)

	wp, err = NewWordPiece(Vocab{"a": 0}, DefaultWordPieceConfig())
	require.NoError(t, err)
	_, err = wp.Tokenize("b")
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestWordLevel(t *testing.T) {
	wl, err := NewWordLevel(Vocab{"hello": 0, "<unk>": 1}, DefaultWordLevelUnkToken)
	require.NoError(t, err)
	toks, err := wl.Tokenize("hello")
	require.NoError(t, err)
	assert.Equal(t, []tokens.Token{tokens.NewToken(0, "hello", tokens.Offsets{Start: 0, End: 5})}, toks)
	toks, err = wl.Tokenize("wörld")
	require.NoError(t, err)
	assert.Equal(t, []tokens.Token{tokens.NewToken(1, "<unk>", tokens.Offsets{Start: 0, End: 5})}, toks)

	token, found := wl.IDToToken(1)
	assert.True(t, found)
	assert.Equal(t, "<unk>", token)
	_, found = wl.IDToToken(7)
	assert.False(t, found)
}

func newTestBPE(t *testing.T, config BPEConfig) *BPE {
	vocab := Vocab{"a": 0, "b": 1, "c": 2, "ab": 3, "abc": 4, "<unk>": 5, "bc": 6}
	merges := []Pair{{"a", "b"}, {"b", "c"}, {"ab", "c"}}
	bpe, err := NewBPE(vocab, merges, config)
	require.NoError(t, err)
	return bpe
}

func TestBPE(t *testing.T) {
	config := DefaultBPEConfig()
	config.UnkToken = "<unk>"
	bpe := newTestBPE(t, config)

	tests := []struct {
		word    string
		values  []string
		offsets []tokens.Offsets
	}{
		{"abc", []string{"abc"}, []tokens.Offsets{{Start: 0, End: 3}}},
		{"bcab", []string{"bc", "ab"}, []tokens.Offsets{{Start: 0, End: 2}, {Start: 2, End: 4}}},
		{"abbc", []string{"ab", "bc"}, []tokens.Offsets{{Start: 0, End: 2}, {Start: 2, End: 4}}},
		{"axxc", []string{"a", "<unk>", "<unk>", "c"}, []tokens.Offsets{{Start: 0, End: 1}, {Start: 1, End: 2}, {Start: 2, End: 3}, {Start: 3, End: 4}}},
		{"", []string{}, []tokens.Offsets{}},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			// Twice, to go through the cache.
			for range 2 {
				toks, err := bpe.Tokenize(tt.word)
				require.NoError(t, err)
				values, _ := valuesAndIDs(toks)
				assert.Equal(t, tt.values, values)
				assert.Equal(t, tt.offsets, offsetsOf(toks))
			}
		})
	}
}

func TestBPEDeterminism(t *testing.T) {
	withCache := newTestBPE(t, DefaultBPEConfig())
	noCacheConfig := DefaultBPEConfig()
	noCacheConfig.CacheCapacity = 0
	noCache := newTestBPE(t, noCacheConfig)
	for _, word := range []string{"abcabc", "cabbca", "aaabbbccc"} {
		first, err := withCache.Tokenize(word)
		require.NoError(t, err)
		second, err := withCache.Tokenize(word)
		require.NoError(t, err)
		third, err := noCache.Tokenize(word)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, first, third)
	}
	withCache.ClearCache()
}

func TestBPEOptions(t *testing.T) {
	t.Run("fuse unk", func(t *testing.T) {
		config := DefaultBPEConfig()
		config.UnkToken = "<unk>"
		config.FuseUnk = true
		toks, err := newTestBPE(t, config).Tokenize("axxc")
		require.NoError(t, err)
		values, _ := valuesAndIDs(toks)
		assert.Equal(t, []string{"a", "<unk>", "c"}, values)
		assert.Equal(t, tokens.Offsets{Start: 1, End: 3}, toks[1].Offsets)
	})

	t.Run("no unk drops unknown characters", func(t *testing.T) {
		toks, err := newTestBPE(t, DefaultBPEConfig()).Tokenize("axc")
		require.NoError(t, err)
		values, _ := valuesAndIDs(toks)
		assert.Equal(t, []string{"a", "c"}, values)
	})

	t.Run("dropout 1 skips every merge", func(t *testing.T) {
		config := DefaultBPEConfig()
		config.Dropout = 1
		toks, err := newTestBPE(t, config).Tokenize("abc")
		require.NoError(t, err)
		values, _ := valuesAndIDs(toks)
		assert.Equal(t, []string{"a", "b", "c"}, values)
	})

	t.Run("ignore merges", func(t *testing.T) {
		vocab := Vocab{"a": 0, "b": 1, "ab": 2, "ba": 3, "aba": 4}
		config := DefaultBPEConfig()
		config.IgnoreMerges = true
		bpe, err := NewBPE(vocab, []Pair{{"a", "b"}}, config)
		require.NoError(t, err)
		toks, err := bpe.Tokenize("aba")
		require.NoError(t, err)
		values, _ := valuesAndIDs(toks)
		assert.Equal(t, []string{"aba"}, values)
	})

	t.Run("continuing subword prefix", func(t *testing.T) {
		config := DefaultBPEConfig()
		config.ContinuingSubwordPrefix = "##"
		bpe, err := NewBPE(Vocab{"a": 0, "##b": 1, "ab": 2, "##c": 3}, []Pair{{"a", "##b"}}, config)
		require.NoError(t, err)
		toks, err := bpe.Tokenize("abc")
		require.NoError(t, err)
		values, _ := valuesAndIDs(toks)
		assert.Equal(t, []string{"ab", "##c"}, values)
	})

	t.Run("end of word suffix", func(t *testing.T) {
		config := DefaultBPEConfig()
		config.EndOfWordSuffix = "</w>"
		bpe, err := NewBPE(Vocab{"a": 0, "b</w>": 1, "ab</w>": 2}, []Pair{{"a", "b</w>"}}, config)
		require.NoError(t, err)
		toks, err := bpe.Tokenize("ab")
		require.NoError(t, err)
		values, _ := valuesAndIDs(toks)
		assert.Equal(t, []string{"ab</w>"}, values)
	})

	t.Run("byte fallback", func(t *testing.T) {
		config := DefaultBPEConfig()
		config.ByteFallback = true
		config.UnkToken = "<unk>"
		bpe, err := NewBPE(Vocab{"<unk>": 0, "a": 1, "<0xC3>": 2, "<0xA9>": 3}, nil, config)
		require.NoError(t, err)
		toks, err := bpe.Tokenize("aé")
		require.NoError(t, err)
		assert.Equal(t, []tokens.Token{
			tokens.NewToken(1, "a", tokens.Offsets{Start: 0, End: 1}),
			tokens.NewToken(2, "<0xC3>", tokens.Offsets{Start: 1, End: 2}),
			tokens.NewToken(3, "<0xA9>", tokens.Offsets{Start: 1, End: 2}),
		}, toks)
	})

	t.Run("invalid configurations", func(t *testing.T) {
		config := DefaultBPEConfig()
		config.UnkToken = "[UNK]"
		_, err := NewBPE(Vocab{"a": 0}, nil, config)
		assert.True(t, errors.Is(err, errs.ErrModelLoad))

		_, err = NewBPE(Vocab{"a": 0, "b": 1}, []Pair{{"a", "b"}}, DefaultBPEConfig())
		assert.True(t, errors.Is(err, errs.ErrModelLoad))

		config = DefaultBPEConfig()
		config.Dropout = 1.5
		_, err = NewBPE(Vocab{"a": 0}, nil, config)
		assert.True(t, errors.Is(err, errs.ErrConfig))

		_, err = NewBPE(Vocab{"a": 0, "b": 0}, nil, DefaultBPEConfig())
		assert.True(t, errors.Is(err, errs.ErrModelLoad))
	})
}

func TestParseMerges(t *testing.T) {
	merges, err := ParseMerges([]byte("#version: 0.2\na b\r\nab c\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []Pair{{"a", "b"}, {"ab", "c"}}, merges)

	_, err = ParseMerges([]byte("a b c\n"))
	assert.True(t, errors.Is(err, errs.ErrModelLoad))
}

func TestUnigram(t *testing.T) {
	u, err := NewUnigram([]UnigramPiece{{"ab", -1}, {"a", -2}, {"b", -2}}, -1, false)
	require.NoError(t, err)
	toks, err := u.Tokenize("ab")
	require.NoError(t, err)
	values, ids := valuesAndIDs(toks)
	assert.Equal(t, []string{"ab"}, values)
	assert.Equal(t, []uint32{0}, ids)

	_, err = u.Tokenize("abc")
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))

	u, err = NewUnigram([]UnigramPiece{{"<unk>", 0}, {"a", -1}, {"b", -1}, {"ab", -3}}, 0, false)
	require.NoError(t, err)
	pieces, err := u.Encode("abxxa")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "xx", "a"}, pieces)

	toks, err = u.Tokenize("abxxa")
	require.NoError(t, err)
	values, ids = valuesAndIDs(toks)
	assert.Equal(t, []string{"a", "b", "xx", "a"}, values)
	assert.Equal(t, []uint32{1, 2, 0, 1}, ids)
	assert.Equal(t, []tokens.Offsets{{Start: 0, End: 1}, {Start: 1, End: 2}, {Start: 2, End: 4}, {Start: 4, End: 5}}, offsetsOf(toks))

	_, err = NewUnigram([]UnigramPiece{{"a", 0}}, 3, false)
	assert.True(t, errors.Is(err, errs.ErrModelLoad))
}

func TestUnigramByteFallback(t *testing.T) {
	u, err := NewUnigram([]UnigramPiece{{"<unk>", 0}, {"a", -1}, {"<0xC3>", -5}, {"<0xA9>", -5}}, 0, true)
	require.NoError(t, err)
	toks, err := u.Tokenize("aé")
	require.NoError(t, err)
	assert.Equal(t, []tokens.Token{
		tokens.NewToken(1, "a", tokens.Offsets{Start: 0, End: 1}),
		tokens.NewToken(2, "<0xC3>", tokens.Offsets{Start: 1, End: 2}),
		tokens.NewToken(3, "<0xA9>", tokens.Offsets{Start: 1, End: 2}),
	}, toks)

	// Without the byte pieces, it falls back to the unknown token.
	toks, err = u.Tokenize("a😀")
	require.NoError(t, err)
	values, ids := valuesAndIDs(toks)
	assert.Equal(t, []string{"a", "😀"}, values)
	assert.Equal(t, []uint32{1, 0}, ids)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	bpe := newTestBPE(t, DefaultBPEConfig())
	files, err := bpe.Save(dir, "my")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "my-vocab.json"), filepath.Join(dir, "my-merges.txt")}, files)
	loadedBPE, err := BPEFromFiles(files[0], files[1], DefaultBPEConfig())
	require.NoError(t, err)
	assert.Equal(t, bpe.GetVocab(), loadedBPE.GetVocab())
	assert.Equal(t, bpe.Merges(), loadedBPE.Merges())

	wp, err := NewWordPiece(Vocab{"[UNK]": 0, "a": 1, "##b": 2}, DefaultWordPieceConfig())
	require.NoError(t, err)
	files, err = wp.Save(dir, "")
	require.NoError(t, err)
	contents, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "[UNK]\na\n##b\n", string(contents))
	loadedWP, err := WordPieceFromFile(files[0], DefaultWordPieceConfig())
	require.NoError(t, err)
	assert.Equal(t, wp.GetVocab(), loadedWP.GetVocab())

	wl, err := NewWordLevel(Vocab{"<unk>": 0, "x": 1}, "<unk>")
	require.NoError(t, err)
	files, err = wl.Save(dir, "wl")
	require.NoError(t, err)
	contents, err = os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, `{"<unk>":0,"x":1}`, string(contents))
	loadedWL, err := WordLevelFromFile(files[0], "<unk>")
	require.NoError(t, err)
	assert.Equal(t, wl.GetVocab(), loadedWL.GetVocab())

	u, err := NewUnigram([]UnigramPiece{{"<unk>", 0}, {"a", -1.5}}, 0, false)
	require.NoError(t, err)
	files, err = u.Save(dir, "")
	require.NoError(t, err)
	loadedU, err := UnigramFromFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, u.Pieces(), loadedU.Pieces())
	assert.Equal(t, 0, loadedU.UnkID())

	_, err = WordPieceFromFile(filepath.Join(dir, "missing.txt"), DefaultWordPieceConfig())
	assert.True(t, errors.Is(err, errs.ErrModelLoad))
	assert.True(t, errors.Is(err, errs.ErrIO))

	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	_, err = bpe.Save(filepath.Join(blocker, "sub"), "")
	assert.True(t, errors.Is(err, errs.ErrIO))
}

func TestJSON(t *testing.T) {
	bpeConfig := DefaultBPEConfig()
	bpeConfig.UnkToken = "<unk>"
	bpeConfig.Dropout = 0.5
	bpe := newTestBPE(t, bpeConfig)
	wp, err := NewWordPiece(Vocab{"[UNK]": 0, "a": 1}, DefaultWordPieceConfig())
	require.NoError(t, err)
	wl, err := NewWordLevel(Vocab{"<unk>": 0, "a": 1}, "<unk>")
	require.NoError(t, err)
	u, err := NewUnigram([]UnigramPiece{{"<unk>", 0}, {"a", -1.5}}, 0, true)
	require.NoError(t, err)

	for _, model := range []Model{bpe, wp, wl, u} {
		raw, err := ToJSON(model)
		require.NoError(t, err)
		parsed, err := FromJSON(raw)
		require.NoErrorf(t, err, "parsing %s", string(raw))
		assert.IsType(t, model, parsed)
		assert.Equal(t, model.GetVocab(), parsed.GetVocab())
		reserialized, err := ToJSON(parsed)
		require.NoError(t, err)
		assert.JSONEq(t, string(raw), string(reserialized))
	}

	// Legacy merges format and untagged model.
	parsed, err := FromJSON([]byte(`{"dropout":null,"unk_token":null,"vocab":{"a":0,"b":1,"ab":2},"merges":["a b"]}`))
	require.NoError(t, err)
	require.IsType(t, &BPE{}, parsed)
	assert.Equal(t, []Pair{{"a", "b"}}, parsed.(*BPE).Merges())

	parsed, err = FromJSON([]byte(`{"unk_id":null,"vocab":[["a",-1.0]]}`))
	require.NoError(t, err)
	assert.IsType(t, &Unigram{}, parsed)

	_, err = FromJSON([]byte(`{"type":"Nope","vocab":{}}`))
	assert.True(t, errors.Is(err, errs.ErrConfig))
	_, err = FromJSON([]byte(`null`))
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestUnigramFromSentencePiece(t *testing.T) {
	spModel := &gosp.ModelProto{
		Pieces: []*gosp.ModelProto_SentencePiece{
			{Piece: proto.String("<unk>"), Score: proto.Float32(0), Type: gosp.ModelProto_SentencePiece_UNKNOWN.Enum()},
			{Piece: proto.String("<s>"), Score: proto.Float32(0), Type: gosp.ModelProto_SentencePiece_CONTROL.Enum()},
			{Piece: proto.String("▁hello"), Score: proto.Float32(-1), Type: gosp.ModelProto_SentencePiece_NORMAL.Enum()},
			{Piece: proto.String("▁"), Score: proto.Float32(-2), Type: gosp.ModelProto_SentencePiece_NORMAL.Enum()},
		},
		NormalizerSpec: &gosp.NormalizerSpec{
			PrecompiledCharsmap: []byte{1, 2, 3},
			AddDummyPrefix:      proto.Bool(true),
		},
	}
	data, err := proto.Marshal(spModel)
	require.NoError(t, err)

	spm, err := UnigramFromSentencePiece(data)
	require.NoError(t, err)
	assert.Equal(t, 0, spm.Unigram.UnkID())
	assert.False(t, spm.ByteFallback)
	assert.True(t, spm.AddDummyPrefix)
	assert.Equal(t, []byte{1, 2, 3}, spm.PrecompiledCharsmap)
	assert.Equal(t, 4, spm.Unigram.GetVocabSize())
	assert.Equal(t, []string{"<unk>", "<s>"}, spm.ControlPieces)
	assert.Empty(t, spm.UserDefinedPieces)

	toks, err := spm.Unigram.Tokenize("▁hello")
	require.NoError(t, err)
	assert.Equal(t, []tokens.Token{tokens.NewToken(2, "▁hello", tokens.Offsets{Start: 0, End: 6})}, toks)

	_, err = UnigramFromSentencePiece([]byte("not a proto \xff\xff"))
	assert.True(t, errors.Is(err, errs.ErrModelLoad))
}
