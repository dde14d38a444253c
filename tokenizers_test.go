package tokenizers

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/gomlx/go-tokenizers/decoders"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/gomlx/go-tokenizers/processors"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/gomlx/go-tokenizers/trainers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSentence = "brown fox jumps over the lazy dog"

var testVocab = models.Vocab{
	"[PAD]": 0, "[UNK]": 1, "[CLS]": 2, "[SEP]": 3, "[MASK]": 4,
	"brown": 5, "fox": 6, "jump": 7, "##s": 8, "over": 9, "the": 10, "lazy": 11, "dog": 12,
	"k": 13, "##a": 14, "##se": 15, "!": 16, ",": 17, "hello": 18, "world": 19,
}

// newBertTokenizer builds a small BERT-like tokenizer: Bert normalizer and pre-tokenizer,
// WordPiece model, Bert post-processor and WordPiece decoder.
func newBertTokenizer(t testing.TB) *Tokenizer {
	t.Helper()
	model, err := models.NewWordPiece(testVocab, models.DefaultWordPieceConfig())
	require.NoError(t, err)
	return New(model).
		WithNormalizer(normalizers.NewBert()).
		WithPreTokenizer(pretokenizers.Bert{}).
		WithPostProcessor(processors.NewBert(processors.TokenID{Token: "[SEP]", ID: 3}, processors.TokenID{Token: "[CLS]", ID: 2})).
		WithDecoder(decoders.NewWordPiece()).
		WithSpecialTokens(tokens.SpecialTokens("[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]")...)
}

func TestEncode(t *testing.T) {
	tk := newBertTokenizer(t)
	tests := []struct {
		name       string
		str        string
		addSpecial bool
		wantIDs    []uint32
		wantTokens []string
	}{
		{
			name:       "without special tokens",
			str:        testSentence,
			addSpecial: false,
			wantIDs:    []uint32{5, 6, 7, 8, 9, 10, 11, 12},
			wantTokens: []string{"brown", "fox", "jump", "##s", "over", "the", "lazy", "dog"},
		},
		{
			name:       "with special tokens",
			str:        testSentence,
			addSpecial: true,
			wantIDs:    []uint32{2, 5, 6, 7, 8, 9, 10, 11, 12, 3},
			wantTokens: []string{"[CLS]", "brown", "fox", "jump", "##s", "over", "the", "lazy", "dog", "[SEP]"},
		},
		{
			name:       "unknown word",
			str:        "hello zebra",
			addSpecial: false,
			wantIDs:    []uint32{18, 1},
			wantTokens: []string{"hello", "[UNK]"},
		},
		{
			name:       "empty string with special tokens",
			str:        "",
			addSpecial: true,
			wantIDs:    []uint32{2, 3},
			wantTokens: []string{"[CLS]", "[SEP]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := tk.Encode(Single(tt.str), tt.addSpecial)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, enc.IDs)
			assert.Equal(t, tt.wantTokens, enc.Tokens)
			require.NoError(t, enc.Validate())
		})
	}

	t.Run("empty string", func(t *testing.T) {
		enc, err := tk.Encode(Single(""), false)
		require.NoError(t, err)
		assert.Empty(t, enc.IDs)
		assert.Empty(t, enc.Tokens)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := tk.Encode(EncodeInput{}, true)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInvalidInput))
	})
}

func TestEncodeOffsets(t *testing.T) {
	tk := newBertTokenizer(t)
	enc, err := tk.Encode(Single("Brown fox, Käse!"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"brown", "fox", ",", "k", "##a", "##se", "!"}, enc.Tokens)
	assert.Equal(t, []tokens.Offsets{
		{Start: 0, End: 5}, {Start: 6, End: 9}, {Start: 9, End: 10},
		{Start: 11, End: 12}, {Start: 12, End: 13}, {Start: 13, End: 15}, {Start: 15, End: 16},
	}, enc.Offsets)
	assert.Equal(t, []int{0, 1, 2, 3, 3, 3, 4}, enc.WordIDs)
	assert.Equal(t, []uint32{0, 0, 0, 0, 0, 0, 0}, enc.TypeIDs)
	assert.Equal(t, []uint32{1, 1, 1, 1, 1, 1, 1}, enc.AttentionMask)
}

func TestEncodeByteLevelOffsets(t *testing.T) {
	model, err := models.NewWordLevel(models.Vocab{"<unk>": 0, "Ġ": 1, "Ġhello": 2, "Ġworld": 3}, "<unk>")
	require.NoError(t, err)
	tk := New(model).
		WithPreTokenizer(pretokenizers.NewByteLevel()).
		WithPostProcessor(processors.NewByteLevel())

	enc, err := tk.Encode(Single("hello world"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ġhello", "Ġworld"}, enc.Tokens)
	assert.Equal(t, []tokens.Offsets{{Start: 0, End: 5}, {Start: 6, End: 11}}, enc.Offsets)

	enc, err = tk.Encode(Single("  hello"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ġ", "Ġhello"}, enc.Tokens)
	assert.Equal(t, tokens.Offsets{Start: 2, End: 7}, enc.Offsets[1])

	// Without trimming the offsets include the spaces.
	enc, err = tk.WithPostProcessor(&processors.ByteLevel{}).Encode(Single("hello world"), true)
	require.NoError(t, err)
	assert.Equal(t, []tokens.Offsets{{Start: 0, End: 5}, {Start: 5, End: 11}}, enc.Offsets)
}

func TestEncodePair(t *testing.T) {
	tk := newBertTokenizer(t)
	enc, err := tk.Encode(Pair("brown fox", "the dog"), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"[CLS]", "brown", "fox", "[SEP]", "the", "dog", "[SEP]"}, enc.Tokens)
	assert.Equal(t, []uint32{0, 0, 0, 0, 1, 1, 1}, enc.TypeIDs)
	assert.Equal(t, []uint32{1, 0, 0, 1, 0, 0, 1}, enc.SpecialTokensMask)
	assert.Equal(t, 2, enc.NSequences())

	// Offsets of the second sequence are relative to it.
	assert.Equal(t, tokens.Offsets{Start: 0, End: 3}, enc.Offsets[4])
	assert.Equal(t, tokens.Offsets{Start: 4, End: 7}, enc.Offsets[5])
}

func TestEncodeBatch(t *testing.T) {
	tk := newBertTokenizer(t).WithPadToLongest()
	results, err := tk.EncodeBatch([]EncodeInput{Single("brown fox"), Single("the lazy dog")}, true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []uint32{2, 5, 6, 3, 0}, results[0].IDs)
	assert.Equal(t, []string{"[CLS]", "brown", "fox", "[SEP]", "[PAD]"}, results[0].Tokens)
	assert.Equal(t, []uint32{1, 1, 1, 1, 0}, results[0].AttentionMask)
	assert.Equal(t, []uint32{2, 10, 11, 12, 3}, results[1].IDs)

	_, err = tk.EncodeBatch([]EncodeInput{Single("ok"), {}}, true)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestEncodeWithTruncation(t *testing.T) {
	tests := []struct {
		name       string
		addSpecial bool
		maxLen     int
		dir        Direction
		wantTokens []string
	}{
		{
			name:       "without special tokens, left truncation",
			maxLen:     5,
			dir:        Left,
			wantTokens: []string{"##s", "over", "the", "lazy", "dog"},
		},
		{
			name:       "without special tokens, right truncation",
			maxLen:     5,
			dir:        Right,
			wantTokens: []string{"brown", "fox", "jump", "##s", "over"},
		},
		{
			name:       "with special tokens, left truncation",
			addSpecial: true,
			maxLen:     5,
			dir:        Left,
			wantTokens: []string{"[CLS]", "the", "lazy", "dog", "[SEP]"},
		},
		{
			name:       "with special tokens, right truncation",
			addSpecial: true,
			maxLen:     5,
			dir:        Right,
			wantTokens: []string{"[CLS]", "brown", "fox", "jump", "[SEP]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultTruncationParams()
			params.MaxLength = tt.maxLen
			params.Direction = tt.dir
			tk, err := newBertTokenizer(t).WithTruncation(params)
			require.NoError(t, err)
			require.NotNil(t, tk.Truncation())
			assert.Equal(t, tt.maxLen, tk.Truncation().MaxLength)

			enc, err := tk.Encode(Single(testSentence), tt.addSpecial)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTokens, enc.Tokens)
			assert.NotEmpty(t, enc.Overflowing)

			// Checks reset of truncation.
			tk = tk.WithNoTruncation()
			assert.Nil(t, tk.Truncation())
			enc, err = tk.Encode(Single(testSentence), tt.addSpecial)
			require.NoError(t, err)
			assert.Greater(t, enc.Len(), tt.maxLen)
		})
	}
}

func TestTruncationPairs(t *testing.T) {
	tk := newBertTokenizer(t)
	params := DefaultTruncationParams()
	params.MaxLength = 5
	tk, err := tk.WithTruncation(params)
	require.NoError(t, err)

	enc, err := tk.Encode(Pair("brown fox jumps over", "the lazy dog"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"brown", "fox", "jump", "the", "lazy"}, enc.Tokens)

	params.Strategy = TruncateOnlySecond
	tk, err = tk.WithTruncation(params)
	require.NoError(t, err)
	_, err = tk.Encode(Single(testSentence), false)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput), "OnlySecond requires a pair: %v", err)

	params.Strategy = TruncateOnlyFirst
	tk, err = tk.WithTruncation(params)
	require.NoError(t, err)
	enc, err = tk.Encode(Pair(testSentence, "the dog"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"brown", "fox", "jump", "the", "dog"}, enc.Tokens)
}

func TestTruncationParamsErrors(t *testing.T) {
	tk := newBertTokenizer(t)
	_, err := tk.WithTruncation(TruncationParams{MaxLength: 4, Stride: 2})
	assert.True(t, errors.Is(err, errs.ErrConfig), "stride must be smaller than 4-2 special tokens: %v", err)
	_, err = tk.WithTruncation(TruncationParams{MaxLength: 1})
	assert.True(t, errors.Is(err, errs.ErrConfig), "max length smaller than the special tokens: %v", err)
	_, err = tk.WithTruncation(TruncationParams{MaxLength: 10, Stride: -1})
	assert.True(t, errors.Is(err, errs.ErrConfig))
	_, err = tk.WithTruncation(TruncationParams{MaxLength: 4, Stride: 1})
	assert.NoError(t, err)
}

func TestEncodeWithPadding(t *testing.T) {
	tests := []struct {
		name       string
		configure  func(tk *Tokenizer) *Tokenizer
		addSpecial bool
		wantIDs    []uint32
		wantTokens []string
	}{
		{
			name:       "fixed length, left padding",
			configure:  func(tk *Tokenizer) *Tokenizer { return tk.WithPadToLength(10).WithPaddingDirection(Left) },
			wantIDs:    []uint32{0, 0, 5, 6, 7, 8, 9, 10, 11, 12},
			wantTokens: []string{"[PAD]", "[PAD]", "brown", "fox", "jump", "##s", "over", "the", "lazy", "dog"},
		},
		{
			name:       "with special tokens, right padding, multiple of 4",
			configure:  func(tk *Tokenizer) *Tokenizer { return tk.WithPaddingToMultipleOf(4).WithPadToken("[MASK]", 4) },
			addSpecial: true,
			wantIDs:    []uint32{2, 5, 6, 7, 8, 9, 10, 11, 12, 3, 4, 4},
			wantTokens: []string{"[CLS]", "brown", "fox", "jump", "##s", "over", "the", "lazy", "dog", "[SEP]", "[MASK]", "[MASK]"},
		},
		{
			name:       "fixed length shorter than the encoding",
			configure:  func(tk *Tokenizer) *Tokenizer { return tk.WithPadToLength(3) },
			wantIDs:    []uint32{5, 6, 7, 8, 9, 10, 11, 12},
			wantTokens: []string{"brown", "fox", "jump", "##s", "over", "the", "lazy", "dog"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := tt.configure(newBertTokenizer(t))
			require.NotNil(t, tk.Padding())
			enc, err := tk.Encode(Single(testSentence), tt.addSpecial)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, enc.IDs)
			assert.Equal(t, tt.wantTokens, enc.Tokens)

			// Checks reset of padding.
			tk = tk.WithNoPadding()
			assert.Nil(t, tk.Padding())
		})
	}

	assert.Panics(t, func() { newBertTokenizer(t).WithPadToLength(0) })
}

// newAddedTokensTokenizer adds a special token "[NEW]" matched on the raw text, and two
// normalized tokens, "wolf" and the single word "ox".
func newAddedTokensTokenizer(t testing.TB) *Tokenizer {
	return newBertTokenizer(t).
		WithSpecialTokens(tokens.NewAddedToken("[NEW]", true).WithLStrip(true)).
		WithAddedTokens(tokens.NewAddedToken("wolf", false), tokens.NewAddedToken("ox", false).WithSingleWord(true))
}

func TestAddedTokens(t *testing.T) {
	base := newBertTokenizer(t)
	tk := newAddedTokensTokenizer(t)

	assert.Equal(t, 20, tk.GetVocabSize(false))
	assert.Equal(t, 23, tk.GetVocabSize(true))
	for content, wantID := range map[string]uint32{"[NEW]": 20, "wolf": 21, "ox": 22, "[CLS]": 2} {
		id, found := tk.TokenToID(content)
		require.True(t, found, content)
		assert.Equal(t, wantID, id, content)
		token, found := tk.IDToToken(wantID)
		require.True(t, found)
		assert.Equal(t, content, token)
	}
	_, found := base.TokenToID("wolf")
	assert.False(t, found, "the original tokenizer must not be modified")
	assert.Equal(t, []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]", "[NEW]"}, tk.SpecialTokens())
	assert.Equal(t, 23, len(tk.GetVocab(true)))
	assert.True(t, tk.AddedTokens()[20].Special)
	assert.True(t, tk.AddedTokens()[22].SingleWord)

	enc, err := tk.Encode(Single("The [NEW] WOLF ox fox"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "[NEW]", "wolf", "ox", "fox"}, enc.Tokens)
	assert.Equal(t, []uint32{10, 20, 21, 22, 6}, enc.IDs)
	assert.Equal(t, []tokens.Offsets{
		{Start: 0, End: 3}, {Start: 3, End: 9}, {Start: 10, End: 14}, {Start: 15, End: 17}, {Start: 18, End: 21},
	}, enc.Offsets)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, enc.WordIDs)

	// Re-adding a token updates its flags but keeps its id.
	tk2 := tk.WithAddedTokens(tokens.NewAddedToken("ox", false))
	id, _ := tk2.TokenToID("ox")
	assert.Equal(t, uint32(22), id)
	enc, err = tk2.Encode(Single("fox"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"[UNK]", "ox"}, enc.Tokens)
}

func TestDecode(t *testing.T) {
	tk := newAddedTokensTokenizer(t)
	tests := []struct {
		name        string
		ids         []uint32
		skipSpecial bool
		want        string
	}{
		{"words", []uint32{5, 6, 7, 8}, false, "brown fox jumps"},
		{"punctuation", []uint32{18, 17, 19, 16}, false, "hello, world!"},
		{"special tokens", []uint32{2, 10, 20, 21, 3}, false, "[CLS] the [NEW] wolf [SEP]"},
		{"skip special tokens", []uint32{2, 10, 20, 21, 3}, true, "the wolf"},
		{"unknown ids are skipped", []uint32{5, 1000, 6}, false, "brown fox"},
		{"empty", nil, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tk.Decode(tt.ids, tt.skipSpecial)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("batch", func(t *testing.T) {
		got, err := tk.DecodeBatch([][]uint32{{5, 6}, {10, 12}}, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"brown fox", "the dog"}, got)
	})

	t.Run("without decoder", func(t *testing.T) {
		got, err := tk.WithDecoder(nil).Decode([]uint32{5, 7, 8}, false)
		require.NoError(t, err)
		assert.Equal(t, "brown jump ##s", got)
	})

	t.Run("round trip", func(t *testing.T) {
		enc, err := tk.Encode(Single(testSentence), true)
		require.NoError(t, err)
		got, err := tk.Decode(enc.IDs, true)
		require.NoError(t, err)
		assert.Equal(t, testSentence, got)
	})
}

func TestCopyOnWrite(t *testing.T) {
	tk := newBertTokenizer(t).WithPadToLength(12)
	noPad := tk.WithNoPadding()
	assert.NotNil(t, tk.Padding())
	assert.Nil(t, noPad.Padding())

	noDecoder := tk.WithDecoder(nil)
	assert.NotNil(t, tk.Decoder())
	assert.Nil(t, noDecoder.Decoder())
	assert.Same(t, tk.Model(), noDecoder.Model())

	// Modifying the returned parameters doesn't change the tokenizer.
	params := tk.Padding()
	params.Length = 100
	assert.Equal(t, 12, tk.Padding().Length)
	assert.Contains(t, tk.String(), "PaddingLength=12")
}

func TestJSON(t *testing.T) {
	params := DefaultTruncationParams()
	params.MaxLength = 16
	params.Stride = 2
	tk, err := newAddedTokensTokenizer(t).WithTruncation(params)
	require.NoError(t, err)
	tk = tk.WithPadToLength(20).WithPaddingToMultipleOf(8)

	data, err := tk.ToJSON(false)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version":"1.0"`)
	assert.Contains(t, string(data), `"strategy":{"Fixed":20}`)
	assert.Contains(t, string(data), `"strategy":"LongestFirst"`)
	assert.Contains(t, string(data), `{"id":20,"content":"[NEW]"`)

	loaded, err := FromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, tk.Truncation(), loaded.Truncation())
	assert.Equal(t, tk.Padding(), loaded.Padding())
	assert.Equal(t, tk.AddedTokens(), loaded.AddedTokens())

	reserialized, err := loaded.ToJSON(false)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(reserialized))

	const text = "The [NEW] wolf jumps, over the lazy dog!"
	want, err := tk.Encode(Pair(text, "hello world"), true)
	require.NoError(t, err)
	got, err := loaded.Encode(Pair(text, "hello world"), true)
	require.NoError(t, err)
	assert.Equal(t, want.IDs, got.IDs)
	assert.Equal(t, want.Offsets, got.Offsets)
	assert.Equal(t, want.TypeIDs, got.TypeIDs)

	t.Run("save and load", func(t *testing.T) {
		filePath := t.TempDir() + "/tokenizer.json"
		require.NoError(t, tk.Save(filePath, true))
		fromFile, err := FromFile(filePath)
		require.NoError(t, err)
		got, err := fromFile.Encode(Single(text), true)
		require.NoError(t, err)
		want, err := tk.Encode(Single(text), true)
		require.NoError(t, err)
		assert.Equal(t, want.IDs, got.IDs)

		withExtra, err := FromFileWithSpecialTokens(filePath, tokens.NewAddedToken("<extra>", true))
		require.NoError(t, err)
		id, found := withExtra.TokenToID("<extra>")
		require.True(t, found)
		assert.Equal(t, uint32(23), id)

		fromReader, err := FromReader(strings.NewReader(string(data)))
		require.NoError(t, err)
		assert.Equal(t, tk.GetVocabSize(true), fromReader.GetVocabSize(true))
	})

	t.Run("errors", func(t *testing.T) {
		for name, contents := range map[string]string{
			"not json":         "I_am_not_json",
			"missing model":    `{"version":"1.0"}`,
			"unknown model":    `{"model":{"type":"Magic"}}`,
			"unknown strategy": `{"model":{"type":"WordLevel","vocab":{},"unk_token":"<unk>"},"truncation":{"max_length":3,"stride":0,"strategy":"Magic","direction":"Right"}}`,
		} {
			_, err := FromBytes([]byte(contents))
			assert.True(t, errors.Is(err, errs.ErrConfig), "%s: %v", name, err)
		}
		_, err := FromFile(t.TempDir() + "/non-existent.json")
		assert.True(t, errors.Is(err, errs.ErrIO))
	})
}

func TestDecodeStream(t *testing.T) {
	t.Run("word piece", func(t *testing.T) {
		tk := newBertTokenizer(t)
		enc, err := tk.Encode(Single("brown fox jumps, hello"), false)
		require.NoError(t, err)

		stream := tk.NewDecodeStream(false)
		var chunks []string
		for _, id := range enc.IDs {
			chunk, ready, err := stream.Step(id)
			require.NoError(t, err)
			if ready {
				chunks = append(chunks, chunk)
			}
		}
		assert.Equal(t, []string{"brown", " fox", " jump", "s", ",", " hello"}, chunks)
		full, err := tk.Decode(enc.IDs, false)
		require.NoError(t, err)
		assert.Equal(t, full, strings.Join(chunks, ""))

		stream.Reset()
		chunk, ready, err := stream.Step(19)
		require.NoError(t, err)
		assert.True(t, ready)
		assert.Equal(t, "world", chunk)
	})

	t.Run("byte fallback", func(t *testing.T) {
		pieces := []models.UnigramPiece{
			{Piece: "<unk>", Score: 0}, {Piece: "<0xE2>", Score: -1}, {Piece: "<0x82>", Score: -1},
			{Piece: "<0xAC>", Score: -1}, {Piece: "a", Score: -2},
		}
		model, err := models.NewUnigram(pieces, 0, true)
		require.NoError(t, err)
		tk := New(model).WithDecoder(decoders.NewSequence(decoders.ByteFallback{}, decoders.Fuse{}))

		stream := tk.NewDecodeStream(false)
		type step struct {
			id    uint32
			chunk string
			ready bool
		}
		for ii, s := range []step{{1, "", false}, {2, "", false}, {3, "€", true}, {4, "a", true}} {
			chunk, ready, err := stream.Step(s.id)
			require.NoError(t, err)
			assert.Equal(t, s.ready, ready, "step %d", ii)
			assert.Equal(t, s.chunk, chunk, "step %d", ii)
		}
	})
}

func TestTrain(t *testing.T) {
	corpus := []string{"the cat sat", "the cat ran", "a dog sat"}
	model, err := models.NewWordLevel(nil, "<unk>")
	require.NoError(t, err)
	base := New(model).WithNormalizer(normalizers.Lowercase{}).WithPreTokenizer(pretokenizers.WhitespaceSplit{})

	newTrainer := func() *trainers.WordLevel {
		trainer := trainers.NewWordLevel()
		trainer.ShowProgress = false
		trainer.SpecialTokens = tokens.SpecialTokens("<unk>")
		return trainer
	}

	trained, err := base.Train(newTrainer(), slices.Values(corpus))
	require.NoError(t, err)
	assert.Equal(t, 0, base.Model().GetVocabSize(), "the original model must not be modified")
	enc, err := trained.Encode(Single("The CAT flew"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "cat", "<unk>"}, enc.Tokens)
	assert.Equal(t, []string{"<unk>"}, trained.SpecialTokens())

	filePath := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(filePath, []byte(strings.Join(corpus, "\n")+"\n"), 0o644))
	fromFiles, err := base.TrainFromFiles(newTrainer(), filePath)
	require.NoError(t, err)
	assert.Equal(t, trained.GetVocab(true), fromFiles.GetVocab(true))

	_, err = base.TrainFromFiles(newTrainer(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, errors.Is(err, errs.ErrIO))
}

func TestFromPretrained(t *testing.T) {
	tk := newBertTokenizer(t)
	cacheDir := t.TempDir()
	repoDir := filepath.Join(cacheDir, RepoFolderName("org/tiny-bert", "model"))
	snapshotDir := filepath.Join(repoDir, "snapshots", "abc123")
	require.NoError(t, os.MkdirAll(snapshotDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(repoDir, "refs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "refs", "main"), []byte("abc123\n"), 0o644))
	require.NoError(t, tk.Save(filepath.Join(snapshotDir, tokenizerFileName), false))
	require.NoError(t, os.WriteFile(filepath.Join(snapshotDir, specialTokensMapFileName), []byte(
		`{"cls_token": "[CLS]", "mask_token": {"content": "<mask>", "lstrip": true}, "additional_special_tokens": ["<x>", "<y>"]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(snapshotDir, addedTokensFileName), []byte(`{"<z>": 40}`), 0o644))

	assert.Equal(t, "models--org--tiny-bert", RepoFolderName("org/tiny-bert", "model"))

	loaded, err := FromPretrainedWith("org/tiny-bert").CacheDir(cacheDir).Done()
	require.NoError(t, err)
	for content, wantID := range map[string]uint32{"[CLS]": 2, "<x>": 20, "<y>": 21, "<mask>": 22, "<z>": 40} {
		id, found := loaded.TokenToID(content)
		require.True(t, found, content)
		assert.Equal(t, wantID, id, content)
	}
	assert.True(t, loaded.AddedTokens()[22].LStrip)
	assert.True(t, loaded.AddedTokens()[22].Special)
	assert.False(t, loaded.AddedTokens()[40].Special)

	// Same, using the commit hash as the revision.
	_, err = FromPretrainedWith("org/tiny-bert").CacheDir(cacheDir).Revision("abc123").Done()
	require.NoError(t, err)

	// Local directory.
	local, err := FromPretrained(snapshotDir)
	require.NoError(t, err)
	assert.Equal(t, loaded.GetVocabSize(true), local.GetVocabSize(true))

	_, err = FromPretrainedWith("org/tiny-bert").CacheDir(cacheDir).Revision("v2").Done()
	assert.True(t, errors.Is(err, errs.ErrIO), "missing revision: %v", err)
	_, err = FromPretrainedWith("org/unknown").CacheDir(cacheDir).Done()
	assert.True(t, errors.Is(err, errs.ErrIO))
}

func TestDefaultCacheDir(t *testing.T) {
	t.Setenv("HF_HUB_CACHE", "")
	t.Setenv("HF_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "huggingface", "hub"), DefaultCacheDir())
	t.Setenv("HF_HOME", "/tmp/hf")
	assert.Equal(t, filepath.Join("/tmp/hf", "hub"), DefaultCacheDir())
	t.Setenv("HF_HUB_CACHE", "/tmp/hub")
	assert.Equal(t, "/tmp/hub", DefaultCacheDir())
}

func BenchmarkEncodeNTimes(b *testing.B) {
	tk := newBertTokenizer(b)
	input := Single(strings.Repeat(testSentence+", ", 20))
	b.ResetTimer()
	for range b.N {
		if _, err := tk.Encode(input, true); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeNTimes(b *testing.B) {
	tk := newBertTokenizer(b)
	enc, err := tk.Encode(Single(strings.Repeat(testSentence+", ", 20)), true)
	require.NoError(b, err)
	b.ResetTimer()
	for range b.N {
		if _, err := tk.Decode(enc.IDs, true); err != nil {
			b.Fatal(err)
		}
	}
}
