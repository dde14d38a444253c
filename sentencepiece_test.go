package tokenizers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

func makeSentencePieceModel(t *testing.T, addDummyPrefix bool) []byte {
	t.Helper()
	piece := func(content string, score float32, pieceType gosp.ModelProto_SentencePiece_Type) *gosp.ModelProto_SentencePiece {
		return &gosp.ModelProto_SentencePiece{Piece: proto.String(content), Score: proto.Float32(score), Type: pieceType.Enum()}
	}
	spModel := &gosp.ModelProto{
		Pieces: []*gosp.ModelProto_SentencePiece{
			piece("<unk>", 0, gosp.ModelProto_SentencePiece_UNKNOWN),
			piece("<s>", 0, gosp.ModelProto_SentencePiece_CONTROL),
			piece("</s>", 0, gosp.ModelProto_SentencePiece_CONTROL),
			piece("▁hello", -1, gosp.ModelProto_SentencePiece_NORMAL),
			piece("▁world", -1, gosp.ModelProto_SentencePiece_NORMAL),
			piece("hello", -1.5, gosp.ModelProto_SentencePiece_NORMAL),
			piece("▁", -2, gosp.ModelProto_SentencePiece_NORMAL),
			piece("<sep>", 0, gosp.ModelProto_SentencePiece_USER_DEFINED),
		},
		NormalizerSpec: &gosp.NormalizerSpec{AddDummyPrefix: proto.Bool(addDummyPrefix)},
	}
	data, err := proto.Marshal(spModel)
	require.NoError(t, err)
	return data
}

func TestFromSentencePiece(t *testing.T) {
	tk, err := FromSentencePiece(makeSentencePieceModel(t, true))
	require.NoError(t, err)
	assert.Equal(t, []string{"<unk>", "<s>", "</s>"}, tk.SpecialTokens())
	assert.False(t, tk.AddedTokens()[7].Special)

	tests := []struct {
		name       string
		str        string
		wantTokens []string
		wantIDs    []uint32
	}{
		{"words", "hello  world", []string{"▁hello", "▁world"}, []uint32{3, 4}},
		{"special token", "<s>hello", []string{"<s>", "▁hello"}, []uint32{1, 3}},
		{"user defined", "hello<sep>world", []string{"▁hello", "<sep>", "▁world"}, []uint32{3, 7, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := tk.Encode(Single(tt.str), true)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTokens, enc.Tokens)
			assert.Equal(t, tt.wantIDs, enc.IDs)
		})
	}

	decoded, err := tk.Decode([]uint32{1, 3, 4, 2}, true)
	require.NoError(t, err)
	assert.Equal(t, "hello world", decoded)

	// Without the dummy prefix, the first word is not prefixed by "▁".
	tk, err = FromSentencePiece(makeSentencePieceModel(t, false))
	require.NoError(t, err)
	enc, err := tk.Encode(Single("hello world"), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "▁world"}, enc.Tokens)
}

func TestFromSentencePieceFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "spm.model")
	require.NoError(t, os.WriteFile(filePath, makeSentencePieceModel(t, true), 0o644))
	tk, err := FromSentencePieceFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, 8, tk.GetVocabSize(true))

	// Converted tokenizers are saved in the tokenizer.json format.
	data, err := tk.ToJSON(false)
	require.NoError(t, err)
	loaded, err := FromBytes(data)
	require.NoError(t, err)
	enc, err := loaded.Encode(Single("hello world"), false)
	require.NoError(t, err)
	assert.Equal(t, []uint32{3, 4}, enc.IDs)

	_, err = FromSentencePieceFile(filepath.Join(t.TempDir(), "missing.model"))
	assert.True(t, errors.Is(err, errs.ErrIO))
	require.NoError(t, os.WriteFile(filePath, []byte("not a proto \xff\xff"), 0o644))
	_, err = FromSentencePieceFile(filePath)
	assert.True(t, errors.Is(err, errs.ErrModelLoad))
}
