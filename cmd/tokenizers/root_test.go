package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

// run executes the command line with args and stdin, returning what was written to the output.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNewRootCmdHasExpectedSubcommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	for _, name := range []string{"encode", "decode", "train", "info", "convert-spm"} {
		assert.Contains(t, names, name)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("tokenizer-path"))
}

// trainWordLevel trains a WordLevel tokenizer with the vocabulary:
// "<unk>": 0, "sat": 1, "the": 2, "cat": 3, "dog": 4.
func trainWordLevel(t *testing.T) string {
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus.txt")
	require.NoError(t, os.WriteFile(corpus, []byte("the cat sat\nthe dog sat\n"), 0o644))
	tokenizerPath := filepath.Join(dir, "tokenizer.json")
	_, err := run(t, "", "train", "--train-model=wordlevel", "--train-show-progress=false",
		"--output", tokenizerPath, corpus)
	require.NoError(t, err)
	return tokenizerPath
}

func TestTrainEncodeDecode(t *testing.T) {
	tokenizerPath := trainWordLevel(t)
	pathFlag := "--tokenizer-path=" + tokenizerPath

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"encode tokens", "", []string{"encode", pathFlag, "the cat", "a dog"}, "the cat\n<unk> dog\n"},
		{"encode ids", "", []string{"encode", pathFlag, "--encode-output=ids", "the cat"}, "2 3\n"},
		{"encode stdin", "the dog\n\nsat\n", []string{"encode", pathFlag}, "the dog\nsat\n"},
		{"encode padded", "", []string{"encode", pathFlag, "--encode-output=ids", "--encode-pad-to-length=4", "the cat"}, "2 3 0 0\n"},
		{"encode truncated", "", []string{"encode", pathFlag, "--encode-max-length=1", "the cat"}, "the\n"},
		{"encode pair", "", []string{"encode", pathFlag, "--pair=sat", "the cat"}, "the cat sat\n"},
		{"decode", "", []string{"decode", pathFlag, "2", "3", "1"}, "the cat sat\n"},
		{"decode stdin", "2 4\n3\n", []string{"decode", pathFlag}, "the dog\ncat\n"},
		{"decode stream", "", []string{"decode", pathFlag, "--stream", "2", "3"}, "the cat\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, tt.stdin, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("encode json", func(t *testing.T) {
		got, err := run(t, "", "encode", pathFlag, "--encode-output=json", "the cat")
		require.NoError(t, err)
		assert.JSONEq(t, `{"ids":[2,3],"type_ids":[0,0],"tokens":["the","cat"],
			"offsets":[[0,3],[4,7]],"word_ids":[0,1],"special_tokens_mask":[0,0],
			"attention_mask":[1,1],"overflowing":0}`, got)
	})

	t.Run("info", func(t *testing.T) {
		got, err := run(t, "", "info", pathFlag)
		require.NoError(t, err)
		assert.Contains(t, got, "Vocabulary size: 5 (5 with added tokens)")
		assert.Contains(t, got, "Special tokens: <unk>")
	})
}

func TestConvertSPM(t *testing.T) {
	piece := func(content string, score float32, pieceType gosp.ModelProto_SentencePiece_Type) *gosp.ModelProto_SentencePiece {
		return &gosp.ModelProto_SentencePiece{Piece: proto.String(content), Score: proto.Float32(score), Type: pieceType.Enum()}
	}
	data, err := proto.Marshal(&gosp.ModelProto{
		Pieces: []*gosp.ModelProto_SentencePiece{
			piece("<unk>", 0, gosp.ModelProto_SentencePiece_UNKNOWN),
			piece("▁hello", -1, gosp.ModelProto_SentencePiece_NORMAL),
			piece("▁world", -1, gosp.ModelProto_SentencePiece_NORMAL),
		},
		NormalizerSpec: &gosp.NormalizerSpec{AddDummyPrefix: proto.Bool(true)},
	})
	require.NoError(t, err)

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "spm.model")
	require.NoError(t, os.WriteFile(modelPath, data, 0o644))
	outputPath := filepath.Join(dir, "tokenizer.json")
	_, err = run(t, "", "convert-spm", modelPath, outputPath)
	require.NoError(t, err)

	got, err := run(t, "", "encode", "--tokenizer-path="+outputPath, "hello world")
	require.NoError(t, err)
	assert.Equal(t, "▁hello ▁world\n", got)
}

func TestErrors(t *testing.T) {
	tokenizerPath := trainWordLevel(t)
	tests := []struct {
		name string
		args []string
		kind error
	}{
		{"no tokenizer", []string{"encode", "text"}, errs.ErrConfig},
		{"missing tokenizer", []string{"info", "--tokenizer-path=" + filepath.Join(t.TempDir(), "missing")}, errs.ErrIO},
		{"invalid id", []string{"decode", "--tokenizer-path=" + tokenizerPath, "x"}, errs.ErrInvalidInput},
		{"invalid config", []string{"info", "--encode-output=xml"}, errs.ErrConfig},
		{"invalid stride", []string{"encode", "--tokenizer-path=" + tokenizerPath, "--encode-max-length=2", "--encode-stride=2", "text"}, errs.ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestSetupLoggerDoesNotPanic(_ *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "not-a-level"} {
		setupLogger(io.Discard, level, "text")
		setupLogger(io.Discard, level, "json")
	}
}
