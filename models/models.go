// Package models implements the third stage of the tokenization pipeline: splitting each
// pre-tokenized word into tokens of a vocabulary.
//
// The set of models is closed: BPE, WordPiece, WordLevel and Unigram. Models are immutable
// once built, and safe for concurrent use. They can be serialized with ToJSON and FromJSON,
// following the HuggingFace tokenizer.json format, or saved to the per-model vocabulary
// files with Model.Save.
package models

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/fsutil"
	"github.com/gomlx/go-tokenizers/internal/jsonutil"
	"github.com/gomlx/go-tokenizers/tokens"
)

// Model converts words into tokens of its vocabulary.
type Model interface {
	// Tokenize splits word into tokens. Offsets are character offsets within word.
	Tokenize(word string) ([]tokens.Token, error)

	// TokenToID returns the id of token, and whether it is in the vocabulary.
	TokenToID(token string) (uint32, bool)

	// IDToToken returns the token with the given id, and whether it is in the vocabulary.
	IDToToken(id uint32) (string, bool)

	// GetVocab returns a copy of the vocabulary.
	GetVocab() map[string]uint32

	// GetVocabSize returns the number of entries in the vocabulary.
	GetVocabSize() int

	// Save writes the files needed to rebuild the model to dir. If prefix is not empty,
	// the files are named "<prefix>-<name>". It returns the paths of the written files.
	Save(dir, prefix string) ([]string, error)

	// isModel restricts implementations to this package.
	isModel()
}

// Vocab maps tokens to ids.
type Vocab map[string]uint32

// reverse returns the id to token mapping. It fails if two tokens share an id.
func (v Vocab) reverse() (map[uint32]string, error) {
	r := make(map[uint32]string, len(v))
	for token, id := range v {
		if other, found := r[id]; found {
			return nil, errs.Errorf(errs.ErrModelLoad, "tokens %q and %q share the id %d", other, token, id)
		}
		r[id] = token
	}
	return r, nil
}

// clone returns a copy of the vocabulary.
func (v Vocab) clone() map[string]uint32 {
	c := make(map[string]uint32, len(v))
	for token, id := range v {
		c[token] = id
	}
	return c
}

// orderedTokens returns the tokens sorted by id.
func (v Vocab) orderedTokens() []string {
	ordered := make([]string, 0, len(v))
	for token := range v {
		ordered = append(ordered, token)
	}
	sort.Slice(ordered, func(i, j int) bool { return v[ordered[i]] < v[ordered[j]] })
	return ordered
}

// MarshalJSON implements json.Marshaler, writing the entries ordered by id, as
// in the HuggingFace vocab.json files.
func (v Vocab) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for ii, token := range v.orderedTokens() {
		if ii > 0 {
			buf.WriteByte(',')
		}
		key, err := jsonutil.Marshal(token)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatUint(uint64(v[token]), 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// savePath returns the path of the file name in dir, with the optional prefix.
func savePath(dir, prefix, name string) string {
	if prefix != "" {
		name = prefix + "-" + name
	}
	return filepath.Join(dir, name)
}

// parseVocabJSON parses a vocab.json file contents.
func parseVocabJSON(data []byte, source string) (Vocab, error) {
	var vocab Vocab
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, errs.Wrap(errs.ErrModelLoad, err, "parsing vocabulary %q", source)
	}
	return vocab, nil
}

// byteFallbackToken returns the "<0xXX>" token used to represent byte b.
func byteFallbackToken(b byte) string {
	const hexDigits = "0123456789ABCDEF"
	return string([]byte{'<', '0', 'x', hexDigits[b>>4], hexDigits[b&0xF], '>'})
}

// readModelFile reads a vocabulary file. Errors wrap both errs.ErrModelLoad and errs.ErrIO.
func readModelFile(path string) ([]byte, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrModelLoad, err, "loading model file")
	}
	return data, nil
}
