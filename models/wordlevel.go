package models

import (
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/fsutil"
	"github.com/gomlx/go-tokenizers/tokens"
)

// DefaultWordLevelUnkToken is the default unknown token of WordLevel.
const DefaultWordLevelUnkToken = "<unk>"

// WordLevel maps whole words to ids, with no subword splitting.
type WordLevel struct {
	unkToken string
	vocab    Vocab
	vocabR   map[uint32]string
}

var _ Model = (*WordLevel)(nil)

// NewWordLevel creates a WordLevel model. Words not in vocab are mapped to unkToken.
func NewWordLevel(vocab Vocab, unkToken string) (*WordLevel, error) {
	if vocab == nil {
		vocab = Vocab{}
	}
	w := &WordLevel{unkToken: unkToken, vocab: vocab.clone()}
	var err error
	if w.vocabR, err = w.vocab.reverse(); err != nil {
		return nil, err
	}
	return w, nil
}

// WordLevelFromFile creates a WordLevel model from a vocab.json file.
func WordLevelFromFile(vocabPath, unkToken string) (*WordLevel, error) {
	data, err := readModelFile(vocabPath)
	if err != nil {
		return nil, err
	}
	vocab, err := parseVocabJSON(data, vocabPath)
	if err != nil {
		return nil, err
	}
	return NewWordLevel(vocab, unkToken)
}

func (*WordLevel) isModel() {}

// UnkToken returns the token used for words not in the vocabulary.
func (w *WordLevel) UnkToken() string { return w.unkToken }

// Tokenize implements Model.
func (w *WordLevel) Tokenize(word string) ([]tokens.Token, error) {
	offsets := tokens.Offsets{Start: 0, End: utf8.RuneCountInString(word)}
	if id, found := w.vocab[word]; found {
		return []tokens.Token{tokens.NewToken(id, word, offsets)}, nil
	}
	id, found := w.vocab[w.unkToken]
	if !found {
		return nil, errs.Errorf(errs.ErrConfig, "WordLevel unknown token %q is not in the vocabulary", w.unkToken)
	}
	return []tokens.Token{tokens.NewToken(id, w.unkToken, offsets)}, nil
}

// TokenToID implements Model.
func (w *WordLevel) TokenToID(token string) (uint32, bool) {
	id, found := w.vocab[token]
	return id, found
}

// IDToToken implements Model.
func (w *WordLevel) IDToToken(id uint32) (string, bool) {
	token, found := w.vocabR[id]
	return token, found
}

// GetVocab implements Model.
func (w *WordLevel) GetVocab() map[string]uint32 { return w.vocab.clone() }

// GetVocabSize implements Model.
func (w *WordLevel) GetVocabSize() int { return len(w.vocab) }

// Save implements Model. It writes vocab.json.
func (w *WordLevel) Save(dir, prefix string) ([]string, error) {
	vocabPath := savePath(dir, prefix, "vocab.json")
	data, err := w.vocab.MarshalJSON()
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternal, err, "serializing WordLevel vocabulary")
	}
	if err = fsutil.WriteFileAtomic(vocabPath, data); err != nil {
		return nil, err
	}
	return []string{vocabPath}, nil
}
