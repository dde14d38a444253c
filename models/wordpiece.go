package models

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/fsutil"
	"github.com/gomlx/go-tokenizers/tokens"
)

// Defaults of WordPiece.
const (
	DefaultWordPieceUnkToken    = "[UNK]"
	DefaultContinuingPrefix     = "##"
	DefaultMaxInputCharsPerWord = 100
)

// WordPieceConfig holds the options of a WordPiece model.
type WordPieceConfig struct {
	UnkToken                string
	ContinuingSubwordPrefix string

	// MaxInputCharsPerWord: longer words are mapped to UnkToken directly.
	MaxInputCharsPerWord int
}

// DefaultWordPieceConfig returns the default WordPiece options, those used by BERT.
func DefaultWordPieceConfig() WordPieceConfig {
	return WordPieceConfig{
		UnkToken:                DefaultWordPieceUnkToken,
		ContinuingSubwordPrefix: DefaultContinuingPrefix,
		MaxInputCharsPerWord:    DefaultMaxInputCharsPerWord,
	}
}

// WordPiece splits words greedily into the longest prefix found in the vocabulary; the
// remainder is split the same way, looking up its pieces with the continuing subword prefix.
// Words that can't be fully split map to the unknown token.
type WordPiece struct {
	config WordPieceConfig
	vocab  Vocab
	vocabR map[uint32]string
}

var _ Model = (*WordPiece)(nil)

// NewWordPiece creates a WordPiece model.
func NewWordPiece(vocab Vocab, config WordPieceConfig) (*WordPiece, error) {
	if vocab == nil {
		vocab = Vocab{}
	}
	w := &WordPiece{config: config, vocab: vocab.clone()}
	var err error
	if w.vocabR, err = w.vocab.reverse(); err != nil {
		return nil, err
	}
	return w, nil
}

// WordPieceFromFile creates a WordPiece from a vocab.txt file, with one token per line.
func WordPieceFromFile(vocabPath string, config WordPieceConfig) (*WordPiece, error) {
	vocab, err := ReadVocabTxt(vocabPath)
	if err != nil {
		return nil, err
	}
	return NewWordPiece(vocab, config)
}

// ReadVocabTxt reads a file with one token per line: the line number (starting at 0) is the id.
func ReadVocabTxt(vocabPath string) (Vocab, error) {
	data, err := readModelFile(vocabPath)
	if err != nil {
		return nil, err
	}
	vocab := Vocab{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var id uint32
	for scanner.Scan() {
		vocab[strings.TrimRight(scanner.Text(), " \t\r")] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrModelLoad, err, "reading vocabulary %q", vocabPath)
	}
	return vocab, nil
}

// WordPieceFromBPE creates a WordPiece with the vocabulary of bpe. The unknown token and
// continuing subword prefix of bpe are used if set.
func WordPieceFromBPE(bpe *BPE) (*WordPiece, error) {
	config := DefaultWordPieceConfig()
	if bpe.config.UnkToken != "" {
		config.UnkToken = bpe.config.UnkToken
	}
	if bpe.config.ContinuingSubwordPrefix != "" {
		config.ContinuingSubwordPrefix = bpe.config.ContinuingSubwordPrefix
	}
	return NewWordPiece(bpe.vocab, config)
}

func (*WordPiece) isModel() {}

// Config returns the options of the model.
func (w *WordPiece) Config() WordPieceConfig { return w.config }

// TokenToID implements Model.
func (w *WordPiece) TokenToID(token string) (uint32, bool) {
	id, found := w.vocab[token]
	return id, found
}

// IDToToken implements Model.
func (w *WordPiece) IDToToken(id uint32) (string, bool) {
	token, found := w.vocabR[id]
	return token, found
}

// GetVocab implements Model.
func (w *WordPiece) GetVocab() map[string]uint32 { return w.vocab.clone() }

// GetVocabSize implements Model.
func (w *WordPiece) GetVocabSize() int { return len(w.vocab) }

// unkTokens returns the word mapped to the unknown token.
func (w *WordPiece) unkTokens(charLen int) ([]tokens.Token, error) {
	id, found := w.vocab[w.config.UnkToken]
	if !found {
		return nil, errs.Errorf(errs.ErrConfig, "WordPiece unknown token %q is not in the vocabulary", w.config.UnkToken)
	}
	return []tokens.Token{tokens.NewToken(id, w.config.UnkToken, tokens.Offsets{Start: 0, End: charLen})}, nil
}

// Tokenize implements Model.
func (w *WordPiece) Tokenize(word string) ([]tokens.Token, error) {
	runes := []rune(word)
	if len(runes) > w.config.MaxInputCharsPerWord {
		return w.unkTokens(len(runes))
	}
	var result []tokens.Token
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := false
		for start < end {
			piece := string(runes[start:end])
			if start > 0 {
				piece = w.config.ContinuingSubwordPrefix + piece
			}
			if id, ok := w.vocab[piece]; ok {
				result = append(result, tokens.NewToken(id, piece, tokens.Offsets{Start: start, End: end}))
				found = true
				break
			}
			end--
		}
		if !found {
			return w.unkTokens(len(runes))
		}
		start = end
	}
	if result == nil {
		result = []tokens.Token{}
	}
	return result, nil
}

// Save implements Model. It writes vocab.txt.
func (w *WordPiece) Save(dir, prefix string) ([]string, error) {
	vocabPath := savePath(dir, prefix, "vocab.txt")
	var buf bytes.Buffer
	for _, token := range w.vocab.orderedTokens() {
		buf.WriteString(token)
		buf.WriteByte('\n')
	}
	if err := fsutil.WriteFileAtomic(vocabPath, buf.Bytes()); err != nil {
		return nil, err
	}
	return []string{vocabPath}, nil
}
