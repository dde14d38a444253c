package models

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/fsutil"
	"github.com/gomlx/go-tokenizers/tokens"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheCapacity is the default number of words whose tokenization is cached by BPE.
const DefaultCacheCapacity = 10_000

// maxCachedWordLength limits the length (in bytes) of the words stored in the cache.
const maxCachedWordLength = 256

// Pair is a merge rule of BPE: the adjacent tokens A and B are merged into A+B.
type Pair struct {
	A, B string
}

// String implements fmt.Stringer, in the merges.txt format.
func (p Pair) String() string { return p.A + " " + p.B }

// BPEConfig holds the options of a BPE model.
type BPEConfig struct {
	// CacheCapacity is the number of words whose tokenization is memoized. 0 disables the cache.
	CacheCapacity int

	// Dropout is the probability of skipping each merge, used for subword regularization.
	// 0 disables it. When enabled the cache is not used.
	Dropout float32

	// UnkToken replaces characters that are not in the vocabulary. If empty they are dropped.
	UnkToken string

	// ContinuingSubwordPrefix is prepended to every character but the first of a word.
	ContinuingSubwordPrefix string

	// EndOfWordSuffix is appended to the last character of a word.
	EndOfWordSuffix string

	// FuseUnk merges consecutive unknown characters into one UnkToken.
	FuseUnk bool

	// ByteFallback uses "<0xXX>" byte tokens for unknown characters, when they are in the vocabulary.
	ByteFallback bool

	// IgnoreMerges returns words found in the vocabulary directly, without applying merges.
	IgnoreMerges bool
}

// DefaultBPEConfig returns the default BPE options.
func DefaultBPEConfig() BPEConfig {
	return BPEConfig{CacheCapacity: DefaultCacheCapacity}
}

// mergeRule is the value of a merge in the lookup table: its priority (lower merges first)
// and the id of the merged token.
type mergeRule struct {
	rank  int
	newID uint32
}

type idPair struct {
	a, b uint32
}

// BPE is the Byte-Pair Encoding model: words are split into characters, and adjacent
// pieces are merged following the ranked merge rules.
type BPE struct {
	config BPEConfig
	vocab  Vocab
	vocabR map[uint32]string
	merges map[idPair]mergeRule
	pairs  []Pair
	unkID  uint32

	// cache is nil if disabled.
	cache *lru.Cache[string, []symbol]
}

var _ Model = (*BPE)(nil)

// NewBPE creates a BPE model. The merges are given in priority order.
//
// It fails with errs.ErrModelLoad if a merge refers to tokens not in the vocabulary, or
// if config.UnkToken is set but not in the vocabulary.
func NewBPE(vocab Vocab, merges []Pair, config BPEConfig) (*BPE, error) {
	if config.Dropout < 0 || config.Dropout > 1 {
		return nil, errs.Errorf(errs.ErrConfig, "BPE dropout must be between 0 and 1, got %g", config.Dropout)
	}
	if config.CacheCapacity < 0 {
		return nil, errs.Errorf(errs.ErrConfig, "BPE cache capacity must be >= 0, got %d", config.CacheCapacity)
	}
	if vocab == nil {
		vocab = Vocab{}
	}
	b := &BPE{
		config: config,
		vocab:  vocab.clone(),
		merges: make(map[idPair]mergeRule, len(merges)),
		pairs:  make([]Pair, len(merges)),
	}
	copy(b.pairs, merges)
	var err error
	b.vocabR, err = b.vocab.reverse()
	if err != nil {
		return nil, err
	}
	if config.UnkToken != "" {
		var found bool
		b.unkID, found = b.vocab[config.UnkToken]
		if !found {
			return nil, errs.Errorf(errs.ErrModelLoad, "BPE unknown token %q is not in the vocabulary", config.UnkToken)
		}
	}
	for rank, pair := range merges {
		idA, foundA := b.vocab[pair.A]
		idB, foundB := b.vocab[pair.B]
		if !foundA || !foundB {
			return nil, errs.Errorf(errs.ErrModelLoad, "merge #%d %q uses tokens out of the vocabulary", rank, pair)
		}
		merged := pair.A + strings.TrimPrefix(pair.B, config.ContinuingSubwordPrefix)
		newID, found := b.vocab[merged]
		if !found {
			return nil, errs.Errorf(errs.ErrModelLoad, "merge #%d %q results in %q, which is not in the vocabulary", rank, pair, merged)
		}
		key := idPair{idA, idB}
		if _, duplicate := b.merges[key]; duplicate {
			// The first (highest priority) occurrence wins.
			continue
		}
		b.merges[key] = mergeRule{rank: rank, newID: newID}
	}
	if config.CacheCapacity > 0 {
		b.cache, err = lru.New[string, []symbol](config.CacheCapacity)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInternal, err, "creating BPE cache")
		}
	}
	return b, nil
}

// BPEFromFiles creates a BPE model from a vocab.json and a merges.txt files.
func BPEFromFiles(vocabPath, mergesPath string, config BPEConfig) (*BPE, error) {
	vocab, merges, err := ReadBPEFiles(vocabPath, mergesPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded BPE files", "vocab", vocabPath, "merges", mergesPath, "vocab_size", len(vocab), "merges_count", len(merges))
	return NewBPE(vocab, merges, config)
}

// ReadBPEFiles reads the vocabulary and the merges of a BPE model.
func ReadBPEFiles(vocabPath, mergesPath string) (Vocab, []Pair, error) {
	data, err := readModelFile(vocabPath)
	if err != nil {
		return nil, nil, err
	}
	vocab, err := parseVocabJSON(data, vocabPath)
	if err != nil {
		return nil, nil, err
	}
	data, err = readModelFile(mergesPath)
	if err != nil {
		return nil, nil, err
	}
	merges, err := ParseMerges(data)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrModelLoad, err, "reading merges file %q", mergesPath)
	}
	return vocab, merges, nil
}

// ParseMerges parses the contents of a merges.txt file: one space separated pair per line,
// with an optional "#version" header.
func ParseMerges(data []byte) ([]Pair, error) {
	var merges []Pair
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, "#version") || line == "" {
			continue
		}
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			return nil, errs.Errorf(errs.ErrModelLoad, "invalid merge in line %d: %q", lineNum, line)
		}
		merges = append(merges, Pair{A: parts[0], B: parts[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrModelLoad, err, "scanning merges")
	}
	return merges, nil
}

func (*BPE) isModel() {}

// Config returns the options of the model.
func (b *BPE) Config() BPEConfig { return b.config }

// Merges returns a copy of the merge rules, in priority order.
func (b *BPE) Merges() []Pair {
	pairs := make([]Pair, len(b.pairs))
	copy(pairs, b.pairs)
	return pairs
}

// ClearCache drops all memoized tokenizations.
func (b *BPE) ClearCache() {
	if b.cache != nil {
		b.cache.Purge()
	}
}

// TokenToID implements Model.
func (b *BPE) TokenToID(token string) (uint32, bool) {
	id, found := b.vocab[token]
	return id, found
}

// IDToToken implements Model.
func (b *BPE) IDToToken(id uint32) (string, bool) {
	token, found := b.vocabR[id]
	return token, found
}

// GetVocab implements Model.
func (b *BPE) GetVocab() map[string]uint32 { return b.vocab.clone() }

// GetVocabSize implements Model.
func (b *BPE) GetVocabSize() int { return len(b.vocab) }

// Tokenize implements Model.
func (b *BPE) Tokenize(word string) ([]tokens.Token, error) {
	if word == "" {
		return []tokens.Token{}, nil
	}
	if b.config.IgnoreMerges {
		if id, found := b.vocab[word]; found {
			return []tokens.Token{tokens.NewToken(id, word, tokens.Offsets{Start: 0, End: len([]rune(word))})}, nil
		}
	}
	useCache := b.cache != nil && b.config.Dropout == 0
	if useCache {
		if symbols, found := b.cache.Get(word); found {
			return b.symbolsToTokens(symbols), nil
		}
	}
	symbols := b.mergeWord(word)
	if useCache && len(word) < maxCachedWordLength {
		b.cache.Add(word, symbols)
	}
	return b.symbolsToTokens(symbols), nil
}

// mergeWord splits word into its initial symbols, and applies the merges.
func (b *BPE) mergeWord(word string) []symbol {
	runes := []rune(word)
	w := newSymbolWord(len(runes))
	var unk *symbol
	flushUnk := func() {
		if unk != nil {
			w.add(unk.id, unk.start, unk.end)
			unk = nil
		}
	}
	for ii, r := range runes {
		s := string(r)
		if ii > 0 {
			s = b.config.ContinuingSubwordPrefix + s
		}
		if ii == len(runes)-1 {
			s += b.config.EndOfWordSuffix
		}
		if id, found := b.vocab[s]; found {
			flushUnk()
			w.add(id, ii, ii+1)
			continue
		}
		if b.config.ByteFallback {
			if ids, ok := b.byteFallbackIDs(s); ok {
				flushUnk()
				for _, id := range ids {
					w.add(id, ii, ii+1)
				}
				continue
			}
		}
		if b.config.UnkToken == "" {
			continue
		}
		if unk != nil && b.config.FuseUnk {
			unk.end = ii + 1
			continue
		}
		flushUnk()
		unk = &symbol{id: b.unkID, start: ii, end: ii + 1}
	}
	flushUnk()
	w.mergeAll(b.merges, b.config.Dropout)
	return w.compact()
}

// byteFallbackIDs returns the ids of the "<0xXX>" tokens of each byte of s, if they are all in
// the vocabulary.
func (b *BPE) byteFallbackIDs(s string) ([]uint32, bool) {
	ids := make([]uint32, 0, len(s))
	for ii := 0; ii < len(s); ii++ {
		id, found := b.vocab[byteFallbackToken(s[ii])]
		if !found {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func (b *BPE) symbolsToTokens(symbols []symbol) []tokens.Token {
	result := make([]tokens.Token, len(symbols))
	for ii, s := range symbols {
		result[ii] = tokens.NewToken(s.id, b.vocabR[s.id], tokens.Offsets{Start: s.start, End: s.end})
	}
	return result
}

// Save implements Model. It writes vocab.json and merges.txt.
func (b *BPE) Save(dir, prefix string) ([]string, error) {
	vocabPath := savePath(dir, prefix, "vocab.json")
	vocabData, err := b.vocab.MarshalJSON()
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternal, err, "serializing BPE vocabulary")
	}
	if err = fsutil.WriteFileAtomic(vocabPath, vocabData); err != nil {
		return nil, err
	}

	mergesPath := savePath(dir, prefix, "merges.txt")
	var buf bytes.Buffer
	buf.WriteString("#version: 0.2\n")
	for _, pair := range b.pairs {
		_, _ = fmt.Fprintln(&buf, pair.String())
	}
	if err = fsutil.WriteFileAtomic(mergesPath, buf.Bytes()); err != nil {
		return nil, err
	}
	return []string{vocabPath, mergesPath}, nil
}
