package models

import (
	"encoding/json"
	"math"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/fsutil"
	"github.com/gomlx/go-tokenizers/tokens"
)

// unkPenalty is subtracted from the lowest piece score to score unknown characters.
const unkPenalty = 10.0

// UnigramPiece is an entry of the Unigram vocabulary: a piece and its log-probability.
// It is serialized as a two-element JSON array.
type UnigramPiece struct {
	Piece string
	Score float64
}

// MarshalJSON implements json.Marshaler.
func (p UnigramPiece) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Piece, p.Score})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *UnigramPiece) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return errs.Wrap(errs.ErrModelLoad, err, "parsing Unigram piece")
	}
	if len(pair) != 2 {
		return errs.Errorf(errs.ErrModelLoad, "Unigram piece must be a [piece, score] pair, got %s", string(data))
	}
	if err := json.Unmarshal(pair[0], &p.Piece); err != nil {
		return errs.Wrap(errs.ErrModelLoad, err, "parsing Unigram piece")
	}
	if err := json.Unmarshal(pair[1], &p.Score); err != nil {
		return errs.Wrap(errs.ErrModelLoad, err, "parsing Unigram piece score")
	}
	return nil
}

// Unigram segments words into the sequence of pieces with the highest total score (sum of
// log-probabilities), found with the Viterbi algorithm.
type Unigram struct {
	pieces       []UnigramPiece
	tokenToID    map[string]uint32
	unkID        int
	byteFallback bool
	minScore     float64
	trie         *runeTrie
}

var _ Model = (*Unigram)(nil)

// NewUnigram creates a Unigram model. The id of each piece is its index.
// unkID is the index of the unknown token, or -1 if there is none: in which case
// unknown characters are an error, unless they can be represented with byte fallback.
func NewUnigram(pieces []UnigramPiece, unkID int, byteFallback bool) (*Unigram, error) {
	if unkID >= 0 {
		if len(pieces) == 0 {
			return nil, errs.Errorf(errs.ErrModelLoad, "Unigram with an unknown token id but an empty vocabulary")
		}
		if unkID >= len(pieces) {
			return nil, errs.Errorf(errs.ErrModelLoad, "Unigram unknown token id %d is out of the vocabulary (size %d)", unkID, len(pieces))
		}
	} else {
		unkID = -1
	}
	u := &Unigram{
		pieces:       make([]UnigramPiece, len(pieces)),
		tokenToID:    make(map[string]uint32, len(pieces)),
		unkID:        unkID,
		byteFallback: byteFallback,
		minScore:     math.Inf(1),
		trie:         newRuneTrie(),
	}
	copy(u.pieces, pieces)
	for id, piece := range pieces {
		if _, duplicate := u.tokenToID[piece.Piece]; duplicate {
			return nil, errs.Errorf(errs.ErrModelLoad, "Unigram piece %q is duplicated", piece.Piece)
		}
		u.tokenToID[piece.Piece] = uint32(id)
		u.trie.insert([]rune(piece.Piece))
		u.minScore = min(u.minScore, piece.Score)
	}
	return u, nil
}

// UnigramFromFile reads a unigram.json file, as written by Save.
func UnigramFromFile(path string) (*Unigram, error) {
	data, err := readModelFile(path)
	if err != nil {
		return nil, err
	}
	model, err := FromJSON(data)
	if err != nil {
		return nil, errs.Wrap(errs.ErrModelLoad, err, "parsing %q", path)
	}
	u, ok := model.(*Unigram)
	if !ok {
		return nil, errs.Errorf(errs.ErrModelLoad, "file %q holds a %T model, not Unigram", path, model)
	}
	return u, nil
}

func (*Unigram) isModel() {}

// Pieces returns a copy of the vocabulary, in id order.
func (u *Unigram) Pieces() []UnigramPiece {
	pieces := make([]UnigramPiece, len(u.pieces))
	copy(pieces, u.pieces)
	return pieces
}

// UnkID returns the id of the unknown token, or -1 if there is none.
func (u *Unigram) UnkID() int { return u.unkID }

// ByteFallback returns whether unknown pieces are represented with "<0xXX>" byte tokens.
func (u *Unigram) ByteFallback() bool { return u.byteFallback }

// TokenToID implements Model.
func (u *Unigram) TokenToID(token string) (uint32, bool) {
	id, found := u.tokenToID[token]
	return id, found
}

// IDToToken implements Model.
func (u *Unigram) IDToToken(id uint32) (string, bool) {
	if int(id) >= len(u.pieces) {
		return "", false
	}
	return u.pieces[id].Piece, true
}

// GetVocab implements Model.
func (u *Unigram) GetVocab() map[string]uint32 { return Vocab(u.tokenToID).clone() }

// GetVocabSize implements Model.
func (u *Unigram) GetVocabSize() int { return len(u.pieces) }

// bestPathNode is the best segmentation ending at a given character position.
type bestPathNode struct {
	id       int
	score    float64
	startsAt int // -1 if no path reaches this position yet.
}

// Encode segments sentence into the pieces of the best path. Consecutive unknown
// characters are fused into one piece.
func (u *Unigram) Encode(sentence string) ([]string, error) {
	runes := []rune(sentence)
	size := len(runes)
	if size == 0 {
		return []string{}, nil
	}
	unkScore := u.minScore - unkPenalty

	// bestPathEndsAt[i] holds the best path covering runes[:i].
	bestPathEndsAt := make([]bestPathNode, size+1)
	for ii := range bestPathEndsAt {
		bestPathEndsAt[ii].startsAt = -1
	}
	for startsAt := 0; startsAt < size; startsAt++ {
		scoreTillHere := bestPathEndsAt[startsAt].score
		hasSingleNode := false
		for _, length := range u.trie.commonPrefixLengths(runes[startsAt:]) {
			keyPos := startsAt + length
			id := u.tokenToID[string(runes[startsAt:keyPos])]
			candidate := u.pieces[id].Score + scoreTillHere
			target := &bestPathEndsAt[keyPos]
			if target.startsAt == -1 || candidate > target.score {
				target.score = candidate
				target.startsAt = startsAt
				target.id = int(id)
			}
			if length == 1 {
				hasSingleNode = true
			}
		}
		if !hasSingleNode {
			target := &bestPathEndsAt[startsAt+1]
			candidate := unkScore + scoreTillHere
			if target.startsAt == -1 || candidate > target.score {
				if u.unkID < 0 && !u.byteFallback {
					return nil, errs.Errorf(errs.ErrInvalidInput, "Unigram model has no unknown token, and %q is not in the vocabulary", string(runes[startsAt]))
				}
				target.score = candidate
				target.startsAt = startsAt
				target.id = u.unkID
			}
		}
	}

	var results []string
	var unkRun []string
	flushUnk := func() {
		if len(unkRun) == 0 {
			return
		}
		var fused []rune
		for ii := len(unkRun) - 1; ii >= 0; ii-- {
			fused = append(fused, []rune(unkRun[ii])...)
		}
		results = append(results, string(fused))
		unkRun = unkRun[:0]
	}
	for endsAt := size; endsAt > 0; {
		node := bestPathEndsAt[endsAt]
		piece := string(runes[node.startsAt:endsAt])
		if node.id == u.unkID && u.unkID >= 0 {
			unkRun = append(unkRun, piece)
		} else {
			flushUnk()
			results = append(results, piece)
		}
		endsAt = node.startsAt
	}
	flushUnk()
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

// Tokenize implements Model.
func (u *Unigram) Tokenize(word string) ([]tokens.Token, error) {
	pieces, err := u.Encode(word)
	if err != nil {
		return nil, err
	}
	result := make([]tokens.Token, 0, len(pieces))
	offset := 0
	for _, piece := range pieces {
		length := len([]rune(piece))
		offsets := tokens.Offsets{Start: offset, End: offset + length}
		offset += length
		if id, found := u.tokenToID[piece]; found {
			result = append(result, tokens.NewToken(id, piece, offsets))
			continue
		}
		if u.byteFallback {
			if byteTokens, ok := u.byteFallbackTokens(piece, offsets); ok {
				result = append(result, byteTokens...)
				continue
			}
		}
		if u.unkID < 0 {
			return nil, errs.Errorf(errs.ErrInvalidInput, "Unigram model has no unknown token, and %q can't be represented", piece)
		}
		result = append(result, tokens.NewToken(uint32(u.unkID), piece, offsets))
	}
	return result, nil
}

func (u *Unigram) byteFallbackTokens(piece string, offsets tokens.Offsets) ([]tokens.Token, bool) {
	byteTokens := make([]tokens.Token, 0, len(piece))
	for ii := 0; ii < len(piece); ii++ {
		value := byteFallbackToken(piece[ii])
		id, found := u.tokenToID[value]
		if !found {
			return nil, false
		}
		byteTokens = append(byteTokens, tokens.NewToken(id, value, offsets))
	}
	return byteTokens, true
}

// Save implements Model. It writes unigram.json.
func (u *Unigram) Save(dir, prefix string) ([]string, error) {
	path := savePath(dir, prefix, "unigram.json")
	data, err := ToJSON(u)
	if err != nil {
		return nil, err
	}
	if err = fsutil.WriteFileAtomic(path, data); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// runeTrie holds the pieces of a Unigram vocabulary for prefix searches.
type runeTrie struct {
	root *trieNode
}

type trieNode struct {
	children map[rune]*trieNode
	isLeaf   bool
}

func newRuneTrie() *runeTrie {
	return &runeTrie{root: &trieNode{children: make(map[rune]*trieNode)}}
}

func (t *runeTrie) insert(key []rune) {
	node := t.root
	for _, r := range key {
		child, found := node.children[r]
		if !found {
			child = &trieNode{children: make(map[rune]*trieNode)}
			node.children[r] = child
		}
		node = child
	}
	node.isLeaf = true
}

// commonPrefixLengths returns the lengths of all keys that are a prefix of text, shortest first.
func (t *runeTrie) commonPrefixLengths(text []rune) []int {
	var lengths []int
	node := t.root
	for ii, r := range text {
		child, found := node.children[r]
		if !found {
			break
		}
		if child.isLeaf {
			lengths = append(lengths, ii+1)
		}
		node = child
	}
	return lengths
}
