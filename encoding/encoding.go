// Package encoding defines Encoding, the result of tokenizing one sequence or a pair of
// sequences, and the operations to truncate, pad, merge and query it.
//
// Encodings are plain values: Truncate, Pad and SetSequenceID modify them in place.
// The Tokenizer always returns freshly built Encodings, so there is no sharing to worry about.
package encoding

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/tokens"
)

// Direction is used in truncation and padding configuration.
type Direction uint8

const (
	Left  Direction = 0
	Right Direction = 1
)

//go:generate stringer -type=Direction -output=direction_string.go

// MarshalJSON implements json.Marshaler.
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errs.Wrap(errs.ErrConfig, err, "parsing direction")
	}
	switch name {
	case Left.String():
		*d = Left
	case Right.String():
		*d = Right
	default:
		return errs.Errorf(errs.ErrConfig, "unknown direction %q", name)
	}
	return nil
}

// NoIndex marks a token with no word or sequence, e.g. special tokens and padding.
const NoIndex = -1

// Encoding holds the tokenization of one sequence or a pair of sequences.
//
// All the slices are parallel, with one entry per token.
type Encoding struct {
	IDs     []uint32
	TypeIDs []uint32
	Tokens  []string

	// Offsets of each token, in characters (Unicode code points) of its original sequence.
	Offsets []tokens.Offsets

	// WordIDs holds the index of the word (pre-tokenized piece) of each token in its sequence,
	// or NoIndex.
	WordIDs []int

	// SequenceIDs holds the index of the input sequence (0 or 1) of each token, or NoIndex.
	SequenceIDs []int

	// SpecialTokensMask is 1 for special tokens (added by the post-processor, or padding).
	SpecialTokensMask []uint32

	// AttentionMask is 1 for real tokens, and 0 for padding.
	AttentionMask []uint32

	// Overflowing holds the parts removed by truncation, each as an Encoding of its own.
	Overflowing []*Encoding
}

// New creates an Encoding for a single sequence from the tokens produced by a model.
// wordIDs must have one entry per token (or be nil, in which case all are NoIndex).
func New(toks []tokens.Token, wordIDs []int, typeID uint32) *Encoding {
	n := len(toks)
	e := WithCapacity(n)
	for ii, tok := range toks {
		wordID := NoIndex
		if wordIDs != nil {
			wordID = wordIDs[ii]
		}
		e.Append(tok.ID, typeID, tok.Value, tok.Offsets, wordID, 0, 0, 1)
	}
	return e
}

// WithCapacity returns an empty Encoding, with room for n tokens.
func WithCapacity(n int) *Encoding {
	return &Encoding{
		IDs:               make([]uint32, 0, n),
		TypeIDs:           make([]uint32, 0, n),
		Tokens:            make([]string, 0, n),
		Offsets:           make([]tokens.Offsets, 0, n),
		WordIDs:           make([]int, 0, n),
		SequenceIDs:       make([]int, 0, n),
		SpecialTokensMask: make([]uint32, 0, n),
		AttentionMask:     make([]uint32, 0, n),
	}
}

// Append adds one token to the end of the Encoding.
func (e *Encoding) Append(id, typeID uint32, token string, offsets tokens.Offsets, wordID, sequenceID int, special, attention uint32) {
	e.IDs = append(e.IDs, id)
	e.TypeIDs = append(e.TypeIDs, typeID)
	e.Tokens = append(e.Tokens, token)
	e.Offsets = append(e.Offsets, offsets)
	e.WordIDs = append(e.WordIDs, wordID)
	e.SequenceIDs = append(e.SequenceIDs, sequenceID)
	e.SpecialTokensMask = append(e.SpecialTokensMask, special)
	e.AttentionMask = append(e.AttentionMask, attention)
}

// Len returns the number of tokens.
func (e *Encoding) Len() int { return len(e.IDs) }

// IsEmpty returns whether there are no tokens.
func (e *Encoding) IsEmpty() bool { return len(e.IDs) == 0 }

// Validate checks that all parallel slices have the same length, recursively on the
// overflowing encodings. It returns an error wrapping errs.ErrInternal otherwise.
func (e *Encoding) Validate() error {
	n := len(e.IDs)
	lengths := map[string]int{
		"type_ids":            len(e.TypeIDs),
		"tokens":              len(e.Tokens),
		"offsets":             len(e.Offsets),
		"word_ids":            len(e.WordIDs),
		"sequence_ids":        len(e.SequenceIDs),
		"special_tokens_mask": len(e.SpecialTokensMask),
		"attention_mask":      len(e.AttentionMask),
	}
	for name, length := range lengths {
		if length != n {
			return errs.Errorf(errs.ErrInternal, "encoding has %d ids but %d %s", n, length, name)
		}
	}
	for ii, o := range e.Overflowing {
		if err := o.Validate(); err != nil {
			return errs.Wrap(errs.ErrInternal, err, "overflowing encoding #%d", ii)
		}
	}
	return nil
}

// Clone returns a deep copy of the Encoding.
func (e *Encoding) Clone() *Encoding {
	c := e.slice(0, e.Len())
	if e.Overflowing != nil {
		c.Overflowing = make([]*Encoding, len(e.Overflowing))
		for ii, o := range e.Overflowing {
			c.Overflowing[ii] = o.Clone()
		}
	}
	return c
}

// slice returns a copy of the tokens [start, stop), without overflowing encodings.
func (e *Encoding) slice(start, stop int) *Encoding {
	return &Encoding{
		IDs:               append([]uint32{}, e.IDs[start:stop]...),
		TypeIDs:           append([]uint32{}, e.TypeIDs[start:stop]...),
		Tokens:            append([]string{}, e.Tokens[start:stop]...),
		Offsets:           append([]tokens.Offsets{}, e.Offsets[start:stop]...),
		WordIDs:           append([]int{}, e.WordIDs[start:stop]...),
		SequenceIDs:       append([]int{}, e.SequenceIDs[start:stop]...),
		SpecialTokensMask: append([]uint32{}, e.SpecialTokensMask[start:stop]...),
		AttentionMask:     append([]uint32{}, e.AttentionMask[start:stop]...),
	}
}

// NSequences returns the number of input sequences in the Encoding: 1 for a single
// sequence, 2 for a pair.
func (e *Encoding) NSequences() int {
	maxID := NoIndex
	for _, id := range e.SequenceIDs {
		maxID = max(maxID, id)
	}
	return max(1, maxID+1)
}

// SetSequenceID sets the sequence index of all tokens, including those of the overflowing encodings.
func (e *Encoding) SetSequenceID(sequenceID int) {
	for ii := range e.SequenceIDs {
		e.SequenceIDs[ii] = sequenceID
	}
	for _, o := range e.Overflowing {
		o.SetSequenceID(sequenceID)
	}
}

// SetTypeID sets the type id of all tokens, including those of the overflowing encodings.
func (e *Encoding) SetTypeID(typeID uint32) {
	for ii := range e.TypeIDs {
		e.TypeIDs[ii] = typeID
	}
	for _, o := range e.Overflowing {
		o.SetTypeID(typeID)
	}
}

// Truncate keeps at most maxLength tokens, and moves the rest into Overflowing, in parts
// of at most maxLength tokens. Consecutive parts overlap by stride tokens.
// Previous overflowing encodings are discarded.
//
// With maxLength == 0 the whole Encoding moves to Overflowing. It returns an error wrapping
// errs.ErrInvalidInput if stride >= maxLength.
func (e *Encoding) Truncate(maxLength, stride int, direction Direction) error {
	n := e.Len()
	if maxLength < 0 {
		return errs.Errorf(errs.ErrInvalidInput, "truncation maximum length must be >= 0, got %d", maxLength)
	}
	if maxLength >= n {
		return nil
	}
	if maxLength == 0 {
		whole := *e
		*e = *WithCapacity(0)
		e.Overflowing = []*Encoding{&whole}
		return nil
	}
	if stride >= maxLength || stride < 0 {
		return errs.Errorf(errs.ErrInvalidInput, "truncation stride (%d) must be smaller than the maximum length (%d)", stride, maxLength)
	}

	step := maxLength - stride
	type part struct{ start, stop int }
	var parts []part
	if direction == Right {
		for start := 0; start < n; start += step {
			stop := min(start+maxLength, n)
			parts = append(parts, part{start, stop})
			if stop == n {
				break
			}
		}
	} else {
		for last := n - 1; last >= 0; last -= step {
			stop := last + 1
			start := max(stop-maxLength, 0)
			parts = append(parts, part{start, stop})
			if start == 0 {
				break
			}
		}
	}

	truncated := e.slice(parts[0].start, parts[0].stop)
	for _, p := range parts[1:] {
		truncated.Overflowing = append(truncated.Overflowing, e.slice(p.start, p.stop))
	}
	*e = *truncated
	return nil
}

// Pad adds padding tokens until the Encoding has targetLength tokens. Overflowing encodings
// are padded as well.
//
// If the Encoding already has targetLength tokens or more, it is left unchanged: padding
// never truncates.
func (e *Encoding) Pad(targetLength int, padID, padTypeID uint32, padToken string, direction Direction) {
	for _, o := range e.Overflowing {
		o.Pad(targetLength, padID, padTypeID, padToken, direction)
	}
	n := e.Len()
	if n >= targetLength {
		return
	}
	padding := WithCapacity(targetLength)
	for range targetLength - n {
		padding.Append(padID, padTypeID, padToken, tokens.Offsets{}, NoIndex, NoIndex, 1, 0)
	}
	if direction == Left {
		padding.appendTokens(e)
		padding.Overflowing = e.Overflowing
		*e = *padding
		return
	}
	e.appendTokens(padding)
}

// appendTokens appends the tokens of other, but not its overflowing encodings.
func (e *Encoding) appendTokens(other *Encoding) {
	e.IDs = append(e.IDs, other.IDs...)
	e.TypeIDs = append(e.TypeIDs, other.TypeIDs...)
	e.Tokens = append(e.Tokens, other.Tokens...)
	e.Offsets = append(e.Offsets, other.Offsets...)
	e.WordIDs = append(e.WordIDs, other.WordIDs...)
	e.SequenceIDs = append(e.SequenceIDs, other.SequenceIDs...)
	e.SpecialTokensMask = append(e.SpecialTokensMask, other.SpecialTokensMask...)
	e.AttentionMask = append(e.AttentionMask, other.AttentionMask...)
}

// MergeWith appends pair to the Encoding. If growingOffsets is true, the offsets of pair are
// shifted by the end offset of the last token.
//
// Overflowing encodings are combined: each of ours with pair and each of pair's overflowing
// encodings, and ourselves with each of pair's overflowing encodings.
func (e *Encoding) MergeWith(pair *Encoding, growingOffsets bool) {
	var overflowing []*Encoding
	for _, selfO := range e.Overflowing {
		merged := selfO.Clone()
		merged.MergeWith(pair.Clone(), growingOffsets)
		overflowing = append(overflowing, merged)
		for _, otherO := range pair.Overflowing {
			merged = selfO.Clone()
			merged.MergeWith(otherO.Clone(), growingOffsets)
			overflowing = append(overflowing, merged)
		}
	}
	for _, otherO := range pair.Overflowing {
		merged := e.slice(0, e.Len())
		merged.MergeWith(otherO.Clone(), growingOffsets)
		overflowing = append(overflowing, merged)
	}

	startingOffset := 0
	if growingOffsets && e.Len() > 0 {
		startingOffset = e.Offsets[e.Len()-1].End
	}
	shifted := pair.slice(0, pair.Len())
	if startingOffset != 0 {
		for ii := range shifted.Offsets {
			shifted.Offsets[ii] = shifted.Offsets[ii].Shift(startingOffset)
		}
	}
	e.appendTokens(shifted)
	e.Overflowing = overflowing
}

// Merge concatenates encodings into a new Encoding. See MergeWith.
func Merge(encodings []*Encoding, growingOffsets bool) *Encoding {
	merged := WithCapacity(0)
	for _, e := range encodings {
		merged.MergeWith(e, growingOffsets)
	}
	return merged
}

// sequenceRange returns the range of tokens of the given sequence. If no token belongs
// to it, the whole Encoding is returned.
func (e *Encoding) sequenceRange(sequenceID int) (start, stop int) {
	start, stop = -1, -1
	for ii, id := range e.SequenceIDs {
		if id != sequenceID {
			continue
		}
		if start == -1 {
			start = ii
		}
		stop = ii + 1
	}
	if start == -1 {
		return 0, e.Len()
	}
	return start, stop
}

// WordToTokens returns the range [start, stop) of tokens of the given word in the given sequence.
func (e *Encoding) WordToTokens(word, sequenceID int) (start, stop int, found bool) {
	seqStart, seqStop := e.sequenceRange(sequenceID)
	start, stop = -1, -1
	for ii := seqStart; ii < seqStop; ii++ {
		if e.WordIDs[ii] != word {
			continue
		}
		if start == -1 {
			start = ii
		}
		stop = ii + 1
	}
	if start == -1 {
		return 0, 0, false
	}
	return start, stop, true
}

// WordToChars returns the character offsets of the given word in the given sequence.
func (e *Encoding) WordToChars(word, sequenceID int) (tokens.Offsets, bool) {
	start, stop, found := e.WordToTokens(word, sequenceID)
	if !found || stop == 0 {
		return tokens.Offsets{}, false
	}
	return tokens.Offsets{Start: e.Offsets[start].Start, End: e.Offsets[stop-1].End}, true
}

// TokenToSequence returns the sequence of the given token. Special tokens and padding have none.
func (e *Encoding) TokenToSequence(token int) (int, bool) {
	if token < 0 || token >= e.Len() || e.SequenceIDs[token] == NoIndex {
		return 0, false
	}
	return e.SequenceIDs[token], true
}

// TokenToChars returns the sequence and the character offsets of the given token.
func (e *Encoding) TokenToChars(token int) (sequenceID int, offsets tokens.Offsets, found bool) {
	sequenceID, found = e.TokenToSequence(token)
	if !found {
		return 0, tokens.Offsets{}, false
	}
	return sequenceID, e.Offsets[token], true
}

// TokenToWord returns the sequence and the word of the given token.
func (e *Encoding) TokenToWord(token int) (sequenceID, word int, found bool) {
	sequenceID, found = e.TokenToSequence(token)
	if !found || e.WordIDs[token] == NoIndex {
		return 0, 0, false
	}
	return sequenceID, e.WordIDs[token], true
}

// CharToToken returns the index of the token covering the character pos of the given sequence.
func (e *Encoding) CharToToken(pos, sequenceID int) (int, bool) {
	start, stop := e.sequenceRange(sequenceID)
	for ii := start; ii < stop; ii++ {
		if e.Offsets[ii].Contains(pos) {
			return ii, true
		}
	}
	return 0, false
}

// CharToWord returns the word covering the character pos of the given sequence.
func (e *Encoding) CharToWord(pos, sequenceID int) (int, bool) {
	token, found := e.CharToToken(pos, sequenceID)
	if !found {
		return 0, false
	}
	_, word, found := e.TokenToWord(token)
	return word, found
}

// String implements fmt.Stringer.
func (e *Encoding) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("  IDs=%v", e.IDs))
	parts = append(parts, fmt.Sprintf("  Tokens=%q", e.Tokens))
	parts = append(parts, fmt.Sprintf("  TypeIDs=%v", e.TypeIDs))
	parts = append(parts, fmt.Sprintf("  Offsets=%v", e.Offsets))
	parts = append(parts, fmt.Sprintf("  WordIDs=%v", e.WordIDs))
	parts = append(parts, fmt.Sprintf("  SequenceIDs=%v", e.SequenceIDs))
	parts = append(parts, fmt.Sprintf("  SpecialTokensMask=%v", e.SpecialTokensMask))
	parts = append(parts, fmt.Sprintf("  AttentionMask=%v", e.AttentionMask))
	parts = append(parts, fmt.Sprintf("  Overflowing=%d", len(e.Overflowing)))
	return fmt.Sprintf("Encoding(\n%s\n)", strings.Join(parts, "\n"))
}
