// Package processors implements the last stage of the encoding pipeline: adding the special
// tokens a model expects (e.g. "[CLS] A [SEP] B [SEP]") and combining the Encodings of a pair
// of sequences into one.
//
// The set of post-processors is closed: Bert, Roberta, ByteLevel, Template and Sequence.
// They can be serialized with ToJSON and FromJSON, following the HuggingFace tokenizer.json format.
package processors

import (
	"unicode"

	"github.com/gomlx/go-tokenizers/encoding"
	"github.com/gomlx/go-tokenizers/internal/bytelevel"
	"github.com/gomlx/go-tokenizers/tokens"
)

// PostProcessor adds special tokens to the Encodings of one or two sequences.
// PostProcessors are immutable once built, and safe for concurrent use.
type PostProcessor interface {
	// AddedTokens returns the number of tokens added to a single sequence, or to a pair if isPair.
	AddedTokens(isPair bool) int

	// ProcessEncodings returns the processed encodings. They may be combined into fewer
	// encodings, and are merged by Process afterward.
	ProcessEncodings(encodings []*encoding.Encoding, addSpecialTokens bool) ([]*encoding.Encoding, error)

	// isPostProcessor restricts implementations to this package.
	isPostProcessor()
}

// Process sets the sequence ids of encoding (0) and pair (1, if not nil), applies the
// post-processor and merges the result into a single Encoding.
//
// With a nil postProcessor, the type id of each token is set to the index of its sequence.
func Process(postProcessor PostProcessor, enc, pair *encoding.Encoding, addSpecialTokens bool) (*encoding.Encoding, error) {
	encodings := []*encoding.Encoding{enc}
	if pair != nil {
		encodings = append(encodings, pair)
	}
	for ii, e := range encodings {
		e.SetSequenceID(ii)
	}
	var err error
	if postProcessor == nil {
		encodings = defaultProcess(encodings)
	} else {
		encodings, err = postProcessor.ProcessEncodings(encodings, addSpecialTokens)
		if err != nil {
			return nil, err
		}
	}
	return encoding.Merge(encodings, false), nil
}

func defaultProcess(encodings []*encoding.Encoding) []*encoding.Encoding {
	if len(encodings) > 1 {
		for ii, e := range encodings {
			e.SetTypeID(uint32(ii))
		}
	}
	return encodings
}

// TokenID is a special token with its id.
type TokenID struct {
	Token string
	ID    uint32
}

// Bert adds "[CLS] A [SEP]" or "[CLS] A [SEP] B [SEP]".
type Bert struct {
	Sep, Cls TokenID
}

// NewBert returns a Bert post-processor with the given separator and classifier tokens.
func NewBert(sep, cls TokenID) *Bert {
	return &Bert{Sep: sep, Cls: cls}
}

// NewDefaultBert uses the ids of bert-base-uncased: "[SEP]" (102) and "[CLS]" (101).
func NewDefaultBert() *Bert {
	return NewBert(TokenID{"[SEP]", 102}, TokenID{"[CLS]", 101})
}

func (*Bert) isPostProcessor() {}

// AddedTokens implements PostProcessor.
func (b *Bert) AddedTokens(isPair bool) int {
	if isPair {
		return 3
	}
	return 2
}

// ProcessEncodings implements PostProcessor.
func (b *Bert) ProcessEncodings(encodings []*encoding.Encoding, addSpecialTokens bool) ([]*encoding.Encoding, error) {
	if !addSpecialTokens {
		return encodings, nil
	}
	results := make([]*encoding.Encoding, len(encodings))
	for ii, e := range encodings {
		if ii == 0 {
			results[ii] = surround(e, &b.Cls, 0, b.Sep, 0)
		} else {
			results[ii] = surround(e, nil, 0, b.Sep, 1)
		}
	}
	return results, nil
}

// surround returns a copy of e with the optional before token and the after token added,
// with the given type ids. Overflowing encodings are surrounded too.
func surround(e *encoding.Encoding, before *TokenID, beforeTypeID uint32, after TokenID, afterTypeID uint32) *encoding.Encoding {
	result := encoding.WithCapacity(e.Len() + 2)
	if before != nil {
		result.Append(before.ID, beforeTypeID, before.Token, tokens.Offsets{}, encoding.NoIndex, encoding.NoIndex, 1, 1)
	}
	for ii := range e.Len() {
		result.Append(e.IDs[ii], e.TypeIDs[ii], e.Tokens[ii], e.Offsets[ii], e.WordIDs[ii], e.SequenceIDs[ii],
			e.SpecialTokensMask[ii], e.AttentionMask[ii])
	}
	result.Append(after.ID, afterTypeID, after.Token, tokens.Offsets{}, encoding.NoIndex, encoding.NoIndex, 1, 1)
	for _, o := range e.Overflowing {
		result.Overflowing = append(result.Overflowing, surround(o, before, beforeTypeID, after, afterTypeID))
	}
	return result
}

// Roberta adds "<s> A </s>" or "<s> A </s></s> B </s>". All type ids are 0.
type Roberta struct {
	Sep, Cls TokenID

	// TrimOffsets removes the (byte-level) spaces from the offsets of the tokens.
	TrimOffsets bool

	// AddPrefixSpace must match the ByteLevel pre-tokenizer setting: the space added at the
	// start of the first token is not trimmed from its offsets.
	AddPrefixSpace bool
}

// NewRoberta returns a Roberta post-processor with the default tokens "</s>" (2) and "<s>" (0),
// and TrimOffsets and AddPrefixSpace enabled.
func NewRoberta() *Roberta {
	return &Roberta{Sep: TokenID{"</s>", 2}, Cls: TokenID{"<s>", 0}, TrimOffsets: true, AddPrefixSpace: true}
}

func (*Roberta) isPostProcessor() {}

// AddedTokens implements PostProcessor.
func (r *Roberta) AddedTokens(isPair bool) int {
	if isPair {
		return 4
	}
	return 2
}

// ProcessEncodings implements PostProcessor.
func (r *Roberta) ProcessEncodings(encodings []*encoding.Encoding, addSpecialTokens bool) ([]*encoding.Encoding, error) {
	if r.TrimOffsets {
		for _, e := range encodings {
			trimOffsets(e, r.AddPrefixSpace)
		}
	}
	if !addSpecialTokens {
		return encodings, nil
	}
	results := make([]*encoding.Encoding, len(encodings))
	for ii, e := range encodings {
		e.SetTypeID(0)
		if ii == 0 {
			results[ii] = surround(e, &r.Cls, 0, r.Sep, 0)
		} else {
			results[ii] = surround(e, &r.Sep, 0, r.Sep, 0)
		}
	}
	return results, nil
}

// ByteLevel only adjusts the offsets of tokens produced with the ByteLevel pre-tokenizer,
// so they don't include the surrounding spaces. It adds no tokens.
type ByteLevel struct {
	AddPrefixSpace bool `json:"add_prefix_space"`
	TrimOffsets    bool `json:"trim_offsets"`
	UseRegex       bool `json:"use_regex"`
}

// NewByteLevel returns a ByteLevel post-processor with the defaults: all options enabled.
func NewByteLevel() *ByteLevel {
	return &ByteLevel{AddPrefixSpace: true, TrimOffsets: true, UseRegex: true}
}

func (*ByteLevel) isPostProcessor() {}

// AddedTokens implements PostProcessor.
func (*ByteLevel) AddedTokens(bool) int { return 0 }

// ProcessEncodings implements PostProcessor.
func (b *ByteLevel) ProcessEncodings(encodings []*encoding.Encoding, _ bool) ([]*encoding.Encoding, error) {
	if b.TrimOffsets {
		for _, e := range encodings {
			trimOffsets(e, b.AddPrefixSpace)
		}
	}
	return defaultProcess(encodings), nil
}

func isByteLevelSpace(r rune) bool {
	return r == bytelevel.Space || unicode.IsSpace(r)
}

// trimOffsets removes leading and trailing spaces from the offsets of each token, recursively
// on overflowing encodings.
func trimOffsets(e *encoding.Encoding, addPrefixSpace bool) {
	for ii, token := range e.Tokens {
		runes := []rune(token)
		leading := 0
		for leading < len(runes) && isByteLevelSpace(runes[leading]) {
			leading++
		}
		trailing := 0
		for trailing < len(runes) && isByteLevelSpace(runes[len(runes)-1-trailing]) {
			trailing++
		}
		offsets := &e.Offsets[ii]
		if leading > 0 {
			isFirst := ii == 0 || offsets.Start == 0
			if isFirst && addPrefixSpace && leading == 1 {
				// The prefix space was added, it's not part of the original text.
				leading = 0
			}
			offsets.Start = min(offsets.Start+leading, offsets.End)
		}
		if trailing > 0 && offsets.End >= trailing {
			offsets.End = max(offsets.End-trailing, offsets.Start)
		}
	}
	for _, o := range e.Overflowing {
		trimOffsets(o, addPrefixSpace)
	}
}

// Sequence applies post-processors in order, each one consuming the output of the previous.
type Sequence struct {
	Processors []PostProcessor
}

// NewSequence returns a Sequence of the given post-processors. Nil entries are dropped.
func NewSequence(processors ...PostProcessor) *Sequence {
	s := &Sequence{}
	for _, p := range processors {
		if p != nil {
			s.Processors = append(s.Processors, p)
		}
	}
	return s
}

func (*Sequence) isPostProcessor() {}

// AddedTokens implements PostProcessor.
func (s *Sequence) AddedTokens(isPair bool) int {
	total := 0
	for _, p := range s.Processors {
		total += p.AddedTokens(isPair)
	}
	return total
}

// ProcessEncodings implements PostProcessor.
func (s *Sequence) ProcessEncodings(encodings []*encoding.Encoding, addSpecialTokens bool) ([]*encoding.Encoding, error) {
	var err error
	for _, p := range s.Processors {
		encodings, err = p.ProcessEncodings(encodings, addSpecialTokens)
		if err != nil {
			return nil, err
		}
	}
	return encodings, nil
}
