package processors

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/go-tokenizers/encoding"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/tokens"
)

// SequenceID identifies the input sequence a template piece refers to.
type SequenceID string

const (
	SequenceA SequenceID = "A"
	SequenceB SequenceID = "B"
)

// Piece of a Template: either an input sequence or a special token, each with the type id
// to give to its tokens. Exactly one of Sequence or SpecialToken is set.
type Piece struct {
	Sequence     SequenceID
	SpecialToken string
	TypeID       uint32
}

// ParsePiece parses a piece of a template: "$A", "$B", "$" (same as "$A"), "$1" (sequence A
// with type id 1), or a special token, all optionally followed by ":<type id>", e.g. "$B:1"
// or "[SEP]:1".
func ParsePiece(s string) (Piece, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 2 || parts[0] == "" {
		return Piece{}, errs.Errorf(errs.ErrTemplate, "can't build a template piece from %q", s)
	}
	var piece Piece
	if rest, isSequence := strings.CutPrefix(parts[0], "$"); isSequence {
		switch rest {
		case "", "A", "a":
			piece.Sequence = SequenceA
		case "B", "b":
			piece.Sequence = SequenceB
		default:
			typeID, err := strconv.ParseUint(rest, 10, 32)
			if err != nil {
				return Piece{}, errs.Errorf(errs.ErrTemplate, "can't build a template piece from %q", s)
			}
			piece.Sequence = SequenceA
			piece.TypeID = uint32(typeID)
		}
	} else {
		piece.SpecialToken = parts[0]
	}
	if len(parts) == 2 {
		typeID, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return Piece{}, errs.Wrap(errs.ErrTemplate, err, "invalid type id in template piece %q", s)
		}
		piece.TypeID = uint32(typeID)
	}
	return piece, nil
}

// String returns the piece in the format accepted by ParsePiece.
func (p Piece) String() string {
	if p.SpecialToken != "" {
		return p.SpecialToken + ":" + strconv.FormatUint(uint64(p.TypeID), 10)
	}
	return "$" + string(p.Sequence) + ":" + strconv.FormatUint(uint64(p.TypeID), 10)
}

type pieceSequenceJSON struct {
	ID     SequenceID `json:"id"`
	TypeID uint32     `json:"type_id"`
}

type pieceSpecialJSON struct {
	ID     string `json:"id"`
	TypeID uint32 `json:"type_id"`
}

type pieceJSON struct {
	Sequence     *pieceSequenceJSON `json:"Sequence,omitempty"`
	SpecialToken *pieceSpecialJSON  `json:"SpecialToken,omitempty"`
}

// MarshalJSON implements json.Marshaler, with the tokenizer.json format:
// {"Sequence": {"id": "A", "type_id": 0}} or {"SpecialToken": {"id": "[CLS]", "type_id": 0}}.
func (p Piece) MarshalJSON() ([]byte, error) {
	if p.SpecialToken != "" {
		return json.Marshal(pieceJSON{SpecialToken: &pieceSpecialJSON{ID: p.SpecialToken, TypeID: p.TypeID}})
	}
	return json.Marshal(pieceJSON{Sequence: &pieceSequenceJSON{ID: p.Sequence, TypeID: p.TypeID}})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Piece) UnmarshalJSON(data []byte) error {
	var pj pieceJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return errs.Wrap(errs.ErrConfig, err, "parsing template piece")
	}
	switch {
	case pj.Sequence != nil:
		if pj.Sequence.ID != SequenceA && pj.Sequence.ID != SequenceB {
			return errs.Errorf(errs.ErrConfig, "unknown template sequence %q", pj.Sequence.ID)
		}
		*p = Piece{Sequence: pj.Sequence.ID, TypeID: pj.Sequence.TypeID}
	case pj.SpecialToken != nil:
		*p = Piece{SpecialToken: pj.SpecialToken.ID, TypeID: pj.SpecialToken.TypeID}
	default:
		return errs.Errorf(errs.ErrConfig, "template piece %s is neither a Sequence nor a SpecialToken", string(data))
	}
	return nil
}

// ParseTemplate parses a space separated list of pieces, e.g. "[CLS] $A [SEP] $B:1 [SEP]:1".
func ParseTemplate(template string) ([]Piece, error) {
	var pieces []Piece
	for _, s := range strings.Fields(template) {
		piece, err := ParsePiece(s)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, piece)
	}
	return pieces, nil
}

// SpecialToken of a Template. A single special token (ID) may stand for several tokens.
type SpecialToken struct {
	ID     string   `json:"id"`
	IDs    []uint32 `json:"ids"`
	Tokens []string `json:"tokens"`
}

// NewSpecialToken returns a SpecialToken made of a single token.
func NewSpecialToken(token string, id uint32) SpecialToken {
	return SpecialToken{ID: token, IDs: []uint32{id}, Tokens: []string{token}}
}

// Template adds special tokens following a template for single sequences, and one for pairs.
type Template struct {
	Single, Pair  []Piece
	SpecialTokens map[string]SpecialToken
}

// NewTemplate parses the single and pair templates (see ParseTemplate) and validates that
// every special token they use is given.
//
// An empty pair template defaults to the single template followed by "$B:1".
func NewTemplate(single, pair string, specialTokens ...SpecialToken) (*Template, error) {
	if strings.TrimSpace(single) == "" {
		single = "$A"
	}
	t := &Template{SpecialTokens: make(map[string]SpecialToken, len(specialTokens))}
	var err error
	if t.Single, err = ParseTemplate(single); err != nil {
		return nil, err
	}
	if strings.TrimSpace(pair) == "" {
		t.Pair = append(slices.Clone(t.Single), Piece{Sequence: SequenceB, TypeID: 1})
	} else if t.Pair, err = ParseTemplate(pair); err != nil {
		return nil, err
	}
	for _, st := range specialTokens {
		t.SpecialTokens[st.ID] = st
	}
	if err = t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the sequences used by the templates, and that the special tokens they
// reference are all defined.
func (t *Template) Validate() error {
	count := func(pieces []Piece, seq SequenceID) int {
		n := 0
		for _, p := range pieces {
			if p.Sequence == seq {
				n++
			}
		}
		return n
	}
	if count(t.Single, SequenceA) != 1 || count(t.Single, SequenceB) != 0 {
		return errs.Errorf(errs.ErrTemplate, "template for single sequences must use $A exactly once, and not $B")
	}
	if count(t.Pair, SequenceA) != 1 || count(t.Pair, SequenceB) != 1 {
		return errs.Errorf(errs.ErrTemplate, "template for pairs must use both $A and $B exactly once")
	}
	var missing []string
	for _, p := range slices.Concat(t.Single, t.Pair) {
		if p.SpecialToken == "" {
			continue
		}
		if _, found := t.SpecialTokens[p.SpecialToken]; !found && !slices.Contains(missing, p.SpecialToken) {
			missing = append(missing, p.SpecialToken)
		}
	}
	if len(missing) > 0 {
		return errs.Errorf(errs.ErrTemplate, "missing special token(s) %q", missing)
	}
	for id, st := range t.SpecialTokens {
		if len(st.IDs) != len(st.Tokens) {
			return errs.Errorf(errs.ErrTemplate, "special token %q has %d ids but %d tokens", id, len(st.IDs), len(st.Tokens))
		}
	}
	return nil
}

func (*Template) isPostProcessor() {}

// AddedTokens implements PostProcessor.
func (t *Template) AddedTokens(isPair bool) int {
	pieces := t.Single
	if isPair {
		pieces = t.Pair
	}
	total := 0
	for _, p := range pieces {
		if p.SpecialToken != "" {
			total += len(t.SpecialTokens[p.SpecialToken].IDs)
		}
	}
	return total
}

// ProcessEncodings implements PostProcessor. It returns a single Encoding.
func (t *Template) ProcessEncodings(encodings []*encoding.Encoding, addSpecialTokens bool) ([]*encoding.Encoding, error) {
	var template []Piece
	switch len(encodings) {
	case 1:
		template = t.Single
	case 2:
		template = t.Pair
	default:
		return nil, errs.Errorf(errs.ErrInvalidInput, "template post-processor takes 1 or 2 encodings, got %d", len(encodings))
	}

	// Overflowing encodings are combined like encoding.MergeWith does, each combination
	// getting its own special tokens.
	a := encodings[0]
	var b *encoding.Encoding
	var aOverflowing, bOverflowing []*encoding.Encoding
	aOverflowing, a.Overflowing = a.Overflowing, nil
	if len(encodings) == 2 {
		b = encodings[1]
		bOverflowing, b.Overflowing = b.Overflowing, nil
	}
	result, err := t.apply(template, a, b, addSpecialTokens)
	if err != nil {
		return nil, err
	}
	for _, oa := range aOverflowing {
		o, err := t.apply(template, oa, b, addSpecialTokens)
		if err != nil {
			return nil, err
		}
		result.Overflowing = append(result.Overflowing, o)
		for _, ob := range bOverflowing {
			o, err = t.apply(template, oa, ob, addSpecialTokens)
			if err != nil {
				return nil, err
			}
			result.Overflowing = append(result.Overflowing, o)
		}
	}
	for _, ob := range bOverflowing {
		o, err := t.apply(template, a, ob, addSpecialTokens)
		if err != nil {
			return nil, err
		}
		result.Overflowing = append(result.Overflowing, o)
	}
	return []*encoding.Encoding{result}, nil
}

// apply the template to a and b (nil for single sequences), without their overflowing encodings.
func (t *Template) apply(template []Piece, a, b *encoding.Encoding, addSpecialTokens bool) (*encoding.Encoding, error) {
	result := encoding.WithCapacity(a.Len())
	for _, p := range template {
		if p.SpecialToken != "" {
			if !addSpecialTokens {
				continue
			}
			st, found := t.SpecialTokens[p.SpecialToken]
			if !found {
				return nil, errs.Errorf(errs.ErrTemplate, "missing special token %q", p.SpecialToken)
			}
			for ii, id := range st.IDs {
				result.Append(id, p.TypeID, st.Tokens[ii], tokens.Offsets{}, encoding.NoIndex, encoding.NoIndex, 1, 1)
			}
			continue
		}
		e, sequenceID := a, 0
		if p.Sequence == SequenceB {
			e, sequenceID = b, 1
		}
		if e == nil {
			return nil, errs.Errorf(errs.ErrInvalidInput, "template uses $%s, but no such sequence was given", p.Sequence)
		}
		for ii := range e.Len() {
			result.Append(e.IDs[ii], p.TypeID, e.Tokens[ii], e.Offsets[ii], e.WordIDs[ii], sequenceID,
				e.SpecialTokensMask[ii], e.AttentionMask[ii])
		}
	}
	return result, nil
}
