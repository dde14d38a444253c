package tokenizers

import (
	"encoding/json"

	"github.com/gomlx/go-tokenizers/encoding"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/jsonutil"
)

// DefaultPadToken is the padding token used by DefaultPaddingParams.
const DefaultPadToken = "[PAD]"

// PaddingParams configures how encodings are padded.
type PaddingParams struct {
	Strategy PaddingStrategy

	// Length of the padded encodings, only used with PadFixed.
	Length int

	Direction Direction

	// PadToMultipleOf, if > 0, rounds the padding length up to a multiple of its value.
	// For example, if we were going to pad to a length of 250 but PadToMultipleOf=8, then
	// we pad to 256.
	PadToMultipleOf int

	PadID     uint32
	PadTypeID uint32
	PadToken  string
}

// DefaultPaddingParams returns the default padding: to the longest encoding of the batch,
// on the right, with "[PAD]" (id 0).
func DefaultPaddingParams() PaddingParams {
	return PaddingParams{
		Strategy:  PadLongest,
		Direction: Right,
		PadToken:  DefaultPadToken,
	}
}

// paddingJSON is the tokenizer.json form of PaddingParams: the strategy is either the string
// "BatchLongest" or {"Fixed": length}.
type paddingJSON struct {
	Strategy        json.RawMessage `json:"strategy"`
	Direction       Direction       `json:"direction"`
	PadToMultipleOf *int            `json:"pad_to_multiple_of"`
	PadID           uint32          `json:"pad_id"`
	PadTypeID       uint32          `json:"pad_type_id"`
	PadToken        string          `json:"pad_token"`
}

// MarshalJSON implements json.Marshaler.
func (p PaddingParams) MarshalJSON() ([]byte, error) {
	pj := paddingJSON{
		Direction: p.Direction,
		PadID:     p.PadID,
		PadTypeID: p.PadTypeID,
		PadToken:  p.PadToken,
	}
	var err error
	if p.Strategy == PadFixed {
		pj.Strategy, err = jsonutil.Marshal(map[string]int{"Fixed": p.Length})
	} else {
		pj.Strategy, err = jsonutil.Marshal("BatchLongest")
	}
	if err != nil {
		return nil, err
	}
	if p.PadToMultipleOf > 0 {
		pj.PadToMultipleOf = &p.PadToMultipleOf
	}
	return jsonutil.Marshal(pj)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PaddingParams) UnmarshalJSON(data []byte) error {
	pj := paddingJSON{Direction: Right, PadToken: DefaultPadToken}
	if err := jsonutil.Decode("padding", data, &pj); err != nil {
		return err
	}
	*p = PaddingParams{
		Strategy:  PadLongest,
		Direction: pj.Direction,
		PadID:     pj.PadID,
		PadTypeID: pj.PadTypeID,
		PadToken:  pj.PadToken,
	}
	if pj.PadToMultipleOf != nil {
		p.PadToMultipleOf = *pj.PadToMultipleOf
	}
	if jsonutil.IsNull(pj.Strategy) {
		return nil
	}
	var name string
	if err := json.Unmarshal(pj.Strategy, &name); err == nil {
		if name != "BatchLongest" {
			return errs.Errorf(errs.ErrConfig, "unknown padding strategy %q", name)
		}
		return nil
	}
	var fixed struct {
		Fixed *int `json:"Fixed"`
	}
	if err := jsonutil.Decode("padding strategy", pj.Strategy, &fixed); err != nil {
		return err
	}
	if fixed.Fixed == nil {
		return errs.Errorf(errs.ErrConfig, "unknown padding strategy %s", jsonutil.Truncate(pj.Strategy))
	}
	p.Strategy = PadFixed
	p.Length = *fixed.Fixed
	return nil
}

// PadEncodings pads all encodings in place to the same length: the length of the longest
// one (PadLongest) or params.Length (PadFixed), rounded up to a multiple of
// params.PadToMultipleOf. Encodings already long enough are left unchanged.
func PadEncodings(encodings []*encoding.Encoding, params PaddingParams) {
	if len(encodings) == 0 {
		return
	}
	padLength := params.Length
	if params.Strategy == PadLongest {
		padLength = 0
		for _, e := range encodings {
			padLength = max(padLength, e.Len())
		}
	}
	if multiple := params.PadToMultipleOf; multiple > 0 && padLength%multiple > 0 {
		padLength += multiple - padLength%multiple
	}
	for _, e := range encodings {
		e.Pad(padLength, params.PadID, params.PadTypeID, params.PadToken, params.Direction)
	}
}
