package tokenizers

import (
	"encoding/json"
	"strings"

	"github.com/gomlx/go-tokenizers/encoding"
	"github.com/gomlx/go-tokenizers/errs"
)

// Direction is used in truncation and padding configuration.
type Direction = encoding.Direction

const (
	Left  = encoding.Left
	Right = encoding.Right
)

// TruncationStrategy generally affects how truncation is applied when the inputs are pairs of
// sentences. It is usually set by the preloaded tokenization model.
type TruncationStrategy uint8

const (
	// TruncateLongestFirst removes tokens from the longest sequence first, one at a time.
	TruncateLongestFirst TruncationStrategy = iota
	TruncateOnlyFirst
	TruncateOnlySecond
)

// PaddingStrategy can be set to PadLongest, which pads the tokenization to the longest sequence
// in the batch, or PadFixed when it pads to a fixed length.
type PaddingStrategy uint8

const (
	PadLongest PaddingStrategy = iota
	PadFixed
)

//go:generate stringer -type=TruncationStrategy,PaddingStrategy -output=types_string.go .

// MarshalJSON implements json.Marshaler, using the names of tokenizer.json ("LongestFirst", ...).
func (s TruncationStrategy) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.TrimPrefix(s.String(), "Truncate"))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *TruncationStrategy) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errs.Wrap(errs.ErrConfig, err, "parsing truncation strategy")
	}
	for _, candidate := range []TruncationStrategy{TruncateLongestFirst, TruncateOnlyFirst, TruncateOnlySecond} {
		if name == strings.TrimPrefix(candidate.String(), "Truncate") {
			*s = candidate
			return nil
		}
	}
	return errs.Errorf(errs.ErrConfig, "unknown truncation strategy %q", name)
}

// DefaultMaxLength is the truncation length used by DefaultTruncationParams.
const DefaultMaxLength = 512

// TruncationParams configures how encodings are truncated.
type TruncationParams struct {
	Direction Direction          `json:"direction"`
	MaxLength int                `json:"max_length"`
	Strategy  TruncationStrategy `json:"strategy"`

	// Stride is the number of tokens of the previous part repeated at the start of each
	// overflowing part.
	Stride int `json:"stride"`
}

// DefaultTruncationParams returns the default truncation: longest first, to 512 tokens, on the right.
func DefaultTruncationParams() TruncationParams {
	return TruncationParams{
		Direction: Right,
		MaxLength: DefaultMaxLength,
		Strategy:  TruncateLongestFirst,
	}
}

// TruncateEncodings truncates enc and pair (which can be nil) in place so that together they
// have at most params.MaxLength tokens. The removed tokens go into the Overflowing encodings.
//
// It returns an error wrapping errs.ErrInvalidInput if the strategy refers to a missing pair,
// or if the sequence to truncate is too short to remove enough tokens.
func TruncateEncodings(enc, pair *encoding.Encoding, params TruncationParams) error {
	if params.MaxLength == 0 {
		if err := enc.Truncate(0, params.Stride, params.Direction); err != nil {
			return err
		}
		if pair != nil {
			return pair.Truncate(0, params.Stride, params.Direction)
		}
		return nil
	}

	totalLength := enc.Len()
	if pair != nil {
		totalLength += pair.Len()
	}
	if totalLength <= params.MaxLength {
		return nil
	}
	toRemove := totalLength - params.MaxLength

	switch params.Strategy {
	case TruncateLongestFirst:
		if pair == nil {
			return enc.Truncate(params.MaxLength, params.Stride, params.Direction)
		}
		// n1 is the length of the shortest sequence.
		n1, n2 := enc.Len(), pair.Len()
		swap := n1 > n2
		if swap {
			n1, n2 = n2, n1
		}
		if n1 > params.MaxLength {
			n2 = n1
		} else {
			n2 = max(n1, params.MaxLength-n1)
		}
		if n1+n2 > params.MaxLength {
			n1 = params.MaxLength / 2
			n2 = n1 + params.MaxLength%2
		}
		if swap {
			n1, n2 = n2, n1
		}
		if err := enc.Truncate(n1, params.Stride, params.Direction); err != nil {
			return err
		}
		return pair.Truncate(n2, params.Stride, params.Direction)

	case TruncateOnlyFirst, TruncateOnlySecond:
		target := enc
		if params.Strategy == TruncateOnlySecond {
			if pair == nil {
				return errs.Errorf(errs.ErrInvalidInput, "truncation strategy %s requires a pair of sequences", params.Strategy)
			}
			target = pair
		}
		if target.Len() <= toRemove {
			return errs.Errorf(errs.ErrInvalidInput,
				"truncation with strategy %s: the sequence (%d tokens) is too short to remove %d tokens",
				params.Strategy, target.Len(), toRemove)
		}
		return target.Truncate(target.Len()-toRemove, params.Stride, params.Direction)
	}
	return errs.Errorf(errs.ErrConfig, "unknown truncation strategy %d", params.Strategy)
}
