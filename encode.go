package tokenizers

import (
	"github.com/gomlx/go-tokenizers/encoding"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/processors"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/pkg/errors"
	conciter "github.com/sourcegraph/conc/iter"
)

// Encoding is the result of a Tokenizer.Encode: the token ids and the fields aligned with them.
type Encoding = encoding.Encoding

// EncodeInput is either a single sequence or a pair of sequences, created with Single or Pair.
// The zero value is invalid.
type EncodeInput struct {
	first, second string
	isPair, valid bool
}

// Single creates an EncodeInput with a single sequence.
func Single(text string) EncodeInput {
	return EncodeInput{first: text, valid: true}
}

// Pair creates an EncodeInput with a pair of sequences, e.g. a question and its context.
func Pair(first, second string) EncodeInput {
	return EncodeInput{first: first, second: second, isPair: true, valid: true}
}

// IsPair returns whether the input holds a pair of sequences.
func (in EncodeInput) IsPair() bool { return in.isPair }

// Encode the given input into an Encoding: ids, tokens, offsets (in characters of the
// original text) and masks.
//
// If addSpecialTokens is true, the post-processor adds the special tokens the model
// expects (e.g. "[CLS]" and "[SEP]"). Truncation and padding are applied if configured.
func (t *Tokenizer) Encode(input EncodeInput, addSpecialTokens bool) (*Encoding, error) {
	if !input.valid {
		return nil, errs.Errorf(errs.ErrInvalidInput, "Tokenizer.Encode(): input must be created with Single() or Pair()")
	}
	enc, err := t.encodeSequence(input.first, 0)
	if err != nil {
		return nil, err
	}
	var pair *encoding.Encoding
	if input.isPair {
		pair, err = t.encodeSequence(input.second, 1)
		if err != nil {
			return nil, err
		}
	}
	return t.PostProcess(enc, pair, addSpecialTokens)
}

// EncodeBatch encodes each input in parallel, and returns the encodings in the same order.
// If padding is configured with PadLongest, all encodings are padded to the longest of the batch.
func (t *Tokenizer) EncodeBatch(inputs []EncodeInput, addSpecialTokens bool) ([]*Encoding, error) {
	noPadding := t.WithNoPadding()
	encodings, err := conciter.MapErr(inputs, func(input *EncodeInput) (*Encoding, error) {
		return noPadding.Encode(*input, addSpecialTokens)
	})
	if err != nil {
		return nil, err
	}
	if t.padding != nil {
		PadEncodings(encodings, *t.padding)
	}
	return encodings, nil
}

// encodeSequence runs one sequence through the pipeline, up to the model.
// Word ids are the indices of the pre-tokenized words.
func (t *Tokenizer) encodeSequence(text string, typeID uint32) (*encoding.Encoding, error) {
	p, err := t.added.extract(text, t.normalizer)
	if err != nil {
		return nil, errors.WithMessage(err, "normalizing")
	}
	if t.preTokenizer != nil {
		if err := t.preTokenizer.PreTokenize(p); err != nil {
			return nil, errors.WithMessage(err, "pre-tokenizing")
		}
	}
	err = p.Tokenize(func(n *normalizers.NormalizedString) ([]tokens.Token, error) {
		return t.model.Tokenize(n.Get())
	})
	if err != nil {
		return nil, errors.WithMessage(err, "tokenizing")
	}

	splits := p.Splits()
	numTokens := 0
	for _, split := range splits {
		numTokens += len(split.Tokens)
	}
	enc := encoding.WithCapacity(numTokens)
	for wordIdx, split := range splits {
		for _, token := range split.Tokens {
			offsets := split.Normalized.ConvertOffsets(token.Offsets)
			enc.Append(token.ID, typeID, token.Value, offsets, wordIdx, encoding.NoIndex, 0, 1)
		}
	}
	return enc, nil
}

// PostProcess applies truncation, the post-processor and padding to the encodings of a
// sequence (and of its pair, if not nil), as Encode does. The encodings are modified and
// should not be used afterward.
func (t *Tokenizer) PostProcess(enc, pair *Encoding, addSpecialTokens bool) (*Encoding, error) {
	if t.truncation != nil {
		params := *t.truncation
		if addSpecialTokens && t.postProcessor != nil && params.MaxLength > 0 {
			params.MaxLength = max(0, params.MaxLength-t.postProcessor.AddedTokens(pair != nil))
		}
		if err := TruncateEncodings(enc, pair, params); err != nil {
			return nil, err
		}
	}
	final, err := processors.Process(t.postProcessor, enc, pair, addSpecialTokens)
	if err != nil {
		return nil, errors.WithMessage(err, "post-processing")
	}
	if t.padding != nil {
		PadEncodings([]*encoding.Encoding{final}, *t.padding)
	}
	return final, nil
}
