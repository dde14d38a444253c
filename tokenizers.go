// Package tokenizers provides a pure Go implementation of today's most used tokenizers, with a focus
// on performance and versatility.
//
// A Tokenizer is a pipeline of stages, compatible with
// [HuggingFace Tokenizers](https://huggingface.co/docs/tokenizers/index):
//
//  1. Normalizer: cleans up the input text (unicode normalization, lower casing, ...).
//  2. PreTokenizer: splits the normalized text into words.
//  3. Model: splits each word into tokens of its vocabulary (BPE, WordPiece, WordLevel or Unigram).
//  4. PostProcessor: adds the special tokens a model expects, and combines pairs of sequences.
//
// The Decoder converts token ids back into text. Trainers (see package trainers) build new
// vocabularies from a corpus.
//
// A Tokenizer can be created from a `tokenizer.json` file (FromFile, FromBytes), from the local
// HuggingFace hub cache (FromPretrained), or assembled from its parts with New and the With*
// methods.
package tokenizers

import (
	"fmt"
	"strings"

	"github.com/gomlx/go-tokenizers/decoders"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/gomlx/go-tokenizers/processors"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/pkg/errors"
)

// Tokenizer represents an initialized Tokenizer, including various configurations
// for truncation, padding, and how to encode.
//
// It can be used to encode (`Encode` and `EncodeBatch`) strings to token ids and other optional fields,
// and to decode (`Decode` and `DecodeBatch`) token ids back to strings.
//
// A Tokenizer is immutable: the With* methods return a modified copy, sharing the unchanged
// stages with the original. So it is safe for concurrent use.
//
// To build a new Tokenizer from a JSon configuration, see `FromFile` or `FromBytes`.
// To load the JSon configuration from the local HuggingFace cache, use `FromPretrained`.
type Tokenizer struct {
	model         models.Model
	normalizer    normalizers.Normalizer
	preTokenizer  pretokenizers.PreTokenizer
	postProcessor processors.PostProcessor
	decoder       decoders.Decoder

	// truncation and padding are nil if not set.
	truncation *TruncationParams
	padding    *PaddingParams

	added *addedVocabulary
}

// panicf generates an error message and panics with it, in one function.
func panicf(format string, args ...any) {
	err := errors.Errorf(format, args...)
	panic(err)
}

// New creates a Tokenizer with the given model, and no other stage.
//
// It panics if model is nil.
func New(model models.Model) *Tokenizer {
	if model == nil {
		panicf("tokenizers.New(nil): a model is required")
	}
	return &Tokenizer{
		model: model,
		added: newAddedVocabulary(),
	}
}

// clone returns a shallow copy: stages are immutable and can be shared.
func (t *Tokenizer) clone() *Tokenizer {
	newT := *t
	return &newT
}

// String implements fmt.Stringer.
func (t *Tokenizer) String() string {
	if t == nil {
		return "nil"
	}
	var parts []string
	parts = append(parts, fmt.Sprintf("  Model: %T (vocab size %d)", t.model, t.model.GetVocabSize()))
	parts = append(parts, fmt.Sprintf("  Normalizer: %s", typeName(t.normalizer)))
	parts = append(parts, fmt.Sprintf("  PreTokenizer: %s", typeName(t.preTokenizer)))
	parts = append(parts, fmt.Sprintf("  PostProcessor: %s", typeName(t.postProcessor)))
	parts = append(parts, fmt.Sprintf("  Decoder: %s", typeName(t.decoder)))
	parts = append(parts, fmt.Sprintf("  AddedTokens: %d", t.added.len()))
	parts = append(parts, fmt.Sprintf("  Truncation: IsTruncationSet=%v", t.truncation != nil))
	if t.truncation != nil {
		parts = append(parts, fmt.Sprintf("    TruncationDirection=%v", t.truncation.Direction))
		parts = append(parts, fmt.Sprintf("    TruncationMaxLength=%v", t.truncation.MaxLength))
		parts = append(parts, fmt.Sprintf("    TruncationStride=%v", t.truncation.Stride))
		parts = append(parts, fmt.Sprintf("    TruncationStrategy=%v", t.truncation.Strategy))
	}
	parts = append(parts, fmt.Sprintf("  Padding: IsPaddingSet=%v", t.padding != nil))
	if t.padding != nil {
		parts = append(parts, fmt.Sprintf("    PaddingDirection=%v", t.padding.Direction))
		parts = append(parts, fmt.Sprintf("    PaddingStrategy=%v", t.padding.Strategy))
		parts = append(parts, fmt.Sprintf("    PaddingLength=%v", t.padding.Length))
		parts = append(parts, fmt.Sprintf("    PadToMultipleOf=%v", t.padding.PadToMultipleOf))
		parts = append(parts, fmt.Sprintf("    PadID=%v", t.padding.PadID))
		parts = append(parts, fmt.Sprintf("    PadTypeID=%v", t.padding.PadTypeID))
		parts = append(parts, fmt.Sprintf("    PadToken=%q", t.padding.PadToken))
	}
	return fmt.Sprintf("Tokenizer(\n%s\n)\n", strings.Join(parts, "\n"))
}

func typeName(stage any) string {
	if stage == nil {
		return "none"
	}
	return fmt.Sprintf("%T", stage)
}

// Model used to split words into tokens.
func (t *Tokenizer) Model() models.Model { return t.model }

// Normalizer returns the normalizer, or nil if none is set.
func (t *Tokenizer) Normalizer() normalizers.Normalizer { return t.normalizer }

// PreTokenizer returns the pre-tokenizer, or nil if none is set.
func (t *Tokenizer) PreTokenizer() pretokenizers.PreTokenizer { return t.preTokenizer }

// PostProcessor returns the post-processor, or nil if none is set.
func (t *Tokenizer) PostProcessor() processors.PostProcessor { return t.postProcessor }

// Decoder returns the decoder, or nil if none is set.
func (t *Tokenizer) Decoder() decoders.Decoder { return t.decoder }

// Truncation returns a copy of the truncation parameters, or nil if truncation is not set.
func (t *Tokenizer) Truncation() *TruncationParams {
	if t.truncation == nil {
		return nil
	}
	params := *t.truncation
	return &params
}

// Padding returns a copy of the padding parameters, or nil if padding is not set.
func (t *Tokenizer) Padding() *PaddingParams {
	if t.padding == nil {
		return nil
	}
	params := *t.padding
	return &params
}

// WithModel returns a copy of the Tokenizer using the given model.
// The ids of the added tokens are kept.
//
// It panics if model is nil.
func (t *Tokenizer) WithModel(model models.Model) *Tokenizer {
	if model == nil {
		panicf("Tokenizer.WithModel(nil): a model is required")
	}
	newT := t.clone()
	newT.model = model
	return newT
}

// WithNormalizer returns a copy of the Tokenizer using the given normalizer. It can be nil,
// to disable normalization.
func (t *Tokenizer) WithNormalizer(normalizer normalizers.Normalizer) *Tokenizer {
	newT := t.clone()
	newT.normalizer = normalizer
	newT.added = t.added.withNormalizer(normalizer)
	return newT
}

// WithPreTokenizer returns a copy of the Tokenizer using the given pre-tokenizer. It can be nil.
func (t *Tokenizer) WithPreTokenizer(preTokenizer pretokenizers.PreTokenizer) *Tokenizer {
	newT := t.clone()
	newT.preTokenizer = preTokenizer
	return newT
}

// WithPostProcessor returns a copy of the Tokenizer using the given post-processor. It can be nil.
//
// Notice the truncation parameters are not validated again: the effective maximum length
// depends on the number of special tokens added by the post-processor.
func (t *Tokenizer) WithPostProcessor(postProcessor processors.PostProcessor) *Tokenizer {
	newT := t.clone()
	newT.postProcessor = postProcessor
	return newT
}

// WithDecoder returns a copy of the Tokenizer using the given decoder. It can be nil, in which
// case decoding joins the tokens with spaces.
func (t *Tokenizer) WithDecoder(decoder decoders.Decoder) *Tokenizer {
	newT := t.clone()
	newT.decoder = decoder
	return newT
}

// WithTruncation returns a copy of the Tokenizer with truncation enabled with the given parameters.
//
// It returns an error (errs.ErrConfig) if the parameters are invalid: negative values, or a
// stride not smaller than the maximum length left once the special tokens of the
// post-processor are added.
func (t *Tokenizer) WithTruncation(params TruncationParams) (*Tokenizer, error) {
	if params.MaxLength < 0 || params.Stride < 0 {
		return nil, errs.Errorf(errs.ErrConfig, "Tokenizer.WithTruncation(max_length=%d, stride=%d): values must be >= 0",
			params.MaxLength, params.Stride)
	}
	if params.MaxLength > 0 {
		effective := params.MaxLength
		if t.postProcessor != nil {
			effective -= t.postProcessor.AddedTokens(false)
		}
		if effective < 0 {
			return nil, errs.Errorf(errs.ErrConfig,
				"Tokenizer.WithTruncation(max_length=%d): smaller than the %d special tokens added by the post-processor",
				params.MaxLength, params.MaxLength-effective)
		}
		if params.Stride >= effective {
			return nil, errs.Errorf(errs.ErrConfig,
				"Tokenizer.WithTruncation(stride=%d): it must be smaller than the effective max length %d",
				params.Stride, effective)
		}
	}
	newT := t.clone()
	newT.truncation = &params
	return newT, nil
}

// WithNoTruncation returns a copy of the Tokenizer with truncation disabled.
func (t *Tokenizer) WithNoTruncation() *Tokenizer {
	newT := t.clone()
	newT.truncation = nil
	return newT
}

// WithPadding returns a copy of the Tokenizer with padding enabled with the given parameters.
//
// It may panic if an invalid value is used (e.g.: PadFixed with a length <= 0).
func (t *Tokenizer) WithPadding(params PaddingParams) *Tokenizer {
	if params.Strategy == PadFixed && params.Length <= 0 {
		panicf("Tokenizer.WithPadding(): strategy PadFixed requires a length > 0, got %d", params.Length)
	}
	if params.PadToMultipleOf < 0 {
		panicf("Tokenizer.WithPadding(): PadToMultipleOf must be >= 0, got %d", params.PadToMultipleOf)
	}
	newT := t.clone()
	newT.padding = &params
	return newT
}

// WithNoPadding returns a copy of the Tokenizer with padding disabled.
func (t *Tokenizer) WithNoPadding() *Tokenizer {
	newT := t.clone()
	newT.padding = nil
	return newT
}

// paddingOrDefault returns a copy of the current padding parameters, or the default ones.
func (t *Tokenizer) paddingOrDefault() PaddingParams {
	if t.padding == nil {
		return DefaultPaddingParams()
	}
	return *t.padding
}

// WithPadToLongest enables padding (if not already) and sets the padding to the longest sequence in the batch.
//
// It returns a modified copy of the Tokenizer, to allow cascaded configuration calls.
func (t *Tokenizer) WithPadToLongest() *Tokenizer {
	params := t.paddingOrDefault()
	params.Strategy = PadLongest
	params.Length = 0
	return t.WithPadding(params)
}

// WithPadToLength enables padding (if not already) and sets the padding to the fixed given length.
//
// It returns a modified copy of the Tokenizer, to allow cascaded configuration calls.
//
// It may panic if an invalid value is used (length <= 0).
func (t *Tokenizer) WithPadToLength(length int) *Tokenizer {
	params := t.paddingOrDefault()
	params.Strategy = PadFixed
	params.Length = length
	return t.WithPadding(params)
}

// WithPadToken enables padding (if not already) and sets the token, and its id, used for padding.
//
// It returns a modified copy of the Tokenizer, to allow cascaded configuration calls.
func (t *Tokenizer) WithPadToken(token string, id uint32) *Tokenizer {
	params := t.paddingOrDefault()
	params.PadToken = token
	params.PadID = id
	return t.WithPadding(params)
}

// WithPaddingToMultipleOf enables padding (if not already) and sets the multiple of value.
// If specified, the padding length should always snap to the next multiple of the given value.
// For example, if we were going to pad with a length of 250 but multiple=8 then we will pad to 256.
//
// It returns a modified copy of the Tokenizer, to allow cascaded configuration calls.
func (t *Tokenizer) WithPaddingToMultipleOf(multiple int) *Tokenizer {
	params := t.paddingOrDefault()
	params.PadToMultipleOf = multiple
	return t.WithPadding(params)
}

// WithPaddingDirection enables padding (if not already) and sets the padding to happen in the given direction.
//
// It returns a modified copy of the Tokenizer, to allow cascaded configuration calls.
func (t *Tokenizer) WithPaddingDirection(direction Direction) *Tokenizer {
	params := t.paddingOrDefault()
	params.Direction = direction
	return t.WithPadding(params)
}

// WithAddedTokens returns a copy of the Tokenizer with the given tokens added to its vocabulary.
// Tokens with empty content are ignored, and tokens already added have their flags updated.
//
// Tokens that are already part of the model vocabulary keep the model id; the others get
// new ids, after the model vocabulary.
func (t *Tokenizer) WithAddedTokens(added ...tokens.AddedToken) *Tokenizer {
	newT := t.clone()
	newT.added = t.added.with(t.model, t.normalizer, added)
	return newT
}

// WithSpecialTokens is like WithAddedTokens, but marks all the tokens as special: they are
// skipped when decoding with skipSpecialTokens.
func (t *Tokenizer) WithSpecialTokens(special ...tokens.AddedToken) *Tokenizer {
	marked := make([]tokens.AddedToken, len(special))
	for ii, token := range special {
		marked[ii] = token.WithSpecial(true)
	}
	return t.WithAddedTokens(marked...)
}
