package tokenizers

import (
	"github.com/gomlx/go-tokenizers/decoders"
	"github.com/gomlx/go-tokenizers/internal/fsutil"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/pkg/errors"
)

// FromSentencePiece creates a Tokenizer from the contents of a SentencePiece unigram `.model`
// file: the Unigram model, preceded by the precompiled normalization rules and the Metaspace
// pre-tokenizer, and followed by the matching decoders.
//
// Control pieces (e.g. "<s>", "</s>") and the unknown piece become special tokens, and
// user-defined pieces become added tokens.
func FromSentencePiece(data []byte) (*Tokenizer, error) {
	spm, err := models.UnigramFromSentencePiece(data)
	if err != nil {
		return nil, err
	}
	t := New(spm.Unigram)

	var normalizerSeq []normalizers.Normalizer
	if len(spm.PrecompiledCharsmap) > 0 {
		precompiled, err := normalizers.NewPrecompiled(spm.PrecompiledCharsmap)
		if err != nil {
			return nil, errors.WithMessage(err, "SentencePiece normalizer")
		}
		normalizerSeq = append(normalizerSeq, precompiled)
	}
	spaces, err := normalizers.NewReplaceRegex(` {2,}`, " ")
	if err != nil {
		return nil, err
	}
	normalizerSeq = append(normalizerSeq, spaces)

	metaspace := pretokenizers.NewMetaspace()
	if !spm.AddDummyPrefix {
		metaspace.PrependScheme = pretokenizers.PrependNever
	}
	decoder := decoders.NewMetaspace()
	decoder.PrependScheme = metaspace.PrependScheme

	t = t.WithNormalizer(normalizers.NewSequence(normalizerSeq...)).WithPreTokenizer(metaspace)
	if spm.ByteFallback {
		t = t.WithDecoder(decoders.NewSequence(decoders.ByteFallback{}, decoders.Fuse{}, decoder))
	} else {
		t = t.WithDecoder(decoder)
	}

	special := make([]tokens.AddedToken, 0, len(spm.ControlPieces))
	for _, piece := range spm.ControlPieces {
		special = append(special, tokens.NewAddedToken(piece, true))
	}
	userDefined := make([]tokens.AddedToken, 0, len(spm.UserDefinedPieces))
	for _, piece := range spm.UserDefinedPieces {
		userDefined = append(userDefined, tokens.NewAddedToken(piece, false).WithNormalized(false))
	}
	return t.WithSpecialTokens(special...).WithAddedTokens(userDefined...), nil
}

// FromSentencePieceFile is like FromSentencePiece, reading the `.model` file from filePath.
func FromSentencePieceFile(filePath string) (*Tokenizer, error) {
	data, err := fsutil.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	t, err := FromSentencePiece(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading SentencePiece model %q", filePath)
	}
	return t, nil
}
