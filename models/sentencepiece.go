package models

import (
	"log/slog"

	"github.com/gomlx/go-tokenizers/errs"
	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
	"google.golang.org/protobuf/proto"
)

// SentencePieceModel holds what is needed to rebuild a SentencePiece unigram tokenizer
// from its `.model` file.
type SentencePieceModel struct {
	Unigram *Unigram

	// PrecompiledCharsmap is the normalization rules blob, to be used with normalizers.Precompiled.
	// It may be empty.
	PrecompiledCharsmap []byte

	// AddDummyPrefix indicates a space (the "▁" replacement) is prepended to the input.
	AddDummyPrefix bool

	// ByteFallback is true if the vocabulary includes the 256 "<0xXX>" byte pieces.
	ByteFallback bool

	// ControlPieces are the unknown and control pieces (e.g. "<s>", "</s>"), in vocabulary order.
	ControlPieces []string

	// UserDefinedPieces are pieces matched verbatim, before tokenization.
	UserDefinedPieces []string
}

// UnigramFromSentencePiece parses the contents of a SentencePiece `.model` file
// (a serialized ModelProto).
func UnigramFromSentencePiece(data []byte) (*SentencePieceModel, error) {
	if len(data) == 0 {
		return nil, errs.Errorf(errs.ErrModelLoad, "empty SentencePiece model")
	}
	var model gosp.ModelProto
	if err := proto.Unmarshal(data, &model); err != nil {
		return nil, errs.Wrap(errs.ErrModelLoad, err, "unmarshal SentencePiece model")
	}

	spPieces := model.GetPieces()
	pieces := make([]UnigramPiece, 0, len(spPieces))
	unkID := -1
	byteFallback := false
	var control, userDefined []string
	for ii, piece := range spPieces {
		switch piece.GetType() {
		case gosp.ModelProto_SentencePiece_UNKNOWN:
			if unkID < 0 {
				unkID = ii
			}
			control = append(control, piece.GetPiece())
		case gosp.ModelProto_SentencePiece_CONTROL:
			control = append(control, piece.GetPiece())
		case gosp.ModelProto_SentencePiece_USER_DEFINED:
			userDefined = append(userDefined, piece.GetPiece())
		}
		if piece.GetPiece() == byteFallbackToken(0) {
			byteFallback = true
		}
		pieces = append(pieces, UnigramPiece{Piece: piece.GetPiece(), Score: float64(piece.GetScore())})
	}
	unigram, err := NewUnigram(pieces, unkID, byteFallback)
	if err != nil {
		return nil, err
	}
	spm := &SentencePieceModel{
		Unigram:             unigram,
		PrecompiledCharsmap: model.GetNormalizerSpec().GetPrecompiledCharsmap(),
		AddDummyPrefix:      model.GetNormalizerSpec().GetAddDummyPrefix(),
		ByteFallback:        byteFallback,
		ControlPieces:       control,
		UserDefinedPieces:   userDefined,
	}
	slog.Debug("loaded SentencePiece model", "pieces", len(pieces), "unk_id", unkID,
		"byte_fallback", byteFallback, "charsmap_bytes", len(spm.PrecompiledCharsmap))
	return spm, nil
}
