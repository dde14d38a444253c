package pretokenizers

import (
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/tokens"
)

// SplitPiece is one piece of a PreTokenizedString. Tokens is nil until the piece is tokenized:
// pieces with tokens (e.g. matched added tokens) are never split or normalized again.
type SplitPiece struct {
	Normalized *normalizers.NormalizedString
	Tokens     []tokens.Token
}

// PreTokenizedString is a text split into pieces by the pre-tokenizers, each piece keeping
// its alignment with the original text.
type PreTokenizedString struct {
	original string
	splits   []SplitPiece
}

// NewPreTokenizedString creates a PreTokenizedString with a single split holding text.
func NewPreTokenizedString(text string) *PreTokenizedString {
	return FromNormalized(normalizers.New(text))
}

// FromNormalized creates a PreTokenizedString with a single split holding n.
func FromNormalized(n *normalizers.NormalizedString) *PreTokenizedString {
	return &PreTokenizedString{
		original: n.Original(),
		splits:   []SplitPiece{{Normalized: n}},
	}
}

// Original text.
func (p *PreTokenizedString) Original() string { return p.original }

// Splits returns the current splits. They must not be modified.
func (p *PreTokenizedString) Splits() []SplitPiece { return p.splits }

// Split replaces each split that is not yet tokenized by the pieces returned by fn.
// Empty pieces are dropped.
func (p *PreTokenizedString) Split(fn func(index int, n *normalizers.NormalizedString) ([]*normalizers.NormalizedString, error)) error {
	return p.SplitWithTokens(func(index int, n *normalizers.NormalizedString) ([]SplitPiece, error) {
		pieces, err := fn(index, n)
		if err != nil {
			return nil, err
		}
		splits := make([]SplitPiece, len(pieces))
		for ii, piece := range pieces {
			splits[ii].Normalized = piece
		}
		return splits, nil
	})
}

// SplitWithTokens is like Split, but fn can return pieces already tokenized.
func (p *PreTokenizedString) SplitWithTokens(fn func(index int, n *normalizers.NormalizedString) ([]SplitPiece, error)) error {
	newSplits := make([]SplitPiece, 0, len(p.splits))
	for ii, split := range p.splits {
		if split.Tokens != nil {
			newSplits = append(newSplits, split)
			continue
		}
		pieces, err := fn(ii, split.Normalized)
		if err != nil {
			return err
		}
		for _, piece := range pieces {
			if piece.Normalized.IsEmpty() {
				continue
			}
			newSplits = append(newSplits, piece)
		}
	}
	p.splits = newSplits
	return nil
}

// Normalize applies fn to each split not yet tokenized.
func (p *PreTokenizedString) Normalize(fn func(n *normalizers.NormalizedString) error) error {
	for _, split := range p.splits {
		if split.Tokens != nil {
			continue
		}
		if err := fn(split.Normalized); err != nil {
			return err
		}
	}
	return nil
}

// Tokenize sets the tokens of each split not yet tokenized with the result of fn.
// Token offsets are relative to the normalized split.
func (p *PreTokenizedString) Tokenize(fn func(n *normalizers.NormalizedString) ([]tokens.Token, error)) error {
	for ii := range p.splits {
		if p.splits[ii].Tokens != nil {
			continue
		}
		toks, err := fn(p.splits[ii].Normalized)
		if err != nil {
			return err
		}
		if toks == nil {
			toks = []tokens.Token{}
		}
		p.splits[ii].Tokens = toks
	}
	return nil
}

// Piece is a pre-tokenized substring with its offsets in the original text.
type Piece struct {
	Value   string
	Offsets tokens.Offsets
}

// GetSplits returns the normalized value of each split, with its offsets in the original text.
func (p *PreTokenizedString) GetSplits() []Piece {
	pieces := make([]Piece, 0, len(p.splits))
	for _, split := range p.splits {
		pieces = append(pieces, Piece{Value: split.Normalized.Get(), Offsets: split.Normalized.OriginalOffsets()})
	}
	return pieces
}
