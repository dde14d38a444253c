// Package normalizers implements the first stage of the tokenization pipeline: cleaning
// and transforming the raw text (Unicode normalization, lower-casing, accents stripping, ...)
// while keeping track of the alignment with the original text, see NormalizedString.
//
// The set of normalizers is closed: BertNormalizer, NFC, NFD, NFKC, NFKD, Lowercase, Strip,
// StripAccents, Prepend, Replace, Nmt, Precompiled and Sequence. They can be serialized with
// ToJSON and FromJSON, following the HuggingFace tokenizer.json format.
package normalizers

import (
	"unicode"

	"github.com/gomlx/go-tokenizers/internal/regex"
	"github.com/pkg/errors"
	"golang.org/x/text/runes"
)

// Normalizer transforms a NormalizedString in place.
// Normalizers are immutable once built, and safe for concurrent use.
type Normalizer interface {
	Normalize(n *NormalizedString) error

	// isNormalizer restricts implementations to this package.
	isNormalizer()
}

// NormalizeString is a convenience function that applies normalizer to text.
func NormalizeString(normalizer Normalizer, text string) (string, error) {
	n := New(text)
	if err := normalizer.Normalize(n); err != nil {
		return "", err
	}
	return n.Get(), nil
}

// Bert normalizer, as used by the original BERT tokenizer.
type Bert struct {
	// CleanText removes control characters and replaces all whitespace by the classic one.
	CleanText bool `json:"clean_text"`

	// HandleChineseChars puts spaces around Chinese (CJK) characters, so they are split individually.
	HandleChineseChars bool `json:"handle_chinese_chars"`

	// StripAccents removes accents. If nil, it follows Lowercase.
	StripAccents *bool `json:"strip_accents"`

	Lowercase bool `json:"lowercase"`
}

// NewBert returns a Bert normalizer with the default configuration: clean text, handle
// Chinese characters and lower case (and hence strip accents).
func NewBert() *Bert {
	return &Bert{CleanText: true, HandleChineseChars: true, Lowercase: true}
}

func (*Bert) isNormalizer() {}

// Normalize implements Normalizer.
func (b *Bert) Normalize(n *NormalizedString) error {
	if b.CleanText {
		n.Filter(func(r rune) bool {
			return !(r == 0 || r == unicode.ReplacementChar || isBertControl(r))
		})
		n.Map(func(r rune) rune {
			if isBertWhitespace(r) {
				return ' '
			}
			return r
		})
	}
	if b.HandleChineseChars {
		n.MapRunes(func(r rune) []rune {
			if IsChineseChar(r) {
				return []rune{' ', r, ' '}
			}
			return []rune{r}
		})
	}
	stripAccents := b.Lowercase
	if b.StripAccents != nil {
		stripAccents = *b.StripAccents
	}
	if stripAccents {
		stripAccentsFrom(n)
	}
	if b.Lowercase {
		n.Lowercase()
	}
	return nil
}

func isBertWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isBertControl(r rune) bool {
	switch r {
	case '\t', '\n', '\r':
		return false
	}
	// Other (C*) categories, including unassigned code points.
	return !unicode.In(r, unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Z)
}

// IsChineseChar returns whether r is in the CJK Unicode blocks.
func IsChineseChar(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B920 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}

var nonSpacingMarks = runes.In(unicode.Mn)

func stripAccentsFrom(n *NormalizedString) {
	n.NFD()
	n.Filter(func(r rune) bool { return !nonSpacingMarks.Contains(r) })
}

// NFC applies the canonical composition Unicode normalization.
type NFC struct{}

func (NFC) isNormalizer() {}

// Normalize implements Normalizer.
func (NFC) Normalize(n *NormalizedString) error { n.NFC(); return nil }

// NFD applies the canonical decomposition Unicode normalization.
type NFD struct{}

func (NFD) isNormalizer() {}

// Normalize implements Normalizer.
func (NFD) Normalize(n *NormalizedString) error { n.NFD(); return nil }

// NFKC applies the compatibility composition Unicode normalization.
type NFKC struct{}

func (NFKC) isNormalizer() {}

// Normalize implements Normalizer.
func (NFKC) Normalize(n *NormalizedString) error { n.NFKC(); return nil }

// NFKD applies the compatibility decomposition Unicode normalization.
type NFKD struct{}

func (NFKD) isNormalizer() {}

// Normalize implements Normalizer.
func (NFKD) Normalize(n *NormalizedString) error { n.NFKD(); return nil }

// Lowercase converts the text to lower case.
type Lowercase struct{}

func (Lowercase) isNormalizer() {}

// Normalize implements Normalizer.
func (Lowercase) Normalize(n *NormalizedString) error { n.Lowercase(); return nil }

// StripAccents removes the accents (non-spacing marks) after a canonical decomposition.
type StripAccents struct{}

func (StripAccents) isNormalizer() {}

// Normalize implements Normalizer.
func (StripAccents) Normalize(n *NormalizedString) error {
	stripAccentsFrom(n)
	return nil
}

// Strip removes whitespace from the left and/or right of the text.
type Strip struct {
	Left  bool `json:"strip_left"`
	Right bool `json:"strip_right"`
}

// NewStrip returns a Strip normalizer.
func NewStrip(left, right bool) *Strip { return &Strip{Left: left, Right: right} }

func (*Strip) isNormalizer() {}

// Normalize implements Normalizer.
func (s *Strip) Normalize(n *NormalizedString) error {
	n.strip(s.Left, s.Right)
	return nil
}

// Prepend adds a prefix to non-empty texts. Used by SentencePiece style tokenizers to add "▁".
type Prepend struct {
	Prepend string `json:"prepend"`
}

// NewPrepend returns a Prepend normalizer.
func NewPrepend(prefix string) *Prepend { return &Prepend{Prepend: prefix} }

func (*Prepend) isNormalizer() {}

// Normalize implements Normalizer.
func (p *Prepend) Normalize(n *NormalizedString) error {
	n.Prepend(p.Prepend)
	return nil
}

// Replace replaces every match of a pattern (literal or regex) with Content.
type Replace struct {
	Pattern *regex.Pattern `json:"pattern"`
	Content string         `json:"content"`
}

// NewReplace returns a Replace normalizer for the literal string pattern.
func NewReplace(pattern, content string) *Replace {
	return &Replace{Pattern: regex.Literal(pattern), Content: content}
}

// NewReplaceRegex returns a Replace normalizer for the regular expression expr.
// It returns an error wrapping errs.ErrInvalidPattern if expr doesn't compile.
func NewReplaceRegex(expr, content string) (*Replace, error) {
	pattern, err := regex.Regex(expr)
	if err != nil {
		return nil, err
	}
	return &Replace{Pattern: pattern, Content: content}, nil
}

func (*Replace) isNormalizer() {}

// Normalize implements Normalizer.
func (r *Replace) Normalize(n *NormalizedString) error {
	return errors.WithMessagef(n.Replace(r.Pattern, r.Content), "normalizer Replace(%s)", r.Pattern)
}

// Nmt normalizes the text as done by the neural machine translation models: removes
// control characters and maps the various whitespace characters to a space.
type Nmt struct{}

func (Nmt) isNormalizer() {}

// Normalize implements Normalizer.
func (Nmt) Normalize(n *NormalizedString) error {
	n.Filter(func(r rune) bool {
		switch {
		case r >= 0x0001 && r <= 0x0008, r == 0x000B, r >= 0x000E && r <= 0x001F,
			r == 0x007F, r == 0x008F, r == 0x009F:
			return false
		}
		return true
	})
	n.Map(func(r rune) rune {
		switch {
		case r == 0x0009, r == 0x000A, r == 0x000C, r == 0x000D, r == 0x1680,
			r >= 0x200B && r <= 0x200F, r == 0x2028, r == 0x2029, r == 0x2581,
			r == 0xFEFF, r == 0xFFFD:
			return ' '
		}
		return r
	})
	return nil
}

// Sequence applies a list of normalizers in order.
type Sequence struct {
	Normalizers []Normalizer
}

// NewSequence returns a Sequence of the given normalizers. Nil entries are dropped.
func NewSequence(normalizers ...Normalizer) *Sequence {
	s := &Sequence{}
	for _, n := range normalizers {
		if n != nil {
			s.Normalizers = append(s.Normalizers, n)
		}
	}
	return s
}

func (*Sequence) isNormalizer() {}

// Normalize implements Normalizer.
func (s *Sequence) Normalize(n *NormalizedString) error {
	for _, normalizer := range s.Normalizers {
		if err := normalizer.Normalize(n); err != nil {
			return err
		}
	}
	return nil
}
