// Package pretokenizers implements the second stage of the tokenization pipeline: splitting
// the normalized text into word-like pieces, each tracking its offsets in the original text.
//
// The set of pre-tokenizers is closed: ByteLevel, Whitespace, WhitespaceSplit,
// BertPreTokenizer, Metaspace, CharDelimiterSplit, Split, Punctuation, Digits, UnicodeScripts
// and Sequence. They can be serialized with ToJSON and FromJSON, following the HuggingFace
// tokenizer.json format.
package pretokenizers

import (
	"strings"
	"unicode"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/bytelevel"
	"github.com/gomlx/go-tokenizers/internal/regex"
	"github.com/gomlx/go-tokenizers/normalizers"
)

// SplitBehavior is re-exported from normalizers for convenience.
type SplitBehavior = normalizers.SplitBehavior

const (
	Removed            = normalizers.SplitRemoved
	Isolated           = normalizers.SplitIsolated
	MergedWithPrevious = normalizers.SplitMergedWithPrevious
	MergedWithNext     = normalizers.SplitMergedWithNext
	Contiguous         = normalizers.SplitContiguous
)

// PreTokenizer splits a PreTokenizedString in place.
// PreTokenizers are immutable once built, and safe for concurrent use.
type PreTokenizer interface {
	PreTokenize(p *PreTokenizedString) error

	// isPreTokenizer restricts implementations to this package.
	isPreTokenizer()
}

// PreTokenizeString is a convenience function that applies preTokenizer to text, and returns
// the resulting pieces.
func PreTokenizeString(preTokenizer PreTokenizer, text string) ([]Piece, error) {
	p := NewPreTokenizedString(text)
	if err := preTokenizer.PreTokenize(p); err != nil {
		return nil, err
	}
	return p.GetSplits(), nil
}

// splitOn splits every piece on pattern with the given behavior.
func splitOn(p *PreTokenizedString, pattern *regex.Pattern, behavior SplitBehavior, invert bool) error {
	return p.Split(func(_ int, n *normalizers.NormalizedString) ([]*normalizers.NormalizedString, error) {
		return n.Split(pattern, behavior, invert)
	})
}

// gpt2Pattern is the regular expression used by GPT-2 to split text.
var gpt2Pattern = regex.MustRegex(`'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`)

// ByteLevel splits on the GPT-2 regular expression and maps every byte of the text to a
// printable character, so the vocabulary never needs an unknown token.
type ByteLevel struct {
	// AddPrefixSpace adds a space at the start of each piece that doesn't have one, so the
	// first word is treated like any other.
	AddPrefixSpace bool `json:"add_prefix_space"`

	// TrimOffsets is used by the post-processor and decoder: offsets don't include the spaces.
	TrimOffsets bool `json:"trim_offsets"`

	// UseRegex splits with the GPT-2 regular expression. If false, only the byte mapping is done.
	UseRegex bool `json:"use_regex"`
}

// NewByteLevel returns a ByteLevel pre-tokenizer with the defaults: all options enabled.
func NewByteLevel() *ByteLevel {
	return &ByteLevel{AddPrefixSpace: true, TrimOffsets: true, UseRegex: true}
}

// Alphabet returns the 256 characters used to represent bytes.
func (*ByteLevel) Alphabet() []rune { return bytelevel.Alphabet() }

func (*ByteLevel) isPreTokenizer() {}

// PreTokenize implements PreTokenizer.
func (b *ByteLevel) PreTokenize(p *PreTokenizedString) error {
	err := p.Split(func(_ int, n *normalizers.NormalizedString) ([]*normalizers.NormalizedString, error) {
		if b.AddPrefixSpace && !strings.HasPrefix(n.Get(), " ") {
			n.Prepend(" ")
		}
		if b.UseRegex {
			return n.Split(gpt2Pattern, Isolated, false)
		}
		return []*normalizers.NormalizedString{n}, nil
	})
	if err != nil {
		return err
	}
	return p.Normalize(func(n *normalizers.NormalizedString) error {
		n.MapRunes(bytelevel.Encode)
		return nil
	})
}

var wordsPattern = regex.MustRegex(`\w+|[^\w\s]+`)

// Whitespace splits on word boundaries, using the regular expression `\w+|[^\w\s]+`.
type Whitespace struct{}

func (Whitespace) isPreTokenizer() {}

// PreTokenize implements PreTokenizer.
func (Whitespace) PreTokenize(p *PreTokenizedString) error {
	return splitOn(p, wordsPattern, Removed, true)
}

var whitespacePattern = regex.RuneFunc(unicode.IsSpace)

// WhitespaceSplit splits on whitespace characters only.
type WhitespaceSplit struct{}

func (WhitespaceSplit) isPreTokenizer() {}

// PreTokenize implements PreTokenizer.
func (WhitespaceSplit) PreTokenize(p *PreTokenizedString) error {
	return splitOn(p, whitespacePattern, Removed, false)
}

// IsPunctuation returns whether r is an ASCII or Unicode punctuation character.
func IsPunctuation(r rune) bool {
	if r < 0x80 {
		return strings.ContainsRune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", r)
	}
	return unicode.IsPunct(r)
}

var punctuationPattern = regex.RuneFunc(IsPunctuation)

// Bert splits on whitespace and isolates each punctuation character.
type Bert struct{}

func (Bert) isPreTokenizer() {}

// PreTokenize implements PreTokenizer.
func (Bert) PreTokenize(p *PreTokenizedString) error {
	if err := splitOn(p, whitespacePattern, Removed, false); err != nil {
		return err
	}
	return splitOn(p, punctuationPattern, Isolated, false)
}

// Punctuation splits on punctuation characters.
type Punctuation struct {
	Behavior SplitBehavior `json:"behavior"`
}

// NewPunctuation returns a Punctuation pre-tokenizer with the given behavior.
// The usual behavior is Isolated.
func NewPunctuation(behavior SplitBehavior) *Punctuation {
	return &Punctuation{Behavior: behavior}
}

func (*Punctuation) isPreTokenizer() {}

// PreTokenize implements PreTokenizer.
func (pt *Punctuation) PreTokenize(p *PreTokenizedString) error {
	return splitOn(p, punctuationPattern, pt.Behavior, false)
}

// Digits splits digits from other characters.
type Digits struct {
	// IndividualDigits splits each digit into its own piece. Otherwise, runs of digits are kept together.
	IndividualDigits bool `json:"individual_digits"`
}

// NewDigits returns a Digits pre-tokenizer.
func NewDigits(individualDigits bool) *Digits { return &Digits{IndividualDigits: individualDigits} }

func (*Digits) isPreTokenizer() {}

var digitsPattern = regex.RuneFunc(unicode.IsNumber)

// PreTokenize implements PreTokenizer.
func (d *Digits) PreTokenize(p *PreTokenizedString) error {
	if d.IndividualDigits {
		return splitOn(p, digitsPattern, Isolated, false)
	}
	return splitOn(p, digitsPattern, Contiguous, false)
}

// CharDelimiterSplit splits on the given character, removing it.
type CharDelimiterSplit struct {
	Delimiter rune
}

// NewCharDelimiterSplit returns a CharDelimiterSplit pre-tokenizer.
func NewCharDelimiterSplit(delimiter rune) *CharDelimiterSplit {
	return &CharDelimiterSplit{Delimiter: delimiter}
}

func (*CharDelimiterSplit) isPreTokenizer() {}

// PreTokenize implements PreTokenizer.
func (c *CharDelimiterSplit) PreTokenize(p *PreTokenizedString) error {
	return splitOn(p, regex.Rune(c.Delimiter), Removed, false)
}

// Split splits on a literal or regex pattern, with the given behavior.
type Split struct {
	Pattern  *regex.Pattern `json:"pattern"`
	Behavior SplitBehavior  `json:"behavior"`

	// Invert swaps the matches and the text in between.
	Invert bool `json:"invert"`
}

// NewSplit returns a Split pre-tokenizer on the literal string pattern.
func NewSplit(pattern string, behavior SplitBehavior, invert bool) *Split {
	return &Split{Pattern: regex.Literal(pattern), Behavior: behavior, Invert: invert}
}

// NewSplitRegex returns a Split pre-tokenizer on the regular expression expr.
// It returns an error wrapping errs.ErrInvalidPattern if expr doesn't compile.
func NewSplitRegex(expr string, behavior SplitBehavior, invert bool) (*Split, error) {
	pattern, err := regex.Regex(expr)
	if err != nil {
		return nil, err
	}
	return &Split{Pattern: pattern, Behavior: behavior, Invert: invert}, nil
}

func (*Split) isPreTokenizer() {}

// PreTokenize implements PreTokenizer.
func (s *Split) PreTokenize(p *PreTokenizedString) error {
	if s.Pattern == nil {
		return errs.Errorf(errs.ErrConfig, "pre-tokenizer Split without a pattern")
	}
	return splitOn(p, s.Pattern, s.Behavior, s.Invert)
}

// Sequence applies a list of pre-tokenizers in order.
type Sequence struct {
	PreTokenizers []PreTokenizer
}

// NewSequence returns a Sequence of the given pre-tokenizers. Nil entries are dropped.
func NewSequence(preTokenizers ...PreTokenizer) *Sequence {
	s := &Sequence{}
	for _, pt := range preTokenizers {
		if pt != nil {
			s.PreTokenizers = append(s.PreTokenizers, pt)
		}
	}
	return s
}

func (*Sequence) isPreTokenizer() {}

// PreTokenize implements PreTokenizer.
func (s *Sequence) PreTokenize(p *PreTokenizedString) error {
	for _, pt := range s.PreTokenizers {
		if err := pt.PreTokenize(p); err != nil {
			return err
		}
	}
	return nil
}
