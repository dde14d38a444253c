// Package regex implements the literal-or-regex patterns used by the normalizers,
// pre-tokenizers and decoders.
//
// Regular expressions use github.com/dlclark/regexp2, which supports the look-ahead
// constructs found in published tokenizer configurations (e.g. GPT-2's `\s+(?!\S)`),
// and whose match positions are expressed in runes, matching the character offsets used
// throughout the pipeline.
package regex

import (
	"encoding/json"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/pkg/errors"
)

// Match is a range of a text, and whether it is a match of the pattern or the text in between matches.
type Match struct {
	Offsets tokens.Offsets
	IsMatch bool
}

// Pattern is either a literal string, a regular expression or a rune predicate.
// A Pattern is immutable and safe for concurrent use.
type Pattern struct {
	literal []rune
	re      *regexp2.Regexp
	fn      func(rune) bool

	source  string
	isRegex bool
}

// Literal creates a Pattern that matches the literal string s.
func Literal(s string) *Pattern {
	return &Pattern{literal: []rune(s), source: s}
}

// Regex compiles expr into a Pattern.
// It returns an error wrapping errs.ErrInvalidPattern if it fails to compile.
func Regex(expr string) (*Pattern, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidPattern, err, "compiling regular expression %q", expr)
	}
	return &Pattern{re: re, source: expr, isRegex: true}, nil
}

// MustRegex is like Regex, but panics on error. Used for the package level patterns.
func MustRegex(expr string) *Pattern {
	p, err := Regex(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// RuneFunc creates a Pattern where each rune for which fn returns true is a match on its own.
// These patterns can't be serialized.
func RuneFunc(fn func(rune) bool) *Pattern {
	return &Pattern{fn: fn}
}

// Rune creates a Pattern that matches each occurrence of r.
func Rune(r rune) *Pattern {
	return &Pattern{literal: []rune{r}, source: string(r)}
}

// String returns the source of the pattern.
func (p *Pattern) String() string {
	if p.isRegex {
		return "Regex(" + p.source + ")"
	}
	if p.fn != nil {
		return "RuneFunc"
	}
	return "String(" + p.source + ")"
}

// Source returns the literal or the regular expression used to build the pattern.
func (p *Pattern) Source() string { return p.source }

// IsRegex returns whether the pattern is a regular expression.
func (p *Pattern) IsRegex() bool { return p.isRegex }

// FindMatches returns a list of consecutive ranges covering the whole text, each marked as
// a match of the pattern or not. Empty matches are omitted.
//
// An empty text returns a single empty non-match.
func (p *Pattern) FindMatches(text []rune) ([]Match, error) {
	if len(text) == 0 {
		return []Match{{Offsets: tokens.Offsets{}, IsMatch: false}}, nil
	}
	var matches []Match
	prev := 0
	addMatch := func(start, end int) {
		if start > prev {
			matches = append(matches, Match{Offsets: tokens.Offsets{Start: prev, End: start}})
		}
		matches = append(matches, Match{Offsets: tokens.Offsets{Start: start, End: end}, IsMatch: true})
		prev = end
	}

	switch {
	case p.fn != nil:
		for ii, r := range text {
			if p.fn(r) {
				addMatch(ii, ii+1)
			}
		}
	case p.re != nil:
		m, err := p.re.FindRunesMatch(text)
		for ; m != nil && err == nil; m, err = p.re.FindNextMatch(m) {
			if m.Length == 0 {
				continue
			}
			addMatch(m.Index, m.Index+m.Length)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "matching %s", p)
		}
	default:
		if len(p.literal) == 0 {
			break
		}
		for ii := 0; ii+len(p.literal) <= len(text); {
			if runesHavePrefix(text[ii:], p.literal) {
				addMatch(ii, ii+len(p.literal))
				ii += len(p.literal)
			} else {
				ii++
			}
		}
	}
	if prev < len(text) {
		matches = append(matches, Match{Offsets: tokens.Offsets{Start: prev, End: len(text)}})
	}
	return matches, nil
}

func runesHavePrefix(text, prefix []rune) bool {
	if len(prefix) > len(text) {
		return false
	}
	for ii, r := range prefix {
		if text[ii] != r {
			return false
		}
	}
	return true
}

// ReplaceAll replaces every match of the pattern in s with content.
func (p *Pattern) ReplaceAll(s, content string) (string, error) {
	if p.re == nil && p.fn == nil {
		if p.source == "" {
			return s, nil
		}
		return strings.ReplaceAll(s, p.source, content), nil
	}
	text := []rune(s)
	matches, err := p.FindMatches(text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, m := range matches {
		if m.IsMatch {
			sb.WriteString(content)
		} else {
			sb.WriteString(string(text[m.Offsets.Start:m.Offsets.End]))
		}
	}
	return sb.String(), nil
}

// patternJSON is the serialized form: exactly one of the fields is set.
type patternJSON struct {
	String *string `json:"String,omitempty"`
	Regex  *string `json:"Regex,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p *Pattern) MarshalJSON() ([]byte, error) {
	if p.fn != nil {
		return nil, errs.Errorf(errs.ErrConfig, "rune predicate patterns can't be serialized")
	}
	source := p.source
	if p.isRegex {
		return json.Marshal(patternJSON{Regex: &source})
	}
	return json.Marshal(patternJSON{String: &source})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Pattern) UnmarshalJSON(data []byte) error {
	var pj patternJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return errs.Wrap(errs.ErrConfig, err, "parsing pattern %s", string(data))
	}
	switch {
	case pj.Regex != nil:
		compiled, err := Regex(*pj.Regex)
		if err != nil {
			return err
		}
		*p = *compiled
	case pj.String != nil:
		*p = *Literal(*pj.String)
	default:
		return errs.Errorf(errs.ErrConfig, "pattern %s must define either \"String\" or \"Regex\"", string(data))
	}
	return nil
}
