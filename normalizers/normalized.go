package normalizers

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/internal/regex"
	"github.com/gomlx/go-tokenizers/tokens"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizedString is a string being transformed by the pipeline, that keeps track of the
// alignment between each normalized character and the characters of the original string
// it came from. This is what allows offsets of the final tokens to point to the original
// input, even after transformations that change its length (NFKC, accent stripping, etc.).
//
// A NormalizedString may be a slice of a larger input, in which case OriginalShift is the
// position (in characters) of its original text within the full input.
//
// All positions are expressed in characters (runes).
type NormalizedString struct {
	original   []rune
	normalized []rune

	// alignments holds, for each normalized rune, the range of original runes it came from.
	alignments []tokens.Offsets

	originalShift int
}

// New creates a NormalizedString for text, with no normalization applied yet.
func New(text string) *NormalizedString {
	original := []rune(text)
	n := &NormalizedString{
		original:   original,
		normalized: make([]rune, len(original)),
		alignments: make([]tokens.Offsets, len(original)),
	}
	copy(n.normalized, original)
	for ii := range original {
		n.alignments[ii] = tokens.Offsets{Start: ii, End: ii + 1}
	}
	return n
}

// Get returns the normalized string.
func (n *NormalizedString) Get() string { return string(n.normalized) }

// Runes returns the normalized runes. They must not be modified.
func (n *NormalizedString) Runes() []rune { return n.normalized }

// Original returns the original text of this string.
func (n *NormalizedString) Original() string { return string(n.original) }

// Len returns the number of normalized characters.
func (n *NormalizedString) Len() int { return len(n.normalized) }

// IsEmpty returns whether the normalized string is empty.
func (n *NormalizedString) IsEmpty() bool { return len(n.normalized) == 0 }

// OriginalShift returns the position of this string's original text within the full input.
func (n *NormalizedString) OriginalShift() int { return n.originalShift }

// OriginalOffsets returns the range of the full input covered by this string.
func (n *NormalizedString) OriginalOffsets() tokens.Offsets {
	return tokens.Offsets{Start: n.originalShift, End: n.originalShift + len(n.original)}
}

// Clone returns a deep copy.
func (n *NormalizedString) Clone() *NormalizedString {
	return &NormalizedString{
		original:      append([]rune(nil), n.original...),
		normalized:    append([]rune(nil), n.normalized...),
		alignments:    append([]tokens.Offsets(nil), n.alignments...),
		originalShift: n.originalShift,
	}
}

// String implements fmt.Stringer.
func (n *NormalizedString) String() string {
	return "NormalizedString(original=" + quote(n.original) + ", normalized=" + quote(n.normalized) + ")"
}

func quote(runes []rune) string {
	return "\"" + strings.ReplaceAll(string(runes), "\"", "\\\"") + "\""
}

// spanAlignment returns the original range covered by the normalized range [start, end).
// For an empty range it returns the (empty or not) range of the nearest character.
func (n *NormalizedString) spanAlignment(start, end int) tokens.Offsets {
	if start >= end {
		switch {
		case start < len(n.alignments):
			return n.alignments[start]
		case len(n.alignments) > 0:
			return n.alignments[len(n.alignments)-1]
		default:
			return tokens.Offsets{Start: len(n.original), End: len(n.original)}
		}
	}
	span := n.alignments[start]
	for _, a := range n.alignments[start+1 : end] {
		span.Start = min(span.Start, a.Start)
		span.End = max(span.End, a.End)
	}
	return span
}

// ConvertOffsets converts a range of normalized characters to the range of the full input they
// originated from (that is, already including OriginalShift).
func (n *NormalizedString) ConvertOffsets(normalized tokens.Offsets) tokens.Offsets {
	start := max(0, min(normalized.Start, len(n.normalized)))
	end := max(start, min(normalized.End, len(n.normalized)))
	var o tokens.Offsets
	if start == end {
		switch {
		case start < len(n.alignments):
			o = tokens.Offsets{Start: n.alignments[start].Start, End: n.alignments[start].Start}
		case len(n.alignments) > 0:
			last := n.alignments[len(n.alignments)-1].End
			o = tokens.Offsets{Start: last, End: last}
		default:
			o = tokens.Offsets{Start: len(n.original), End: len(n.original)}
		}
	} else {
		o = n.spanAlignment(start, end)
	}
	return o.Shift(n.originalShift)
}

// change replaces the normalized range [start, end) by out.
type change struct {
	start, end int
	out        []rune
}

// apply executes the sorted and non-overlapping changes, updating the alignments.
//
// When a change keeps the number of characters, each output character inherits the
// alignment of the corresponding input character. Otherwise, all output characters are
// aligned to the whole original range of the replaced characters.
func (n *NormalizedString) apply(changes []change) {
	if len(changes) == 0 {
		return
	}
	normalized := make([]rune, 0, len(n.normalized))
	alignments := make([]tokens.Offsets, 0, len(n.normalized))
	pos := 0
	for _, c := range changes {
		normalized = append(normalized, n.normalized[pos:c.start]...)
		alignments = append(alignments, n.alignments[pos:c.start]...)
		if c.end-c.start == len(c.out) {
			normalized = append(normalized, c.out...)
			alignments = append(alignments, n.alignments[c.start:c.end]...)
		} else {
			span := n.spanAlignment(c.start, c.end)
			for _, r := range c.out {
				normalized = append(normalized, r)
				alignments = append(alignments, span)
			}
		}
		pos = c.end
	}
	normalized = append(normalized, n.normalized[pos:]...)
	alignments = append(alignments, n.alignments[pos:]...)
	n.normalized, n.alignments = normalized, alignments
}

// MapRunes replaces each character r by fn(r), which may be empty (to remove it) or have several characters.
func (n *NormalizedString) MapRunes(fn func(r rune) []rune) {
	var changes []change
	for ii, r := range n.normalized {
		out := fn(r)
		if len(out) == 1 && out[0] == r {
			continue
		}
		changes = append(changes, change{start: ii, end: ii + 1, out: out})
	}
	n.apply(changes)
}

// Map replaces each character r by fn(r).
func (n *NormalizedString) Map(fn func(r rune) rune) {
	for ii, r := range n.normalized {
		n.normalized[ii] = fn(r)
	}
}

// Filter keeps only the characters for which keep returns true.
func (n *NormalizedString) Filter(keep func(r rune) bool) {
	n.MapRunes(func(r rune) []rune {
		if keep(r) {
			return []rune{r}
		}
		return nil
	})
}

// Prepend adds s to the start of the normalized string, aligned to its first character.
// It does nothing if the string is empty.
func (n *NormalizedString) Prepend(s string) {
	if len(n.normalized) == 0 || s == "" {
		return
	}
	out := append([]rune(s), n.normalized[0])
	n.apply([]change{{start: 0, end: 1, out: out}})
}

// Append adds s to the end of the normalized string, aligned to its last character.
// It does nothing if the string is empty.
func (n *NormalizedString) Append(s string) {
	if len(n.normalized) == 0 || s == "" {
		return
	}
	last := len(n.normalized) - 1
	out := append([]rune{n.normalized[last]}, []rune(s)...)
	n.apply([]change{{start: last, end: last + 1, out: out}})
}

// LStrip removes leading whitespace.
func (n *NormalizedString) LStrip() { n.strip(true, false) }

// RStrip removes trailing whitespace.
func (n *NormalizedString) RStrip() { n.strip(false, true) }

// Strip removes leading and trailing whitespace.
func (n *NormalizedString) Strip() { n.strip(true, true) }

func (n *NormalizedString) strip(left, right bool) {
	start, end := 0, len(n.normalized)
	if left {
		for start < end && unicode.IsSpace(n.normalized[start]) {
			start++
		}
	}
	if right {
		for end > start && unicode.IsSpace(n.normalized[end-1]) {
			end--
		}
	}
	var changes []change
	if start > 0 {
		changes = append(changes, change{start: 0, end: start})
	}
	if end < len(n.normalized) {
		changes = append(changes, change{start: end, end: len(n.normalized)})
	}
	n.apply(changes)
}

// Lowercase converts all characters to lower case, following the full Unicode case mapping
// (some characters become more than one).
func (n *NormalizedString) Lowercase() {
	lower := cases.Lower(language.Und)
	n.MapRunes(func(r rune) []rune {
		if r < utf8.RuneSelf {
			return []rune{unicode.ToLower(r)}
		}
		return []rune(lower.String(string(r)))
	})
}

// Uppercase converts all characters to upper case, following the full Unicode case mapping.
func (n *NormalizedString) Uppercase() {
	upper := cases.Upper(language.Und)
	n.MapRunes(func(r rune) []rune {
		if r < utf8.RuneSelf {
			return []rune{unicode.ToUpper(r)}
		}
		return []rune(upper.String(string(r)))
	})
}

// NFD applies the Unicode canonical decomposition.
func (n *NormalizedString) NFD() { n.normalizeForm(norm.NFD) }

// NFC applies the Unicode canonical decomposition followed by canonical composition.
func (n *NormalizedString) NFC() { n.normalizeForm(norm.NFC) }

// NFKD applies the Unicode compatibility decomposition.
func (n *NormalizedString) NFKD() { n.normalizeForm(norm.NFKD) }

// NFKC applies the Unicode compatibility decomposition followed by canonical composition.
func (n *NormalizedString) NFKC() { n.normalizeForm(norm.NFKC) }

// normalizeForm normalizes each segment (a starter and its combining marks) independently,
// which keeps alignments precise to the segment.
func (n *NormalizedString) normalizeForm(form norm.Form) {
	s := string(n.normalized)
	if form.IsNormalString(s) {
		return
	}
	var changes []change
	bytePos, runePos := 0, 0
	for bytePos < len(s) {
		segLen := form.NextBoundaryInString(s[bytePos:], true)
		if segLen <= 0 {
			segLen = len(s) - bytePos
		}
		segment := s[bytePos : bytePos+segLen]
		segmentRunes := utf8.RuneCountInString(segment)
		if normalized := form.String(segment); normalized != segment {
			changes = append(changes, change{start: runePos, end: runePos + segmentRunes, out: []rune(normalized)})
		}
		bytePos += segLen
		runePos += segmentRunes
	}
	n.apply(changes)
}

// Replace replaces every match of pattern in the normalized string with content.
func (n *NormalizedString) Replace(pattern *regex.Pattern, content string) error {
	matches, err := pattern.FindMatches(n.normalized)
	if err != nil {
		return err
	}
	out := []rune(content)
	var changes []change
	for _, m := range matches {
		if m.IsMatch {
			changes = append(changes, change{start: m.Offsets.Start, end: m.Offsets.End, out: out})
		}
	}
	n.apply(changes)
	return nil
}

// Slice returns a new NormalizedString with the normalized characters in the range r.
// Its original text is the part of the original text these characters are aligned to.
func (n *NormalizedString) Slice(r tokens.Offsets) *NormalizedString {
	start := max(0, min(r.Start, len(n.normalized)))
	end := max(start, min(r.End, len(n.normalized)))
	var span tokens.Offsets
	if start == end {
		pos := n.ConvertOffsets(tokens.Offsets{Start: start, End: start}).Start - n.originalShift
		span = tokens.Offsets{Start: pos, End: pos}
	} else {
		span = n.spanAlignment(start, end)
	}
	slice := &NormalizedString{
		original:      append([]rune(nil), n.original[span.Start:span.End]...),
		normalized:    append([]rune(nil), n.normalized[start:end]...),
		alignments:    make([]tokens.Offsets, end-start),
		originalShift: n.originalShift + span.Start,
	}
	for ii, a := range n.alignments[start:end] {
		slice.alignments[ii] = a.Shift(-span.Start)
	}
	return slice
}

// Split splits the normalized string on the matches of pattern, with the given behavior.
// If invert is true, the matches and the text in between are swapped.
// Empty pieces are never returned.
func (n *NormalizedString) Split(pattern *regex.Pattern, behavior SplitBehavior, invert bool) ([]*NormalizedString, error) {
	matches, err := pattern.FindMatches(n.normalized)
	if err != nil {
		return nil, err
	}
	if invert {
		for ii := range matches {
			matches[ii].IsMatch = !matches[ii].IsMatch
		}
	}
	var pieces []tokens.Offsets
	switch behavior {
	case SplitRemoved:
		for _, m := range matches {
			if !m.IsMatch {
				pieces = append(pieces, m.Offsets)
			}
		}
	case SplitIsolated:
		for _, m := range matches {
			pieces = append(pieces, m.Offsets)
		}
	case SplitMergedWithPrevious:
		previousMatch := false
		for _, m := range matches {
			if m.IsMatch && !previousMatch && len(pieces) > 0 {
				pieces[len(pieces)-1].End = m.Offsets.End
			} else {
				pieces = append(pieces, m.Offsets)
			}
			previousMatch = m.IsMatch
		}
	case SplitMergedWithNext:
		previousMatch := false
		for ii := len(matches) - 1; ii >= 0; ii-- {
			m := matches[ii]
			if m.IsMatch && !previousMatch && len(pieces) > 0 {
				pieces[len(pieces)-1].Start = m.Offsets.Start
			} else {
				pieces = append(pieces, m.Offsets)
			}
			previousMatch = m.IsMatch
		}
		for i, j := 0, len(pieces)-1; i < j; i, j = i+1, j-1 {
			pieces[i], pieces[j] = pieces[j], pieces[i]
		}
	case SplitContiguous:
		previousMatch := false
		for _, m := range matches {
			if m.IsMatch == previousMatch && len(pieces) > 0 {
				pieces[len(pieces)-1].End = m.Offsets.End
			} else {
				pieces = append(pieces, m.Offsets)
			}
			previousMatch = m.IsMatch
		}
	}

	splits := make([]*NormalizedString, 0, len(pieces))
	for _, piece := range pieces {
		if piece.Len() == 0 {
			continue
		}
		splits = append(splits, n.Slice(piece))
	}
	return splits, nil
}
