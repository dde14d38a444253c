package tokenizers

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/gomlx/go-tokenizers/tokens"
)

// addedEntry is an added token and its id.
type addedEntry struct {
	token tokens.AddedToken
	id    uint32
}

// addedVocabulary holds the tokens added on top of the model vocabulary, and the matchers
// used to extract them from the input text before any other processing.
//
// It is immutable: changes return a new addedVocabulary.
type addedVocabulary struct {
	entries   []addedEntry
	byContent map[string]int
	byID      map[uint32]int

	// raw matches the tokens with Normalized=false against the input text, and normalized
	// matches the others against the normalized text.
	raw, normalized *tokenMatcher
}

func newAddedVocabulary() *addedVocabulary {
	return &addedVocabulary{
		byContent: make(map[string]int),
		byID:      make(map[uint32]int),
	}
}

// clone returns a copy with new entries and indices. Matchers are not copied.
func (v *addedVocabulary) clone() *addedVocabulary {
	newV := newAddedVocabulary()
	for _, e := range v.entries {
		newV.insert(e)
	}
	return newV
}

func (v *addedVocabulary) insert(e addedEntry) {
	if idx, found := v.byContent[e.token.Content]; found {
		delete(v.byID, v.entries[idx].id)
		v.entries[idx] = e
		v.byID[e.id] = idx
		return
	}
	v.byContent[e.token.Content] = len(v.entries)
	v.byID[e.id] = len(v.entries)
	v.entries = append(v.entries, e)
}

// nextID returns the id for a token not in the model: after the model vocabulary and after
// all added tokens.
func (v *addedVocabulary) nextID(model models.Model) uint32 {
	next := uint32(model.GetVocabSize())
	for _, e := range v.entries {
		next = max(next, e.id+1)
	}
	return next
}

// with returns a new addedVocabulary with the tokens added. Tokens already present only
// have their flags updated.
func (v *addedVocabulary) with(model models.Model, normalizer normalizers.Normalizer, added []tokens.AddedToken) *addedVocabulary {
	newV := v.clone()
	for _, token := range added {
		if token.Content == "" {
			continue
		}
		if idx, found := newV.byContent[token.Content]; found {
			newV.entries[idx].token = token
			continue
		}
		id, found := model.TokenToID(token.Content)
		if !found {
			id = newV.nextID(model)
		}
		newV.insert(addedEntry{token: token, id: id})
	}
	newV.compile(normalizer)
	return newV
}

// withEntries returns a new addedVocabulary with tokens whose ids are already known, as
// loaded from a tokenizer.json file.
func (v *addedVocabulary) withEntries(normalizer normalizers.Normalizer, entries []addedEntry) (*addedVocabulary, error) {
	newV := v.clone()
	for _, e := range entries {
		if e.token.Content == "" {
			return nil, errs.Errorf(errs.ErrConfig, "added token with id %d has an empty content", e.id)
		}
		newV.insert(e)
	}
	newV.compile(normalizer)
	return newV, nil
}

// withNormalizer returns a new addedVocabulary matching the normalized tokens with normalizer.
func (v *addedVocabulary) withNormalizer(normalizer normalizers.Normalizer) *addedVocabulary {
	newV := v.clone()
	newV.compile(normalizer)
	return newV
}

func (v *addedVocabulary) len() int { return len(v.entries) }

func (v *addedVocabulary) tokenToID(content string) (uint32, bool) {
	idx, found := v.byContent[content]
	if !found {
		return 0, false
	}
	return v.entries[idx].id, true
}

func (v *addedVocabulary) idToToken(id uint32) (string, bool) {
	idx, found := v.byID[id]
	if !found {
		return "", false
	}
	return v.entries[idx].token.Content, true
}

func (v *addedVocabulary) isSpecial(content string) bool {
	idx, found := v.byContent[content]
	return found && v.entries[idx].token.Special
}

// sorted returns the entries sorted by id.
func (v *addedVocabulary) sorted() []addedEntry {
	return slices.SortedFunc(slices.Values(v.entries), func(a, b addedEntry) int {
		return cmp.Compare(a.id, b.id)
	})
}

// compile builds the matchers of the raw and normalized tokens.
func (v *addedVocabulary) compile(normalizer normalizers.Normalizer) {
	rawTexts := make(map[string]int)
	normalizedTexts := make(map[string]int)
	for idx, e := range v.entries {
		if !e.token.Normalized {
			rawTexts[e.token.Content] = idx
			continue
		}
		text := e.token.Content
		if normalizer != nil {
			normalized, err := normalizers.NormalizeString(normalizer, text)
			if err != nil {
				slog.Warn("failed to normalize added token, matching it verbatim", "token", text, "error", err)
			} else {
				text = normalized
			}
		}
		if text != "" {
			normalizedTexts[text] = idx
		}
	}
	v.raw = newTokenMatcher(rawTexts)
	v.normalized = newTokenMatcher(normalizedTexts)
}

// extract splits text on the added tokens, and normalizes the rest.
//
// The tokens not normalized are matched first, against the raw text. The remaining pieces
// are then normalized, and the normalized tokens matched against them. Matched tokens are
// returned as already tokenized splits.
func (v *addedVocabulary) extract(text string, normalizer normalizers.Normalizer) (*pretokenizers.PreTokenizedString, error) {
	p := pretokenizers.NewPreTokenizedString(text)
	if err := p.SplitWithTokens(v.splitter(v.raw)); err != nil {
		return nil, err
	}
	if normalizer != nil {
		if err := p.Normalize(normalizer.Normalize); err != nil {
			return nil, err
		}
	}
	if err := p.SplitWithTokens(v.splitter(v.normalized)); err != nil {
		return nil, err
	}
	return p, nil
}

func (v *addedVocabulary) splitter(m *tokenMatcher) func(int, *normalizers.NormalizedString) ([]pretokenizers.SplitPiece, error) {
	return func(_ int, n *normalizers.NormalizedString) ([]pretokenizers.SplitPiece, error) {
		if m == nil {
			return []pretokenizers.SplitPiece{{Normalized: n}}, nil
		}
		matches, err := m.findMatches(n.Runes(), v.entries)
		if err != nil {
			return nil, err
		}
		splits := make([]pretokenizers.SplitPiece, 0, len(matches))
		for _, match := range matches {
			piece := n.Slice(match.offsets)
			split := pretokenizers.SplitPiece{Normalized: piece}
			if match.entry >= 0 {
				e := v.entries[match.entry]
				split.Tokens = []tokens.Token{
					tokens.NewToken(e.id, e.token.Content, tokens.Offsets{Start: 0, End: piece.Len()}),
				}
			}
			splits = append(splits, split)
		}
		return splits, nil
	}
}

// tokenMatcher finds the occurrences of a set of texts, preferring the longest at each position.
type tokenMatcher struct {
	re *regexp2.Regexp

	// byText maps each text to the index of its entry.
	byText map[string]int
}

// newTokenMatcher returns nil if texts is empty.
func newTokenMatcher(texts map[string]int) *tokenMatcher {
	if len(texts) == 0 {
		return nil
	}
	sorted := slices.SortedFunc(maps.Keys(texts), func(a, b string) int {
		if la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b); la != lb {
			return lb - la
		}
		return strings.Compare(a, b)
	})
	alternatives := make([]string, len(sorted))
	for ii, text := range sorted {
		alternatives[ii] = regexp2.Escape(text)
	}
	// Escaped literals always compile.
	re := regexp2.MustCompile(strings.Join(alternatives, "|"), regexp2.None)
	return &tokenMatcher{re: re, byText: texts}
}

// addedMatch is a range of the text, with the index of the matched entry or -1 for the text
// in between matches.
type addedMatch struct {
	offsets tokens.Offsets
	entry   int
}

// findMatches returns consecutive ranges covering the whole text.
func (m *tokenMatcher) findMatches(text []rune, entries []addedEntry) ([]addedMatch, error) {
	var matches []addedMatch
	prev := 0
	for pos := 0; pos < len(text); {
		found, err := m.re.FindRunesMatchStartingAt(text, pos)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInternal, err, "matching added tokens")
		}
		if found == nil {
			break
		}
		start, end := found.Index, found.Index+found.Length
		pos = end
		idx := m.byText[found.String()]
		token := entries[idx].token
		if token.SingleWord && !isSingleWord(text, start, end) {
			continue
		}
		if token.LStrip {
			for start > prev && unicode.IsSpace(text[start-1]) {
				start--
			}
		}
		if token.RStrip {
			for end < len(text) && unicode.IsSpace(text[end]) {
				end++
			}
			pos = end
		}
		if start > prev {
			matches = append(matches, addedMatch{offsets: tokens.Offsets{Start: prev, End: start}, entry: -1})
		}
		matches = append(matches, addedMatch{offsets: tokens.Offsets{Start: start, End: end}, entry: idx})
		prev = end
	}
	if prev < len(text) {
		matches = append(matches, addedMatch{offsets: tokens.Offsets{Start: prev, End: len(text)}, entry: -1})
	}
	return matches, nil
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_'
}

// isSingleWord returns whether text[start:end] is not glued to word characters.
func isSingleWord(text []rune, start, end int) bool {
	return (start == 0 || !isWordChar(text[start-1])) && (end == len(text) || !isWordChar(text[end]))
}
