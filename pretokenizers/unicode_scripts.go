package pretokenizers

import (
	"sort"
	"unicode"

	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/tokens"
)

// UnicodeScripts splits where the Unicode script changes, e.g. between Latin and Han.
// Spaces don't belong to any script, and Hiragana and Katakana are considered Han,
// so Japanese text is kept together.
type UnicodeScripts struct{}

func (UnicodeScripts) isPreTokenizer() {}

const (
	scriptAny     = "Any"
	scriptUnknown = "Unknown"
)

// scriptNames is sorted with the most common scripts first, to speed up lookups.
var scriptNames = func() []string {
	names := make([]string, 0, len(unicode.Scripts))
	for name := range unicode.Scripts {
		names = append(names, name)
	}
	priority := map[string]int{"Latin": 0, "Common": 1, "Han": 2, "Cyrillic": 3, "Hiragana": 4, "Katakana": 5, "Arabic": 6}
	sort.Slice(names, func(i, j int) bool {
		pi, oki := priority[names[i]]
		pj, okj := priority[names[j]]
		switch {
		case oki && okj:
			return pi < pj
		case oki != okj:
			return oki
		}
		return names[i] < names[j]
	})
	return names
}()

func scriptOf(r rune) string {
	for _, name := range scriptNames {
		if unicode.Is(unicode.Scripts[name], r) {
			return name
		}
	}
	return scriptUnknown
}

func fixedScript(r rune) string {
	if r == 0x30FC {
		return "Han"
	}
	if r == ' ' {
		return scriptAny
	}
	switch script := scriptOf(r); script {
	case "Hiragana", "Katakana":
		return "Han"
	default:
		return script
	}
}

// PreTokenize implements PreTokenizer.
func (UnicodeScripts) PreTokenize(p *PreTokenizedString) error {
	return p.Split(func(_ int, n *normalizers.NormalizedString) ([]*normalizers.NormalizedString, error) {
		var pieces []*normalizers.NormalizedString
		lastScript := ""
		start := 0
		for ii, r := range n.Runes() {
			script := fixedScript(r)
			if script != scriptAny && lastScript != "" && lastScript != scriptAny && lastScript != script {
				pieces = append(pieces, n.Slice(tokens.Offsets{Start: start, End: ii}))
				start = ii
			}
			if script != scriptAny {
				lastScript = script
			}
		}
		pieces = append(pieces, n.Slice(tokens.Offsets{Start: start, End: n.Len()}))
		return pieces, nil
	})
}
