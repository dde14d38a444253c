package normalizers

import (
	"encoding/binary"
	"encoding/json"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/rivo/uniseg"
)

// Precompiled implements the normalization rules compiled into SentencePiece models
// (the "precompiled_charsmap"): a double-array trie (darts-clone format) mapping UTF-8
// sequences to their replacement.
type Precompiled struct {
	// Charsmap is the serialized blob: a little-endian uint32 with the trie size in bytes,
	// the trie units, and the NUL separated replacement strings.
	Charsmap []byte

	trie       []uint32
	normalized []byte
}

// NewPrecompiled parses the SentencePiece precompiled charsmap.
// It returns an error wrapping errs.ErrInvalidPrecompiledData if it is malformed.
func NewPrecompiled(charsmap []byte) (*Precompiled, error) {
	p := &Precompiled{Charsmap: charsmap}
	if len(charsmap) < 4 {
		return nil, errs.Errorf(errs.ErrInvalidPrecompiledData, "charsmap with %d bytes is too short", len(charsmap))
	}
	trieSize := int(binary.LittleEndian.Uint32(charsmap[:4]))
	rest := charsmap[4:]
	if trieSize%4 != 0 || trieSize > len(rest) {
		return nil, errs.Errorf(errs.ErrInvalidPrecompiledData, "invalid trie size %d for charsmap with %d bytes", trieSize, len(charsmap))
	}
	p.trie = make([]uint32, trieSize/4)
	for ii := range p.trie {
		p.trie[ii] = binary.LittleEndian.Uint32(rest[ii*4:])
	}
	p.normalized = rest[trieSize:]
	if !utf8.Valid(p.normalized) {
		return nil, errs.Errorf(errs.ErrInvalidPrecompiledData, "replacement strings are not valid UTF-8")
	}
	return p, nil
}

func (*Precompiled) isNormalizer() {}

// darts-clone unit accessors.
func dartsHasLeaf(unit uint32) bool  { return (unit>>8)&1 == 1 }
func dartsValue(unit uint32) int     { return int(unit & ((1 << 31) - 1)) }
func dartsLabel(unit uint32) uint32  { return unit & ((1 << 31) | 0xFF) }
func dartsOffset(unit uint32) uint32 { return (unit >> 10) << ((unit & (1 << 9)) >> 6) }

// commonPrefixSearch returns the values of all keys in the trie that are prefixes of key.
func (p *Precompiled) commonPrefixSearch(key []byte) []int {
	if len(p.trie) == 0 {
		return nil
	}
	var results []int
	nodePos := dartsOffset(p.trie[0])
	for _, c := range key {
		if c == 0 {
			break
		}
		nodePos ^= uint32(c)
		if int(nodePos) >= len(p.trie) {
			return results
		}
		unit := p.trie[nodePos]
		if dartsLabel(unit) != uint32(c) {
			return results
		}
		nodePos ^= dartsOffset(unit)
		if int(nodePos) >= len(p.trie) {
			return results
		}
		if dartsHasLeaf(unit) {
			results = append(results, dartsValue(p.trie[nodePos]))
		}
	}
	return results
}

// transform returns the replacement for chunk, if there is one.
func (p *Precompiled) transform(chunk string) (string, bool) {
	results := p.commonPrefixSearch([]byte(chunk))
	if len(results) == 0 {
		return "", false
	}
	start := results[0]
	if start > len(p.normalized) {
		return "", false
	}
	end := start
	for end < len(p.normalized) && p.normalized[end] != 0 {
		end++
	}
	return string(p.normalized[start:end]), true
}

// Normalize implements Normalizer.
//
// Short grapheme clusters are looked up as a whole first; otherwise each of their
// characters is looked up individually.
func (p *Precompiled) Normalize(n *NormalizedString) error {
	var changes []change
	pos := 0
	graphemes := uniseg.NewGraphemes(n.Get())
	for graphemes.Next() {
		grapheme := graphemes.Str()
		graphemeRunes := graphemes.Runes()
		if len(grapheme) < 6 {
			if replacement, found := p.transform(grapheme); found {
				changes = append(changes, change{start: pos, end: pos + len(graphemeRunes), out: []rune(replacement)})
				pos += len(graphemeRunes)
				continue
			}
		}
		for _, r := range graphemeRunes {
			if replacement, found := p.transform(string(r)); found {
				changes = append(changes, change{start: pos, end: pos + 1, out: []rune(replacement)})
			}
			pos++
		}
	}
	n.apply(changes)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p *Precompiled) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Charsmap []byte `json:"precompiled_charsmap"`
	}{p.Charsmap})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Precompiled) UnmarshalJSON(data []byte) error {
	var pj struct {
		Charsmap []byte `json:"precompiled_charsmap"`
	}
	if err := json.Unmarshal(data, &pj); err != nil {
		return errs.Wrap(errs.ErrInvalidPrecompiledData, err, "parsing Precompiled normalizer")
	}
	parsed, err := NewPrecompiled(pj.Charsmap)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}
