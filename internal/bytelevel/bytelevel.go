// Package bytelevel holds the GPT-2 byte to unicode mapping, shared by the ByteLevel
// pre-tokenizer, decoder and post-processor.
//
// Each of the 256 byte values is mapped to a printable rune: printable Latin-1 bytes map
// to themselves, the others to runes starting at U+0100. The space (0x20) maps to 'Ġ'.
package bytelevel

import (
	"sort"
	"unicode/utf8"
)

var (
	// BytesChar maps a byte to its printable rune.
	BytesChar = buildBytesChar()

	// CharBytes is the inverse of BytesChar.
	CharBytes = buildCharBytes(BytesChar)

	// Space is the rune used to represent the space byte.
	Space = BytesChar[' ']
)

func buildBytesChar() (table [256]rune) {
	var isPrintable [256]bool
	for b := '!'; b <= '~'; b++ {
		isPrintable[b] = true
	}
	for b := '¡'; b <= '¬'; b++ {
		isPrintable[b] = true
	}
	for b := '®'; b <= 'ÿ'; b++ {
		isPrintable[b] = true
	}
	n := rune(0)
	for b := 0; b < 256; b++ {
		if isPrintable[b] {
			table[b] = rune(b)
		} else {
			table[b] = 256 + n
			n++
		}
	}
	return
}

func buildCharBytes(bytesChar [256]rune) map[rune]byte {
	charBytes := make(map[rune]byte, 256)
	for b, r := range bytesChar {
		charBytes[r] = byte(b)
	}
	return charBytes
}

// Alphabet returns the 256 runes used to represent bytes, sorted.
func Alphabet() []rune {
	alphabet := make([]rune, 256)
	copy(alphabet, BytesChar[:])
	sort.Slice(alphabet, func(i, j int) bool { return alphabet[i] < alphabet[j] })
	return alphabet
}

// Encode maps each byte of the UTF-8 encoding of r to its printable rune.
func Encode(r rune) []rune {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], r)
	out := make([]rune, n)
	for ii := 0; ii < n; ii++ {
		out[ii] = BytesChar[buf[ii]]
	}
	return out
}

// Decode maps the printable runes of s back to bytes. Runes that are not part of
// the alphabet are kept as their UTF-8 encoding.
func Decode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, found := CharBytes[r]; found {
			out = append(out, b)
		} else {
			out = utf8.AppendRune(out, r)
		}
	}
	return out
}
