// Package decoders converts the tokens of an encoding back into text, reverting the
// transformations of the pre-tokenizer and model (byte-level mapping, continuation prefixes,
// word suffixes, space markers, byte fallback tokens, ...).
//
// The set of decoders is closed: BPE, ByteLevel, WordPiece, Metaspace, CTC, Sequence, Replace,
// Fuse, ByteFallback and Strip. They can be serialized with ToJSON and FromJSON, following the
// HuggingFace tokenizer.json format.
package decoders

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/internal/bytelevel"
	"github.com/gomlx/go-tokenizers/internal/regex"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/pkg/errors"
)

// Decoder transforms a list of tokens into a list of strings to be concatenated.
// Decoders are immutable once built, and safe for concurrent use.
type Decoder interface {
	DecodeChain(tokens []string) ([]string, error)

	// isDecoder restricts implementations to this package.
	isDecoder()
}

// Decode applies decoder to the tokens and concatenates the results.
func Decode(decoder Decoder, tokens []string) (string, error) {
	chain, err := decoder.DecodeChain(tokens)
	if err != nil {
		return "", err
	}
	return strings.Join(chain, ""), nil
}

// DefaultBPESuffix marks the end of a word in BPE models trained with a suffix.
const DefaultBPESuffix = "</w>"

// BPE replaces the end-of-word suffix by a space, except for the last token.
type BPE struct {
	Suffix string `json:"suffix"`
}

// NewBPE returns a BPE decoder for the given suffix.
func NewBPE(suffix string) *BPE { return &BPE{Suffix: suffix} }

func (*BPE) isDecoder() {}

// DecodeChain implements Decoder.
func (d *BPE) DecodeChain(tokens []string) ([]string, error) {
	if d.Suffix == "" {
		return tokens, nil
	}
	out := make([]string, len(tokens))
	for ii, token := range tokens {
		replacement := " "
		if ii == len(tokens)-1 {
			replacement = ""
		}
		out[ii] = strings.ReplaceAll(token, d.Suffix, replacement)
	}
	return out, nil
}

// ByteLevel maps the printable characters of byte-level tokens back to bytes, and decodes
// them as UTF-8. Invalid sequences are replaced by "�".
//
// The fields are only kept for serialization: they configure the pre-tokenizer and
// post-processor of the same name.
type ByteLevel struct {
	AddPrefixSpace bool `json:"add_prefix_space"`
	TrimOffsets    bool `json:"trim_offsets"`
	UseRegex       bool `json:"use_regex"`
}

// NewByteLevel returns a ByteLevel decoder with the defaults: all options enabled.
func NewByteLevel() *ByteLevel {
	return &ByteLevel{AddPrefixSpace: true, TrimOffsets: true, UseRegex: true}
}

func (*ByteLevel) isDecoder() {}

// DecodeChain implements Decoder. It returns a single string.
func (*ByteLevel) DecodeChain(tokens []string) ([]string, error) {
	var buf []byte
	for _, token := range tokens {
		start := len(buf)
		for _, r := range token {
			b, found := bytelevel.CharBytes[r]
			if !found {
				// Not a byte-level token: keep it as is.
				buf = append(buf[:start], token...)
				break
			}
			buf = append(buf, b)
		}
	}
	return []string{lossyUTF8(buf)}, nil
}

// lossyUTF8 converts buf to a string, replacing each maximal invalid subsequence with "�".
func lossyUTF8(buf []byte) string {
	if utf8.Valid(buf) {
		return string(buf)
	}
	var sb strings.Builder
	sb.Grow(len(buf) + 8)
	for len(buf) > 0 {
		r, size := utf8.DecodeRune(buf)
		if r != utf8.RuneError || size > 1 {
			sb.WriteRune(r)
			buf = buf[size:]
			continue
		}
		sb.WriteRune(utf8.RuneError)
		buf = buf[1+validContinuations(buf):]
	}
	return sb.String()
}

// validContinuations returns how many bytes after the (invalid or truncated) sequence starting
// at buf[0] are still a valid prefix of that sequence.
func validContinuations(buf []byte) int {
	var n int
	lo, hi := byte(0x80), byte(0xBF)
	switch b := buf[0]; {
	case b >= 0xC2 && b <= 0xDF:
		n = 1
	case b >= 0xE0 && b <= 0xEF:
		n = 2
		if b == 0xE0 {
			lo = 0xA0
		} else if b == 0xED {
			hi = 0x9F
		}
	case b >= 0xF0 && b <= 0xF4:
		n = 3
		if b == 0xF0 {
			lo = 0x90
		} else if b == 0xF4 {
			hi = 0x8F
		}
	default:
		return 0
	}
	count := 0
	for ii := 1; ii <= n && ii < len(buf); ii++ {
		if buf[ii] < lo || buf[ii] > hi {
			break
		}
		lo, hi = 0x80, 0xBF
		count++
	}
	return count
}

// DefaultWordPiecePrefix is the continuation prefix of WordPiece subwords.
const DefaultWordPiecePrefix = "##"

// WordPiece removes the continuation prefix from subwords and separates words with spaces.
type WordPiece struct {
	Prefix string `json:"prefix"`

	// Cleanup removes the spaces before punctuation and in English contractions.
	Cleanup bool `json:"cleanup"`
}

// NewWordPiece returns a WordPiece decoder with prefix "##" and cleanup enabled.
func NewWordPiece() *WordPiece { return &WordPiece{Prefix: DefaultWordPiecePrefix, Cleanup: true} }

func (*WordPiece) isDecoder() {}

// DecodeChain implements Decoder.
func (d *WordPiece) DecodeChain(tokens []string) ([]string, error) {
	out := make([]string, len(tokens))
	for ii, token := range tokens {
		if ii != 0 {
			if trimmed, found := strings.CutPrefix(token, d.Prefix); found {
				token = trimmed
			} else {
				token = " " + token
			}
		}
		if d.Cleanup {
			token = Cleanup(token)
		}
		out[ii] = token
	}
	return out, nil
}

// cleanupReplacements are applied one after the other, so a replacement can create a match
// for the ones that follow.
var cleanupReplacements = [][2]string{
	{" .", "."},
	{" ?", "?"},
	{" !", "!"},
	{" ,", ","},
	{" ' ", "'"},
	{" n't", "n't"},
	{" 'm", "'m"},
	{" do not", " don't"},
	{" 's", "'s"},
	{" 've", "'ve"},
	{" 're", "'re"},
}

// Cleanup removes spaces before punctuation and in English contractions, undoing the
// BERT pre-tokenization.
func Cleanup(s string) string {
	for _, r := range cleanupReplacements {
		s = strings.ReplaceAll(s, r[0], r[1])
	}
	return s
}

// Metaspace replaces the space marker ("▁") with spaces. One leading space of the first
// token, the one prepended by the pre-tokenizer, is removed: further ones are kept.
type Metaspace struct {
	Replacement   rune
	PrependScheme pretokenizers.PrependScheme
	Split         bool
}

// NewMetaspace returns a Metaspace decoder matching pretokenizers.NewMetaspace.
func NewMetaspace() *Metaspace {
	return &Metaspace{Replacement: pretokenizers.DefaultReplacement, PrependScheme: pretokenizers.PrependAlways, Split: true}
}

func (*Metaspace) isDecoder() {}

// DecodeChain implements Decoder.
func (d *Metaspace) DecodeChain(tokens []string) ([]string, error) {
	replacement := string(d.Replacement)
	out := make([]string, len(tokens))
	for ii, token := range tokens {
		token = strings.ReplaceAll(token, replacement, " ")
		if ii == 0 && d.PrependScheme != pretokenizers.PrependNever {
			// Only the single space added by the pre-tokenizer.
			token = strings.TrimPrefix(token, " ")
		}
		out[ii] = token
	}
	return out, nil
}

// CTC decodes the output of speech recognition models trained with the Connectionist Temporal
// Classification loss: repeated tokens are collapsed, padding is dropped and the word
// delimiter becomes a space.
type CTC struct {
	PadToken           string `json:"pad_token"`
	WordDelimiterToken string `json:"word_delimiter_token"`
	Cleanup            bool   `json:"cleanup"`
}

// NewCTC returns a CTC decoder with the defaults: "<pad>", "|" and cleanup enabled.
func NewCTC() *CTC {
	return &CTC{PadToken: "<pad>", WordDelimiterToken: "|", Cleanup: true}
}

func (*CTC) isDecoder() {}

// DecodeChain implements Decoder.
func (d *CTC) DecodeChain(tokens []string) ([]string, error) {
	out := make([]string, 0, len(tokens))
	for ii, token := range tokens {
		if ii > 0 && tokens[ii-1] == token {
			continue
		}
		token = strings.ReplaceAll(token, d.PadToken, "")
		if d.Cleanup {
			token = strings.ReplaceAll(Cleanup(token), d.WordDelimiterToken, " ")
		}
		if token != "" {
			out = append(out, token)
		}
	}
	return out, nil
}

// Sequence applies decoders in order, each one consuming the output of the previous.
type Sequence struct {
	Decoders []Decoder
}

// NewSequence returns a Sequence of the given decoders. Nil entries are dropped.
func NewSequence(decoders ...Decoder) *Sequence {
	s := &Sequence{}
	for _, d := range decoders {
		if d != nil {
			s.Decoders = append(s.Decoders, d)
		}
	}
	return s
}

func (*Sequence) isDecoder() {}

// DecodeChain implements Decoder.
func (s *Sequence) DecodeChain(tokens []string) ([]string, error) {
	var err error
	for _, d := range s.Decoders {
		tokens, err = d.DecodeChain(tokens)
		if err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

// Replace replaces every match of a pattern (literal or regex) in each token with Content.
type Replace struct {
	Pattern *regex.Pattern `json:"pattern"`
	Content string         `json:"content"`
}

// NewReplace returns a Replace decoder for the literal string pattern.
func NewReplace(pattern, content string) *Replace {
	return &Replace{Pattern: regex.Literal(pattern), Content: content}
}

// NewReplaceRegex returns a Replace decoder for the regular expression expr.
// It returns an error wrapping errs.ErrInvalidPattern if expr doesn't compile.
func NewReplaceRegex(expr, content string) (*Replace, error) {
	pattern, err := regex.Regex(expr)
	if err != nil {
		return nil, err
	}
	return &Replace{Pattern: pattern, Content: content}, nil
}

func (*Replace) isDecoder() {}

// DecodeChain implements Decoder.
func (d *Replace) DecodeChain(tokens []string) ([]string, error) {
	out := make([]string, len(tokens))
	for ii, token := range tokens {
		replaced, err := d.Pattern.ReplaceAll(token, d.Content)
		if err != nil {
			return nil, errors.WithMessagef(err, "decoder Replace(%s)", d.Pattern)
		}
		out[ii] = replaced
	}
	return out, nil
}

// Fuse concatenates all tokens into one string.
type Fuse struct{}

func (Fuse) isDecoder() {}

// DecodeChain implements Decoder.
func (Fuse) DecodeChain(tokens []string) ([]string, error) {
	return []string{strings.Join(tokens, "")}, nil
}

// ByteFallback converts the "<0xXX>" tokens of models with byte fallback back into bytes.
// Consecutive byte tokens are decoded together as UTF-8: if they are not valid, each one
// becomes a "�".
type ByteFallback struct{}

func (ByteFallback) isDecoder() {}

// parseByteToken returns the byte of a "<0xXX>" token.
func parseByteToken(token string) (byte, bool) {
	if len(token) != 6 || !strings.HasPrefix(token, "<0x") || token[5] != '>' {
		return 0, false
	}
	b, err := strconv.ParseUint(token[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(b), true
}

// DecodeChain implements Decoder.
func (ByteFallback) DecodeChain(tokens []string) ([]string, error) {
	out := make([]string, 0, len(tokens))
	var pending []byte
	flush := func() {
		if len(pending) == 0 {
			return
		}
		if utf8.Valid(pending) {
			out = append(out, string(pending))
		} else {
			for range pending {
				out = append(out, string(utf8.RuneError))
			}
		}
		pending = pending[:0]
	}
	for _, token := range tokens {
		if b, isByte := parseByteToken(token); isByte {
			pending = append(pending, b)
			continue
		}
		flush()
		out = append(out, token)
	}
	flush()
	return out, nil
}

// Strip removes up to Start occurrences of Content from the start of each token, and up to
// Stop from the end.
type Strip struct {
	Content     rune
	Start, Stop int
}

// NewStrip returns a Strip decoder.
func NewStrip(content rune, start, stop int) *Strip {
	return &Strip{Content: content, Start: start, Stop: stop}
}

func (*Strip) isDecoder() {}

// DecodeChain implements Decoder.
func (d *Strip) DecodeChain(tokens []string) ([]string, error) {
	out := make([]string, len(tokens))
	for ii, token := range tokens {
		runes := []rune(token)
		start := 0
		for start < d.Start && start < len(runes) && runes[start] == d.Content {
			start++
		}
		stop := len(runes)
		for len(runes)-stop < d.Stop && stop > start && runes[stop-1] == d.Content {
			stop--
		}
		out[ii] = string(runes[start:stop])
	}
	return out, nil
}
