package tokenizers

import (
	"strings"

	"github.com/gomlx/go-tokenizers/errs"
)

// replacementChar is what decoders emit for incomplete byte sequences.
const replacementChar = "�"

// DecodeStream decodes ids one at a time, e.g. as they are generated by a model, returning
// the new text each id adds, if any.
//
// It keeps a short window of the last ids and decodes it again on each step: this joins
// the bytes of a character split over several byte-fallback or byte-level tokens, and keeps
// the spacing of the Metaspace and WordPiece decoders stable, which would be lost decoding
// each id on its own.
//
// A DecodeStream is not safe for concurrent use.
type DecodeStream struct {
	tokenizer         *Tokenizer
	skipSpecialTokens bool

	// ids is the window of ids still needed to decode the next text.
	ids []uint32

	// prefix is the decoded text of ids[:prefixIndex].
	prefix      string
	prefixIndex int

	// readIndex is the index, in the previous window, where the current window starts.
	readIndex int
}

// NewDecodeStream creates a DecodeStream using the Tokenizer decoder.
func (t *Tokenizer) NewDecodeStream(skipSpecialTokens bool) *DecodeStream {
	return &DecodeStream{tokenizer: t, skipSpecialTokens: skipSpecialTokens}
}

// Step adds id to the stream. It returns the text it completes and true, or false if
// the text is not ready yet (e.g. an incomplete UTF-8 character).
func (s *DecodeStream) Step(id uint32) (string, bool, error) {
	if s.prefix == "" && len(s.ids) > 0 {
		prefix, err := s.tokenizer.Decode(s.ids, s.skipSpecialTokens)
		if err != nil {
			return "", false, err
		}
		if !strings.HasSuffix(prefix, replacementChar) {
			s.prefix = prefix
			s.prefixIndex = len(s.ids)
		}
	}

	s.ids = append(s.ids, id)
	text, err := s.tokenizer.Decode(s.ids, s.skipSpecialTokens)
	if err != nil {
		return "", false, err
	}
	if len(text) <= len(s.prefix) || strings.HasSuffix(text, replacementChar) {
		return "", false, nil
	}
	if !strings.HasPrefix(text, s.prefix) {
		return "", false, errs.Errorf(errs.ErrInternal,
			"DecodeStream: decoded text %q doesn't start with the previously decoded %q", text, s.prefix)
	}
	newText := text[len(s.prefix):]
	newPrefixIndex := len(s.ids) - s.prefixIndex
	s.ids = s.ids[s.prefixIndex:]
	s.prefix, err = s.tokenizer.Decode(s.ids, s.skipSpecialTokens)
	if err != nil {
		return "", false, err
	}
	s.readIndex = s.prefixIndex
	s.prefixIndex = newPrefixIndex
	return newText, true, nil
}

// Reset clears the state of the stream, to start decoding a new sequence.
func (s *DecodeStream) Reset() {
	s.ids = s.ids[:0]
	s.prefix = ""
	s.prefixIndex = 0
	s.readIndex = 0
}
