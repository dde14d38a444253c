package pretokenizers

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/regex"
	"github.com/gomlx/go-tokenizers/normalizers"
)

// PrependScheme defines when Metaspace adds the replacement character before a piece.
type PrependScheme uint8

const (
	// PrependFirst only prepends to the first piece of the input.
	PrependFirst PrependScheme = iota

	// PrependNever never prepends.
	PrependNever

	// PrependAlways prepends to every piece that doesn't start with the replacement.
	PrependAlways
)

//go:generate stringer -type=PrependScheme -trimprefix=Prepend -output=prepend_scheme_string.go

// MarshalJSON implements json.Marshaler. Values are serialized in lower case.
func (s PrependScheme) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(s.String()))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *PrependScheme) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errs.Wrap(errs.ErrConfig, err, "parsing prepend scheme")
	}
	for candidate := PrependFirst; candidate <= PrependAlways; candidate++ {
		if strings.EqualFold(candidate.String(), name) {
			*s = candidate
			return nil
		}
	}
	return errs.Errorf(errs.ErrConfig, "unknown prepend scheme %q", name)
}

// DefaultReplacement is the character used by SentencePiece to mark spaces.
const DefaultReplacement = '▁'

// Metaspace replaces spaces with a visible replacement character ("▁") and splits on it,
// keeping the replacement at the start of each piece. This is the SentencePiece convention.
type Metaspace struct {
	Replacement   rune
	PrependScheme PrependScheme

	// Split on the replacement character. If false only the replacement is done.
	Split bool
}

// NewMetaspace returns a Metaspace pre-tokenizer with the defaults: "▁" replacement,
// always prepend and split.
func NewMetaspace() *Metaspace {
	return &Metaspace{Replacement: DefaultReplacement, PrependScheme: PrependAlways, Split: true}
}

func (*Metaspace) isPreTokenizer() {}

// PreTokenize implements PreTokenizer.
func (m *Metaspace) PreTokenize(p *PreTokenizedString) error {
	replacement := string(m.Replacement)
	return p.Split(func(_ int, n *normalizers.NormalizedString) ([]*normalizers.NormalizedString, error) {
		if err := n.Replace(regex.Rune(' '), replacement); err != nil {
			return nil, err
		}
		startsWithReplacement := strings.HasPrefix(n.Get(), replacement)
		switch m.PrependScheme {
		case PrependAlways:
			if !startsWithReplacement {
				n.Prepend(replacement)
			}
		case PrependFirst:
			if !startsWithReplacement && n.OriginalShift() == 0 {
				n.Prepend(replacement)
			}
		}
		if m.Split {
			return n.Split(regex.Rune(m.Replacement), MergedWithNext, false)
		}
		return []*normalizers.NormalizedString{n}, nil
	})
}

type metaspaceJSON struct {
	Replacement    string         `json:"replacement"`
	PrependScheme  *PrependScheme `json:"prepend_scheme,omitempty"`
	Split          *bool          `json:"split,omitempty"`
	AddPrefixSpace *bool          `json:"add_prefix_space,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *Metaspace) MarshalJSON() ([]byte, error) {
	return json.Marshal(metaspaceJSON{
		Replacement:   string(m.Replacement),
		PrependScheme: &m.PrependScheme,
		Split:         &m.Split,
	})
}

// UnmarshalJSON implements json.Unmarshaler. It also accepts the legacy "add_prefix_space" field.
func (m *Metaspace) UnmarshalJSON(data []byte) error {
	parsed, err := parseMetaspaceJSON(data)
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

func parseMetaspaceJSON(data []byte) (*Metaspace, error) {
	var mj metaspaceJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return nil, errs.Wrap(errs.ErrConfig, err, "parsing Metaspace")
	}
	m := NewMetaspace()
	if mj.Replacement != "" {
		if utf8.RuneCountInString(mj.Replacement) != 1 {
			return nil, errs.Errorf(errs.ErrInvalidInput, "Metaspace replacement %q must be a single character", mj.Replacement)
		}
		m.Replacement, _ = utf8.DecodeRuneInString(mj.Replacement)
	}
	switch {
	case mj.PrependScheme != nil:
		m.PrependScheme = *mj.PrependScheme
	case mj.AddPrefixSpace != nil && !*mj.AddPrefixSpace:
		m.PrependScheme = PrependNever
	}
	if mj.Split != nil {
		m.Split = *mj.Split
	}
	return m, nil
}

// ParseMetaspaceJSON parses the fields shared by the Metaspace pre-tokenizer and decoder.
func ParseMetaspaceJSON(data []byte) (replacement rune, scheme PrependScheme, split bool, err error) {
	m, err := parseMetaspaceJSON(data)
	if err != nil {
		return 0, 0, false, err
	}
	return m.Replacement, m.PrependScheme, m.Split, nil
}
