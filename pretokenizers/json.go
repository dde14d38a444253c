package pretokenizers

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/jsonutil"
)

// FromJSON parses a pre-tokenizer in the HuggingFace tokenizer.json format.
// A JSON null returns a nil PreTokenizer.
func FromJSON(raw json.RawMessage) (PreTokenizer, error) {
	if jsonutil.IsNull(raw) {
		return nil, nil
	}
	typeName, err := jsonutil.TypeOf(raw)
	if err != nil {
		return nil, err
	}
	switch typeName {
	case "ByteLevel":
		b := NewByteLevel()
		return b, jsonutil.Decode(typeName, raw, b)
	case "Whitespace":
		return Whitespace{}, nil
	case "WhitespaceSplit":
		return WhitespaceSplit{}, nil
	case "BertPreTokenizer":
		return Bert{}, nil
	case "UnicodeScripts":
		return UnicodeScripts{}, nil
	case "Metaspace":
		return parseMetaspaceJSON(raw)
	case "CharDelimiterSplit":
		var cj struct {
			Delimiter string `json:"delimiter"`
		}
		if err := jsonutil.Decode(typeName, raw, &cj); err != nil {
			return nil, err
		}
		if utf8.RuneCountInString(cj.Delimiter) != 1 {
			return nil, errs.Errorf(errs.ErrInvalidInput, "CharDelimiterSplit delimiter %q must be a single character", cj.Delimiter)
		}
		delimiter, _ := utf8.DecodeRuneInString(cj.Delimiter)
		return NewCharDelimiterSplit(delimiter), nil
	case "Split":
		s := &Split{}
		if err := jsonutil.Decode(typeName, raw, s); err != nil {
			return nil, err
		}
		if s.Pattern == nil {
			return nil, errs.Errorf(errs.ErrConfig, "pre-tokenizer Split is missing its pattern")
		}
		return s, nil
	case "Punctuation":
		pt := NewPunctuation(Isolated)
		return pt, jsonutil.Decode(typeName, raw, pt)
	case "Digits":
		d := NewDigits(false)
		return d, jsonutil.Decode(typeName, raw, d)
	case "Sequence":
		var sj struct {
			PreTokenizers []json.RawMessage `json:"pretokenizers"`
		}
		if err := jsonutil.Decode(typeName, raw, &sj); err != nil {
			return nil, err
		}
		s := &Sequence{}
		for _, childRaw := range sj.PreTokenizers {
			child, err := FromJSON(childRaw)
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, errs.Errorf(errs.ErrConfig, "pre-tokenizer Sequence with a null member")
			}
			s.PreTokenizers = append(s.PreTokenizers, child)
		}
		return s, nil
	}
	return nil, errs.Errorf(errs.ErrConfig, "unknown pre-tokenizer type %q", typeName)
}

// ToJSON serializes the pre-tokenizer in the HuggingFace tokenizer.json format.
// A nil PreTokenizer is serialized as JSON null.
func ToJSON(preTokenizer PreTokenizer) (json.RawMessage, error) {
	switch pt := preTokenizer.(type) {
	case nil:
		return jsonutil.Null, nil
	case *ByteLevel:
		return jsonutil.Tagged("ByteLevel", pt)
	case Whitespace:
		return jsonutil.Tagged("Whitespace", struct{}{})
	case WhitespaceSplit:
		return jsonutil.Tagged("WhitespaceSplit", struct{}{})
	case Bert:
		return jsonutil.Tagged("BertPreTokenizer", struct{}{})
	case UnicodeScripts:
		return jsonutil.Tagged("UnicodeScripts", struct{}{})
	case *Metaspace:
		return jsonutil.Tagged("Metaspace", pt)
	case *CharDelimiterSplit:
		return jsonutil.Tagged("CharDelimiterSplit", struct {
			Delimiter string `json:"delimiter"`
		}{string(pt.Delimiter)})
	case *Split:
		return jsonutil.Tagged("Split", pt)
	case *Punctuation:
		return jsonutil.Tagged("Punctuation", pt)
	case *Digits:
		return jsonutil.Tagged("Digits", pt)
	case *Sequence:
		children := make([]json.RawMessage, 0, len(pt.PreTokenizers))
		for _, child := range pt.PreTokenizers {
			childRaw, err := ToJSON(child)
			if err != nil {
				return nil, err
			}
			children = append(children, childRaw)
		}
		return jsonutil.Tagged("Sequence", struct {
			PreTokenizers []json.RawMessage `json:"pretokenizers"`
		}{children})
	}
	return nil, errs.Errorf(errs.ErrInternal, "unknown pre-tokenizer %T", preTokenizer)
}
