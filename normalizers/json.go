package normalizers

import (
	"encoding/json"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/jsonutil"
)

// FromJSON parses a normalizer in the HuggingFace tokenizer.json format.
// A JSON null returns a nil Normalizer.
func FromJSON(raw json.RawMessage) (Normalizer, error) {
	if jsonutil.IsNull(raw) {
		return nil, nil
	}
	typeName, err := jsonutil.TypeOf(raw)
	if err != nil {
		return nil, err
	}
	switch typeName {
	case "BertNormalizer":
		b := NewBert()
		return b, jsonutil.Decode(typeName, raw, b)
	case "NFC":
		return NFC{}, nil
	case "NFD":
		return NFD{}, nil
	case "NFKC":
		return NFKC{}, nil
	case "NFKD":
		return NFKD{}, nil
	case "Lowercase":
		return Lowercase{}, nil
	case "StripAccents":
		return StripAccents{}, nil
	case "Nmt":
		return Nmt{}, nil
	case "Strip":
		s := NewStrip(true, true)
		return s, jsonutil.Decode(typeName, raw, s)
	case "Prepend":
		p := &Prepend{}
		return p, jsonutil.Decode(typeName, raw, p)
	case "Replace":
		r := &Replace{}
		if err := json.Unmarshal(raw, r); err != nil {
			return nil, err
		}
		if r.Pattern == nil {
			return nil, errs.Errorf(errs.ErrConfig, "normalizer Replace is missing its pattern")
		}
		return r, nil
	case "Precompiled":
		p := &Precompiled{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, err
		}
		return p, nil
	case "Sequence":
		var sj struct {
			Normalizers []json.RawMessage `json:"normalizers"`
		}
		if err := jsonutil.Decode(typeName, raw, &sj); err != nil {
			return nil, err
		}
		s := &Sequence{}
		for _, childRaw := range sj.Normalizers {
			child, err := FromJSON(childRaw)
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, errs.Errorf(errs.ErrConfig, "normalizer Sequence with a null member")
			}
			s.Normalizers = append(s.Normalizers, child)
		}
		return s, nil
	}
	return nil, errs.Errorf(errs.ErrConfig, "unknown normalizer type %q", typeName)
}

// ToJSON serializes the normalizer in the HuggingFace tokenizer.json format.
// A nil Normalizer is serialized as JSON null.
func ToJSON(normalizer Normalizer) (json.RawMessage, error) {
	switch n := normalizer.(type) {
	case nil:
		return jsonutil.Null, nil
	case *Bert:
		return jsonutil.Tagged("BertNormalizer", n)
	case NFC:
		return jsonutil.Tagged("NFC", struct{}{})
	case NFD:
		return jsonutil.Tagged("NFD", struct{}{})
	case NFKC:
		return jsonutil.Tagged("NFKC", struct{}{})
	case NFKD:
		return jsonutil.Tagged("NFKD", struct{}{})
	case Lowercase:
		return jsonutil.Tagged("Lowercase", struct{}{})
	case StripAccents:
		return jsonutil.Tagged("StripAccents", struct{}{})
	case Nmt:
		return jsonutil.Tagged("Nmt", struct{}{})
	case *Strip:
		return jsonutil.Tagged("Strip", n)
	case *Prepend:
		return jsonutil.Tagged("Prepend", n)
	case *Replace:
		return jsonutil.Tagged("Replace", n)
	case *Precompiled:
		return jsonutil.Tagged("Precompiled", n)
	case *Sequence:
		children := make([]json.RawMessage, 0, len(n.Normalizers))
		for _, child := range n.Normalizers {
			childRaw, err := ToJSON(child)
			if err != nil {
				return nil, err
			}
			children = append(children, childRaw)
		}
		return jsonutil.Tagged("Sequence", struct {
			Normalizers []json.RawMessage `json:"normalizers"`
		}{children})
	}
	return nil, errs.Errorf(errs.ErrInternal, "unknown normalizer %T", normalizer)
}
