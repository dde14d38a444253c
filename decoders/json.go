package decoders

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/jsonutil"
	"github.com/gomlx/go-tokenizers/pretokenizers"
)

type metaspaceJSON struct {
	Replacement   string                      `json:"replacement"`
	PrependScheme pretokenizers.PrependScheme `json:"prepend_scheme"`
	Split         bool                        `json:"split"`
}

type stripJSON struct {
	Content string `json:"content"`
	Start   int    `json:"start"`
	Stop    int    `json:"stop"`
}

// FromJSON parses a decoder in the HuggingFace tokenizer.json format.
// A JSON null returns a nil Decoder.
func FromJSON(raw json.RawMessage) (Decoder, error) {
	if jsonutil.IsNull(raw) {
		return nil, nil
	}
	typeName, err := jsonutil.TypeOf(raw)
	if err != nil {
		return nil, err
	}
	switch typeName {
	case "BPEDecoder":
		d := NewBPE(DefaultBPESuffix)
		return d, jsonutil.Decode(typeName, raw, d)
	case "ByteLevel":
		d := NewByteLevel()
		return d, jsonutil.Decode(typeName, raw, d)
	case "WordPiece":
		d := NewWordPiece()
		return d, jsonutil.Decode(typeName, raw, d)
	case "Metaspace":
		replacement, scheme, split, err := pretokenizers.ParseMetaspaceJSON(raw)
		if err != nil {
			return nil, err
		}
		return &Metaspace{Replacement: replacement, PrependScheme: scheme, Split: split}, nil
	case "CTC":
		d := NewCTC()
		return d, jsonutil.Decode(typeName, raw, d)
	case "Replace":
		d := &Replace{}
		if err := jsonutil.Decode(typeName, raw, d); err != nil {
			return nil, err
		}
		if d.Pattern == nil {
			return nil, errs.Errorf(errs.ErrConfig, "decoder Replace is missing its pattern")
		}
		return d, nil
	case "Fuse":
		return Fuse{}, nil
	case "ByteFallback":
		return ByteFallback{}, nil
	case "Strip":
		var sj stripJSON
		if err := jsonutil.Decode(typeName, raw, &sj); err != nil {
			return nil, err
		}
		if utf8.RuneCountInString(sj.Content) != 1 {
			return nil, errs.Errorf(errs.ErrInvalidInput, "decoder Strip content %q must be a single character", sj.Content)
		}
		if sj.Start < 0 || sj.Stop < 0 {
			return nil, errs.Errorf(errs.ErrConfig, "decoder Strip with negative counts (%d, %d)", sj.Start, sj.Stop)
		}
		content, _ := utf8.DecodeRuneInString(sj.Content)
		return NewStrip(content, sj.Start, sj.Stop), nil
	case "Sequence":
		var sj struct {
			Decoders []json.RawMessage `json:"decoders"`
		}
		if err := jsonutil.Decode(typeName, raw, &sj); err != nil {
			return nil, err
		}
		s := &Sequence{}
		for _, childRaw := range sj.Decoders {
			child, err := FromJSON(childRaw)
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, errs.Errorf(errs.ErrConfig, "decoder Sequence with a null member")
			}
			s.Decoders = append(s.Decoders, child)
		}
		return s, nil
	}
	return nil, errs.Errorf(errs.ErrConfig, "unknown decoder type %q", typeName)
}

// ToJSON serializes the decoder in the HuggingFace tokenizer.json format.
// A nil Decoder is serialized as JSON null.
func ToJSON(decoder Decoder) (json.RawMessage, error) {
	switch d := decoder.(type) {
	case nil:
		return jsonutil.Null, nil
	case *BPE:
		return jsonutil.Tagged("BPEDecoder", d)
	case *ByteLevel:
		return jsonutil.Tagged("ByteLevel", d)
	case *WordPiece:
		return jsonutil.Tagged("WordPiece", d)
	case *Metaspace:
		return jsonutil.Tagged("Metaspace", metaspaceJSON{
			Replacement: string(d.Replacement), PrependScheme: d.PrependScheme, Split: d.Split})
	case *CTC:
		return jsonutil.Tagged("CTC", d)
	case *Replace:
		return jsonutil.Tagged("Replace", d)
	case Fuse:
		return jsonutil.Tagged("Fuse", struct{}{})
	case ByteFallback:
		return jsonutil.Tagged("ByteFallback", struct{}{})
	case *Strip:
		return jsonutil.Tagged("Strip", stripJSON{Content: string(d.Content), Start: d.Start, Stop: d.Stop})
	case *Sequence:
		children := make([]json.RawMessage, 0, len(d.Decoders))
		for _, child := range d.Decoders {
			childRaw, err := ToJSON(child)
			if err != nil {
				return nil, err
			}
			children = append(children, childRaw)
		}
		return jsonutil.Tagged("Sequence", struct {
			Decoders []json.RawMessage `json:"decoders"`
		}{children})
	}
	return nil, errs.Errorf(errs.ErrInternal, "unknown decoder %T", decoder)
}
