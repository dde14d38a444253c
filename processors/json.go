package processors

import (
	"encoding/json"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/jsonutil"
)

// MarshalJSON implements json.Marshaler: a TokenID is serialized as a ["token", id] pair.
func (t TokenID) MarshalJSON() ([]byte, error) {
	return jsonutil.Marshal([]any{t.Token, t.ID})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TokenID) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil || len(pair) != 2 {
		return errs.Errorf(errs.ErrConfig, "special token must be a [token, id] pair, got %s", jsonutil.Truncate(data))
	}
	if err := json.Unmarshal(pair[0], &t.Token); err != nil {
		return errs.Wrap(errs.ErrConfig, err, "parsing special token")
	}
	if err := json.Unmarshal(pair[1], &t.ID); err != nil {
		return errs.Wrap(errs.ErrConfig, err, "parsing id of special token %q", t.Token)
	}
	return nil
}

type bertJSON struct {
	Sep TokenID `json:"sep"`
	Cls TokenID `json:"cls"`
}

type robertaJSON struct {
	Sep            TokenID `json:"sep"`
	Cls            TokenID `json:"cls"`
	TrimOffsets    bool    `json:"trim_offsets"`
	AddPrefixSpace bool    `json:"add_prefix_space"`
}

type templateJSON struct {
	Single        []Piece                 `json:"single"`
	Pair          []Piece                 `json:"pair"`
	SpecialTokens map[string]SpecialToken `json:"special_tokens"`
}

// FromJSON parses a post-processor in the HuggingFace tokenizer.json format.
// A JSON null returns a nil PostProcessor.
func FromJSON(raw json.RawMessage) (PostProcessor, error) {
	if jsonutil.IsNull(raw) {
		return nil, nil
	}
	typeName, err := jsonutil.TypeOf(raw)
	if err != nil {
		return nil, err
	}
	switch typeName {
	case "BertProcessing":
		b := NewDefaultBert()
		bj := bertJSON{Sep: b.Sep, Cls: b.Cls}
		if err := jsonutil.Decode(typeName, raw, &bj); err != nil {
			return nil, err
		}
		return NewBert(bj.Sep, bj.Cls), nil
	case "RobertaProcessing":
		r := NewRoberta()
		rj := robertaJSON{Sep: r.Sep, Cls: r.Cls, TrimOffsets: r.TrimOffsets, AddPrefixSpace: r.AddPrefixSpace}
		if err := jsonutil.Decode(typeName, raw, &rj); err != nil {
			return nil, err
		}
		return &Roberta{Sep: rj.Sep, Cls: rj.Cls, TrimOffsets: rj.TrimOffsets, AddPrefixSpace: rj.AddPrefixSpace}, nil
	case "ByteLevel":
		b := NewByteLevel()
		return b, jsonutil.Decode(typeName, raw, b)
	case "TemplateProcessing":
		var tj templateJSON
		if err := jsonutil.Decode(typeName, raw, &tj); err != nil {
			return nil, err
		}
		t := &Template{Single: tj.Single, Pair: tj.Pair, SpecialTokens: tj.SpecialTokens}
		if t.SpecialTokens == nil {
			t.SpecialTokens = make(map[string]SpecialToken)
		}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		return t, nil
	case "Sequence":
		var sj struct {
			Processors []json.RawMessage `json:"processors"`
		}
		if err := jsonutil.Decode(typeName, raw, &sj); err != nil {
			return nil, err
		}
		s := &Sequence{}
		for _, childRaw := range sj.Processors {
			child, err := FromJSON(childRaw)
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, errs.Errorf(errs.ErrConfig, "post-processor Sequence with a null member")
			}
			s.Processors = append(s.Processors, child)
		}
		return s, nil
	}
	return nil, errs.Errorf(errs.ErrConfig, "unknown post-processor type %q", typeName)
}

// ToJSON serializes the post-processor in the HuggingFace tokenizer.json format.
// A nil PostProcessor is serialized as JSON null.
func ToJSON(postProcessor PostProcessor) (json.RawMessage, error) {
	switch p := postProcessor.(type) {
	case nil:
		return jsonutil.Null, nil
	case *Bert:
		return jsonutil.Tagged("BertProcessing", bertJSON{Sep: p.Sep, Cls: p.Cls})
	case *Roberta:
		return jsonutil.Tagged("RobertaProcessing", robertaJSON{
			Sep: p.Sep, Cls: p.Cls, TrimOffsets: p.TrimOffsets, AddPrefixSpace: p.AddPrefixSpace})
	case *ByteLevel:
		return jsonutil.Tagged("ByteLevel", p)
	case *Template:
		return jsonutil.Tagged("TemplateProcessing", templateJSON{Single: p.Single, Pair: p.Pair, SpecialTokens: p.SpecialTokens})
	case *Sequence:
		children := make([]json.RawMessage, 0, len(p.Processors))
		for _, child := range p.Processors {
			childRaw, err := ToJSON(child)
			if err != nil {
				return nil, err
			}
			children = append(children, childRaw)
		}
		return jsonutil.Tagged("Sequence", struct {
			Processors []json.RawMessage `json:"processors"`
		}{children})
	}
	return nil, errs.Errorf(errs.ErrInternal, "unknown post-processor %T", postProcessor)
}
