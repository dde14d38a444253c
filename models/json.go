package models

import (
	"encoding/json"
	"strings"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/jsonutil"
)

type bpeJSON struct {
	Dropout                 *float32        `json:"dropout"`
	UnkToken                *string         `json:"unk_token"`
	ContinuingSubwordPrefix *string         `json:"continuing_subword_prefix"`
	EndOfWordSuffix         *string         `json:"end_of_word_suffix"`
	FuseUnk                 bool            `json:"fuse_unk"`
	ByteFallback            bool            `json:"byte_fallback"`
	IgnoreMerges            bool            `json:"ignore_merges"`
	Vocab                   Vocab           `json:"vocab"`
	Merges                  json.RawMessage `json:"merges"`
}

type wordPieceJSON struct {
	UnkToken                string `json:"unk_token"`
	ContinuingSubwordPrefix string `json:"continuing_subword_prefix"`
	MaxInputCharsPerWord    int    `json:"max_input_chars_per_word"`
	Vocab                   Vocab  `json:"vocab"`
}

type wordLevelJSON struct {
	Vocab    Vocab  `json:"vocab"`
	UnkToken string `json:"unk_token"`
}

type unigramJSON struct {
	UnkID        *int           `json:"unk_id"`
	Vocab        []UnigramPiece `json:"vocab"`
	ByteFallback bool           `json:"byte_fallback"`
}

// modelType returns the "type" field of a model, or infers it from the fields present:
// older tokenizer.json files don't always tag the model.
func modelType(raw json.RawMessage) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", errs.Wrap(errs.ErrConfig, err, "parsing model %s", jsonutil.Truncate(raw))
	}
	if _, found := fields["type"]; found {
		return jsonutil.TypeOf(raw)
	}
	switch {
	case fields["merges"] != nil:
		return "BPE", nil
	case fields["max_input_chars_per_word"] != nil:
		return "WordPiece", nil
	case strings.HasPrefix(strings.TrimSpace(string(fields["vocab"])), "["):
		return "Unigram", nil
	case fields["vocab"] != nil:
		return "WordLevel", nil
	}
	return "", errs.Errorf(errs.ErrConfig, "can't tell the type of model %s", jsonutil.Truncate(raw))
}

// parseMerges accepts both the ["a b", ...] and the [["a", "b"], ...] formats.
func parseMerges(raw json.RawMessage) ([]Pair, error) {
	if jsonutil.IsNull(raw) {
		return nil, nil
	}
	var asPairs [][2]string
	if err := json.Unmarshal(raw, &asPairs); err == nil {
		merges := make([]Pair, len(asPairs))
		for ii, pair := range asPairs {
			merges[ii] = Pair{A: pair[0], B: pair[1]}
		}
		return merges, nil
	}
	var asLines []string
	if err := json.Unmarshal(raw, &asLines); err != nil {
		return nil, errs.Wrap(errs.ErrConfig, err, "parsing BPE merges")
	}
	merges := make([]Pair, len(asLines))
	for ii, line := range asLines {
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			return nil, errs.Errorf(errs.ErrConfig, "invalid BPE merge #%d: %q", ii, line)
		}
		merges[ii] = Pair{A: parts[0], B: parts[1]}
	}
	return merges, nil
}

func valueOr(s *string, defaultValue string) string {
	if s == nil {
		return defaultValue
	}
	return *s
}

// FromJSON parses a model in the HuggingFace tokenizer.json format.
func FromJSON(raw json.RawMessage) (Model, error) {
	if jsonutil.IsNull(raw) {
		return nil, errs.Errorf(errs.ErrConfig, "missing model")
	}
	typeName, err := modelType(raw)
	if err != nil {
		return nil, err
	}
	switch typeName {
	case "BPE":
		var bj bpeJSON
		if err := jsonutil.Decode(typeName, raw, &bj); err != nil {
			return nil, err
		}
		merges, err := parseMerges(bj.Merges)
		if err != nil {
			return nil, err
		}
		config := DefaultBPEConfig()
		if bj.Dropout != nil {
			config.Dropout = *bj.Dropout
		}
		config.UnkToken = valueOr(bj.UnkToken, "")
		config.ContinuingSubwordPrefix = valueOr(bj.ContinuingSubwordPrefix, "")
		config.EndOfWordSuffix = valueOr(bj.EndOfWordSuffix, "")
		config.FuseUnk = bj.FuseUnk
		config.ByteFallback = bj.ByteFallback
		config.IgnoreMerges = bj.IgnoreMerges
		return NewBPE(bj.Vocab, merges, config)

	case "WordPiece":
		wj := wordPieceJSON{
			UnkToken:                DefaultWordPieceUnkToken,
			ContinuingSubwordPrefix: DefaultContinuingPrefix,
			MaxInputCharsPerWord:    DefaultMaxInputCharsPerWord,
		}
		if err := jsonutil.Decode(typeName, raw, &wj); err != nil {
			return nil, err
		}
		return NewWordPiece(wj.Vocab, WordPieceConfig{
			UnkToken:                wj.UnkToken,
			ContinuingSubwordPrefix: wj.ContinuingSubwordPrefix,
			MaxInputCharsPerWord:    wj.MaxInputCharsPerWord,
		})

	case "WordLevel":
		wj := wordLevelJSON{UnkToken: DefaultWordLevelUnkToken}
		if err := jsonutil.Decode(typeName, raw, &wj); err != nil {
			return nil, err
		}
		return NewWordLevel(wj.Vocab, wj.UnkToken)

	case "Unigram":
		var uj unigramJSON
		if err := jsonutil.Decode(typeName, raw, &uj); err != nil {
			return nil, err
		}
		unkID := -1
		if uj.UnkID != nil {
			unkID = *uj.UnkID
		}
		return NewUnigram(uj.Vocab, unkID, uj.ByteFallback)
	}
	return nil, errs.Errorf(errs.ErrConfig, "unknown model type %q", typeName)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ToJSON serializes the model in the HuggingFace tokenizer.json format.
func ToJSON(model Model) (json.RawMessage, error) {
	switch m := model.(type) {
	case *BPE:
		var dropout *float32
		if m.config.Dropout > 0 {
			dropout = &m.config.Dropout
		}
		merges := make([][2]string, len(m.pairs))
		for ii, pair := range m.pairs {
			merges[ii] = [2]string{pair.A, pair.B}
		}
		mergesRaw, err := json.Marshal(merges)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInternal, err, "serializing BPE merges")
		}
		return jsonutil.Tagged("BPE", bpeJSON{
			Dropout:                 dropout,
			UnkToken:                optionalString(m.config.UnkToken),
			ContinuingSubwordPrefix: optionalString(m.config.ContinuingSubwordPrefix),
			EndOfWordSuffix:         optionalString(m.config.EndOfWordSuffix),
			FuseUnk:                 m.config.FuseUnk,
			ByteFallback:            m.config.ByteFallback,
			IgnoreMerges:            m.config.IgnoreMerges,
			Vocab:                   m.vocab,
			Merges:                  mergesRaw,
		})
	case *WordPiece:
		return jsonutil.Tagged("WordPiece", wordPieceJSON{
			UnkToken:                m.config.UnkToken,
			ContinuingSubwordPrefix: m.config.ContinuingSubwordPrefix,
			MaxInputCharsPerWord:    m.config.MaxInputCharsPerWord,
			Vocab:                   m.vocab,
		})
	case *WordLevel:
		return jsonutil.Tagged("WordLevel", wordLevelJSON{Vocab: m.vocab, UnkToken: m.unkToken})
	case *Unigram:
		var unkID *int
		if m.unkID >= 0 {
			unkID = &m.unkID
		}
		return jsonutil.Tagged("Unigram", unigramJSON{UnkID: unkID, Vocab: m.pieces, ByteFallback: m.byteFallback})
	}
	return nil, errs.Errorf(errs.ErrInternal, "unknown model %T", model)
}
