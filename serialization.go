package tokenizers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/gomlx/go-tokenizers/decoders"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/fsutil"
	"github.com/gomlx/go-tokenizers/internal/jsonutil"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/gomlx/go-tokenizers/processors"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/pkg/errors"
)

// FormatVersion is the version of the tokenizer.json format written by ToJSON.
const FormatVersion = "1.0"

// tokenizerJSON is the layout of a tokenizer.json file.
type tokenizerJSON struct {
	Version       string            `json:"version"`
	Truncation    *TruncationParams `json:"truncation"`
	Padding       *PaddingParams    `json:"padding"`
	AddedTokens   []addedTokenJSON  `json:"added_tokens"`
	Normalizer    json.RawMessage   `json:"normalizer"`
	PreTokenizer  json.RawMessage   `json:"pre_tokenizer"`
	Model         json.RawMessage   `json:"model"`
	PostProcessor json.RawMessage   `json:"post_processor"`
	Decoder       json.RawMessage   `json:"decoder"`
}

type addedTokenJSON struct {
	ID uint32 `json:"id"`
	tokens.AddedToken
}

// FromFile creates a Tokenizer from the tokenizer model stored as JSon in filePath.
// It is the same format as [HuggingFace Tokenizers](https://github.com/huggingface/tokenizers).
func FromFile(filePath string) (*Tokenizer, error) {
	contents, err := fsutil.ReadFile(filePath)
	if err != nil {
		return nil, errors.WithMessage(err, "can't read tokenizer file")
	}
	t, err := FromBytes(contents)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading tokenizer from %q", filePath)
	}
	slog.Debug("loaded tokenizer", "path", filePath, "vocab_size", t.GetVocabSize(true))
	return t, nil
}

// FromFileWithSpecialTokens is like FromFile, and adds the given special tokens.
func FromFileWithSpecialTokens(filePath string, special ...tokens.AddedToken) (*Tokenizer, error) {
	t, err := FromFile(filePath)
	if err != nil {
		return nil, err
	}
	return t.WithSpecialTokens(special...), nil
}

// FromReader is the same as FromFile, but reads the JSon from r.
func FromReader(r io.Reader) (*Tokenizer, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "reading tokenizer")
	}
	return FromBytes(contents)
}

// FromBytes is the same as FromFile, but instead takes the JSon `data` and returns a Tokenizer,
// or an error.
// It is the same format as [HuggingFace Tokenizers](https://github.com/huggingface/tokenizers).
func FromBytes(data []byte) (*Tokenizer, error) {
	var tj tokenizerJSON
	if err := jsonutil.Decode("tokenizer", data, &tj); err != nil {
		return nil, err
	}
	if jsonutil.IsNull(tj.Model) {
		return nil, errs.Errorf(errs.ErrConfig, "tokenizer has no \"model\"")
	}
	model, err := models.FromJSON(tj.Model)
	if err != nil {
		return nil, errors.WithMessage(err, "model")
	}
	t := New(model)
	if t.normalizer, err = normalizers.FromJSON(tj.Normalizer); err != nil {
		return nil, errors.WithMessage(err, "normalizer")
	}
	if t.preTokenizer, err = pretokenizers.FromJSON(tj.PreTokenizer); err != nil {
		return nil, errors.WithMessage(err, "pre_tokenizer")
	}
	if t.postProcessor, err = processors.FromJSON(tj.PostProcessor); err != nil {
		return nil, errors.WithMessage(err, "post_processor")
	}
	if t.decoder, err = decoders.FromJSON(tj.Decoder); err != nil {
		return nil, errors.WithMessage(err, "decoder")
	}
	t.truncation = tj.Truncation
	t.padding = tj.Padding

	entries := make([]addedEntry, len(tj.AddedTokens))
	for ii, at := range tj.AddedTokens {
		entries[ii] = addedEntry{token: at.AddedToken, id: at.ID}
	}
	if t.added, err = t.added.withEntries(t.normalizer, entries); err != nil {
		return nil, err
	}
	return t, nil
}

// ToJSON serializes the Tokenizer in the tokenizer.json format. If pretty is true, the
// JSON is indented.
func (t *Tokenizer) ToJSON(pretty bool) ([]byte, error) {
	tj := tokenizerJSON{
		Version:     FormatVersion,
		Truncation:  t.truncation,
		Padding:     t.padding,
		AddedTokens: make([]addedTokenJSON, 0, t.added.len()),
	}
	for _, e := range t.added.sorted() {
		tj.AddedTokens = append(tj.AddedTokens, addedTokenJSON{ID: e.id, AddedToken: e.token})
	}
	var err error
	if tj.Normalizer, err = normalizers.ToJSON(t.normalizer); err != nil {
		return nil, err
	}
	if tj.PreTokenizer, err = pretokenizers.ToJSON(t.preTokenizer); err != nil {
		return nil, err
	}
	if tj.Model, err = models.ToJSON(t.model); err != nil {
		return nil, err
	}
	if tj.PostProcessor, err = processors.ToJSON(t.postProcessor); err != nil {
		return nil, err
	}
	if tj.Decoder, err = decoders.ToJSON(t.decoder); err != nil {
		return nil, err
	}
	data, err := jsonutil.Marshal(tj)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternal, err, "serializing tokenizer")
	}
	if !pretty {
		return data, nil
	}
	var buf bytes.Buffer
	if err = json.Indent(&buf, data, "", "  "); err != nil {
		return nil, errs.Wrap(errs.ErrInternal, err, "indenting tokenizer JSON")
	}
	return buf.Bytes(), nil
}

// Save writes the Tokenizer to filePath in the tokenizer.json format. The file is replaced
// atomically.
func (t *Tokenizer) Save(filePath string, pretty bool) error {
	data, err := t.ToJSON(pretty)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(filePath, data)
}
