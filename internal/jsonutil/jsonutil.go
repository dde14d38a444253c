// Package jsonutil implements the `{"type": "...", ...}` tagged encoding used by
// tokenizer.json for every pipeline component.
package jsonutil

import (
	"bytes"
	"encoding/json"

	"github.com/gomlx/go-tokenizers/errs"
)

// Null is the JSON encoding of a missing component.
var Null = json.RawMessage("null")

// IsNull returns whether raw is empty or the JSON null.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, Null)
}

// Marshal is like json.Marshal, but without escaping HTML characters: tokens like "<unk>"
// are written as is.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Tagged marshals v, which must encode to a JSON object, adding the "type" field with typeName.
func Tagged(typeName string, v any) (json.RawMessage, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, errs.Wrap(errs.ErrConfig, err, "serializing %s", typeName)
	}
	fields := make(map[string]json.RawMessage)
	if err = json.Unmarshal(data, &fields); err != nil {
		return nil, errs.Wrap(errs.ErrInternal, err, "%s doesn't serialize to a JSON object", typeName)
	}
	fields["type"], _ = Marshal(typeName)
	return Marshal(fields)
}

// TypeOf returns the value of the "type" field of the JSON object raw.
func TypeOf(raw json.RawMessage) (string, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", errs.Wrap(errs.ErrConfig, err, "parsing component %s", Truncate(raw))
	}
	if header.Type == "" {
		return "", errs.Errorf(errs.ErrConfig, "component %s is missing the \"type\" field", Truncate(raw))
	}
	return header.Type, nil
}

// Decode unmarshals raw into v, classifying errors as errs.ErrConfig.
func Decode(typeName string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errs.Wrap(errs.ErrConfig, err, "parsing %s", typeName)
	}
	return nil
}

// Truncate returns at most the first 80 bytes of raw, for error messages.
func Truncate(raw json.RawMessage) string {
	const maxLen = 80
	if len(raw) <= maxLen {
		return string(raw)
	}
	return string(raw[:maxLen]) + "..."
}
