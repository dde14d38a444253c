package tokenizers

import (
	"cmp"
	"encoding/json"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"

	"github.com/gomlx/go-tokenizers/internal/fsutil"
	"github.com/gomlx/go-tokenizers/internal/jsonutil"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/pkg/errors"
)

// This file handles loading a Tokenizer vocabulary and configuration from
// a pretrained model, either in a local directory or in the HuggingFace Hub cache.

// Filenames used for tokenizers
const (
	tokenizerFileName        = "tokenizer.json"
	specialTokensMapFileName = "special_tokens_map.json"
	addedTokensFileName      = "added_tokens.json"
)

// PretrainedConfig for how to load a pretrained Tokenizer from disk.
// It can be configured in different ways (see methods below), and when finished configuring,
// call Done to actually load the pretrained tokenizer.
type PretrainedConfig struct {
	name, cacheDir, revision string
}

// FromPretrained loads the pretrained tokenizer with the given name, using the default
// configuration. See FromPretrainedWith for details.
func FromPretrained(name string) (*Tokenizer, error) {
	return FromPretrainedWith(name).Done()
}

// FromPretrainedWith creates a new Tokenizer from the pretrained tokenizer corresponding
// to the name: either a local directory holding a "tokenizer.json" file, or the name of a
// HuggingFace model (e.g. "bert-base-uncased") previously downloaded to the HuggingFace
// Hub cache.
//
// There are several options that can be configured.
// After that one calls Done, and it will return the Tokenizer object (or an error).
func FromPretrainedWith(name string) *PretrainedConfig {
	// cacheDir defaults to the same used by pytorch transformers.
	return &PretrainedConfig{
		name:     name,
		cacheDir: DefaultCacheDir(),
		revision: DefaultRevision,
	}
}

// CacheDir configures cacheDir as the HuggingFace Hub cache directory to read from.
//
// The default value is `~/.cache/huggingface/hub/`, the same used by the original Transformers library.
// See DefaultCacheDir for the environment variables that change it.
func (pt *PretrainedConfig) CacheDir(cacheDir string) *PretrainedConfig {
	pt.cacheDir = cacheDir
	return pt
}

// Revision configures the revision (branch, tag or commit hash) of the model to load.
// The default is "main".
func (pt *PretrainedConfig) Revision(revision string) *PretrainedConfig {
	pt.revision = revision
	return pt
}

// resolveDir returns the directory holding the tokenizer files.
func (pt *PretrainedConfig) resolveDir() (string, error) {
	tokenizerPath := filepath.Join(pt.name, tokenizerFileName)
	isLocal, err := fsutil.FileExists(tokenizerPath)
	if err != nil {
		return "", err
	}
	if isLocal {
		return pt.name, nil
	}
	return CachedSnapshotDir(pt.cacheDir, pt.name, "model", pt.revision)
}

// Done concludes the configuration of FromPretrainedWith and loads the tokenizer.
//
// The special tokens listed in "special_tokens_map.json" and the tokens in
// "added_tokens.json", if these files are present, are added to the Tokenizer.
func (pt *PretrainedConfig) Done() (*Tokenizer, error) {
	dir, err := pt.resolveDir()
	if err != nil {
		return nil, errors.WithMessagef(err, "tokenizers.FromPretrainedWith(%q)", pt.name)
	}
	t, err := FromFile(filepath.Join(dir, tokenizerFileName))
	if err != nil {
		return nil, errors.WithMessagef(err, "tokenizers.FromPretrainedWith(%q)", pt.name)
	}

	special, err := readSpecialTokensMap(filepath.Join(dir, specialTokensMapFileName))
	if err != nil {
		return nil, err
	}
	t = t.withMissingTokens(special)

	added, err := readAddedTokens(filepath.Join(dir, addedTokensFileName))
	if err != nil {
		return nil, err
	}
	var missing []addedEntry
	for _, e := range added {
		if _, found := t.added.tokenToID(e.token.Content); !found {
			missing = append(missing, e)
		}
	}
	if t.added, err = t.added.withEntries(t.normalizer, missing); err != nil {
		return nil, err
	}
	slog.Debug("loaded pretrained tokenizer", "name", pt.name, "dir", dir,
		"special_tokens", len(special), "added_tokens", len(missing))
	return t, nil
}

// withMissingTokens adds the special tokens not yet among the added tokens.
func (t *Tokenizer) withMissingTokens(special []tokens.AddedToken) *Tokenizer {
	var missing []tokens.AddedToken
	for _, token := range special {
		if _, found := t.added.tokenToID(token.Content); !found {
			missing = append(missing, token)
		}
	}
	if len(missing) == 0 {
		return t
	}
	return t.WithSpecialTokens(missing...)
}

// readOptionalFile returns nil contents if filePath doesn't exist.
func readOptionalFile(filePath string) ([]byte, error) {
	exists, err := fsutil.FileExists(filePath)
	if err != nil || !exists {
		return nil, err
	}
	return fsutil.ReadFile(filePath)
}

// readSpecialTokensMap parses a special_tokens_map.json file: each value is either a
// token content, a token object, or a list of them (e.g. "additional_special_tokens").
func readSpecialTokensMap(filePath string) ([]tokens.AddedToken, error) {
	contents, err := readOptionalFile(filePath)
	if err != nil || contents == nil {
		return nil, err
	}
	var entries map[string]json.RawMessage
	if err := jsonutil.Decode(specialTokensMapFileName, contents, &entries); err != nil {
		return nil, err
	}
	var special []tokens.AddedToken
	var parse func(raw json.RawMessage) error
	parse = func(raw json.RawMessage) error {
		var content string
		if json.Unmarshal(raw, &content) == nil {
			special = append(special, tokens.NewAddedToken(content, true))
			return nil
		}
		var list []json.RawMessage
		if json.Unmarshal(raw, &list) == nil {
			for _, item := range list {
				if err := parse(item); err != nil {
					return err
				}
			}
			return nil
		}
		token := tokens.NewAddedToken("", true)
		if err := jsonutil.Decode(specialTokensMapFileName, raw, &token); err != nil {
			return err
		}
		special = append(special, token.WithSpecial(true))
		return nil
	}
	for _, key := range slices.Sorted(maps.Keys(entries)) {
		raw := entries[key]
		if jsonutil.IsNull(raw) {
			continue
		}
		if err := parse(raw); err != nil {
			return nil, errors.WithMessagef(err, "parsing %q", filePath)
		}
	}
	return special, nil
}

// readAddedTokens parses an added_tokens.json file, mapping token contents to their ids.
func readAddedTokens(filePath string) ([]addedEntry, error) {
	contents, err := readOptionalFile(filePath)
	if err != nil || contents == nil {
		return nil, err
	}
	var ids map[string]uint32
	if err := jsonutil.Decode(addedTokensFileName, contents, &ids); err != nil {
		return nil, errors.WithMessagef(err, "parsing %q", filePath)
	}
	entries := make([]addedEntry, 0, len(ids))
	for content, id := range ids {
		entries = append(entries, addedEntry{token: tokens.NewAddedToken(content, false), id: id})
	}
	slices.SortFunc(entries, func(a, b addedEntry) int { return cmp.Compare(a.id, b.id) })
	return entries, nil
}
