package tokenizers

import (
	"strings"

	"github.com/gomlx/go-tokenizers/decoders"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/pkg/errors"
	conciter "github.com/sourcegraph/conc/iter"
)

// Decode is the reverse of encode, and converts the list of token ids back to a "sentence" (string).
//
// Ids unknown to both the added tokens and the model are skipped. If skipSpecialTokens is
// true, special added tokens are skipped too.
func (t *Tokenizer) Decode(ids []uint32, skipSpecialTokens bool) (string, error) {
	toks := make([]string, 0, len(ids))
	for _, id := range ids {
		token, found := t.IDToToken(id)
		if !found {
			continue
		}
		if skipSpecialTokens && t.added.isSpecial(token) {
			continue
		}
		toks = append(toks, token)
	}
	if t.decoder == nil {
		return strings.Join(toks, " "), nil
	}
	text, err := decoders.Decode(t.decoder, toks)
	if err != nil {
		return "", errors.WithMessage(err, "decoding")
	}
	return text, nil
}

// DecodeBatch decodes each list of ids in parallel.
func (t *Tokenizer) DecodeBatch(batch [][]uint32, skipSpecialTokens bool) ([]string, error) {
	return conciter.MapErr(batch, func(ids *[]uint32) (string, error) {
		return t.Decode(*ids, skipSpecialTokens)
	})
}

// TokenToID returns the id of the token, looking first at the added tokens, and then at the model.
func (t *Tokenizer) TokenToID(token string) (uint32, bool) {
	if id, found := t.added.tokenToID(token); found {
		return id, true
	}
	return t.model.TokenToID(token)
}

// IDToToken returns the token with the given id, looking first at the added tokens, and then at the model.
func (t *Tokenizer) IDToToken(id uint32) (string, bool) {
	if token, found := t.added.idToToken(id); found {
		return token, true
	}
	return t.model.IDToToken(id)
}

// GetVocab returns the vocabulary of the model, and optionally the added tokens.
func (t *Tokenizer) GetVocab(withAddedTokens bool) map[string]uint32 {
	vocab := t.model.GetVocab()
	if withAddedTokens {
		for _, e := range t.added.entries {
			vocab[e.token.Content] = e.id
		}
	}
	return vocab
}

// GetVocabSize returns the size of the vocabulary of the model, and optionally counts the
// added tokens that are not part of the model vocabulary.
func (t *Tokenizer) GetVocabSize(withAddedTokens bool) int {
	size := t.model.GetVocabSize()
	if withAddedTokens {
		for _, e := range t.added.entries {
			if _, found := t.model.IDToToken(e.id); !found {
				size++
			}
		}
	}
	return size
}

// AddedTokens returns the added tokens, indexed by id.
func (t *Tokenizer) AddedTokens() map[uint32]tokens.AddedToken {
	added := make(map[uint32]tokens.AddedToken, t.added.len())
	for _, e := range t.added.entries {
		added[e.id] = e.token
	}
	return added
}

// SpecialTokens returns the contents of the special added tokens, sorted by id.
func (t *Tokenizer) SpecialTokens() []string {
	var special []string
	for _, e := range t.added.sorted() {
		if e.token.Special {
			special = append(special, e.token.Content)
		}
	}
	return special
}
