package tokens

// AddedToken is a token added on top of a Model's vocabulary (typically special tokens like "[CLS]").
//
// The flags control how it is matched in the input text:
//
//   - SingleWord: only match if it is not part of a larger word.
//   - LStrip, RStrip: also consume the whitespace to the left (right) of the match.
//   - Normalized: match against the normalized text, instead of the raw input.
//   - Special: it is a special token, skipped when decoding with skipSpecialTokens.
type AddedToken struct {
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	LStrip     bool   `json:"lstrip"`
	RStrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

// NewAddedToken creates an AddedToken for content. Special tokens are by default not
// normalized, while regular added tokens are.
func NewAddedToken(content string, special bool) AddedToken {
	return AddedToken{Content: content, Special: special, Normalized: !special}
}

// WithSingleWord returns a copy with SingleWord set to value.
func (t AddedToken) WithSingleWord(value bool) AddedToken {
	t.SingleWord = value
	return t
}

// WithLStrip returns a copy with LStrip set to value.
func (t AddedToken) WithLStrip(value bool) AddedToken {
	t.LStrip = value
	return t
}

// WithRStrip returns a copy with RStrip set to value.
func (t AddedToken) WithRStrip(value bool) AddedToken {
	t.RStrip = value
	return t
}

// WithNormalized returns a copy with Normalized set to value.
func (t AddedToken) WithNormalized(value bool) AddedToken {
	t.Normalized = value
	return t
}

// WithSpecial returns a copy with Special set to value.
func (t AddedToken) WithSpecial(value bool) AddedToken {
	t.Special = value
	return t
}

// SpecialTokens creates special AddedTokens for each of the contents.
func SpecialTokens(contents ...string) []AddedToken {
	added := make([]AddedToken, 0, len(contents))
	for _, content := range contents {
		added = append(added, NewAddedToken(content, true))
	}
	return added
}
