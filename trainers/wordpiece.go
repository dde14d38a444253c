package trainers

import (
	"slices"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/tokens"
)

// WordPiece trains a models.WordPiece. The vocabulary is learned with the BPE algorithm,
// using the continuing subword prefix ("##" by default) on the non-initial characters.
type WordPiece struct {
	BPE
}

var _ Trainer = (*WordPiece)(nil)

// NewWordPiece returns a WordPiece trainer with the default options.
func NewWordPiece() *WordPiece {
	t := &WordPiece{BPE: *NewBPE()}
	t.ContinuingSubwordPrefix = models.DefaultContinuingPrefix
	return t
}

func (*WordPiece) isTrainer() {}

// Train implements Trainer. model must be a *models.WordPiece or nil.
// The unknown token is not required to be in the trained vocabulary: words that can't be
// split then fail to tokenize.
func (t *WordPiece) Train(model models.Model) (models.Model, []tokens.AddedToken, error) {
	config := models.DefaultWordPieceConfig()
	switch m := model.(type) {
	case nil:
	case *models.WordPiece:
		config = m.Config()
	default:
		return nil, nil, errs.Errorf(errs.ErrTraining, "WordPiece trainer can't train a %T model", model)
	}
	vocab, _, err := t.train()
	if err != nil {
		return nil, nil, err
	}
	config.ContinuingSubwordPrefix = t.ContinuingSubwordPrefix
	wp, err := models.NewWordPiece(vocab, config)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrTraining, err, "building the trained WordPiece model")
	}
	return wp, slices.Clone(t.SpecialTokens), nil
}
