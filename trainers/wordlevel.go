package trainers

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/tokens"
)

// DefaultWordLevelUnkToken is the unknown token used when training without a template model.
const DefaultWordLevelUnkToken = "<unk>"

// WordLevel trains a models.WordLevel: the vocabulary is the special tokens followed by
// the most frequent words, ties broken alphabetically.
type WordLevel struct {
	VocabSize     int
	MinFrequency  uint64
	SpecialTokens []tokens.AddedToken
	ShowProgress  bool

	wordCounter
}

var _ Trainer = (*WordLevel)(nil)

// NewWordLevel returns a WordLevel trainer with the default options.
func NewWordLevel() *WordLevel {
	return &WordLevel{VocabSize: DefaultVocabSize, ShowProgress: true}
}

func (*WordLevel) isTrainer() {}

// ShouldShowProgress implements Trainer.
func (t *WordLevel) ShouldShowProgress() bool { return t.ShowProgress }

// Train implements Trainer. model must be a *models.WordLevel or nil.
func (t *WordLevel) Train(model models.Model) (models.Model, []tokens.AddedToken, error) {
	unkToken := DefaultWordLevelUnkToken
	switch m := model.(type) {
	case nil:
	case *models.WordLevel:
		unkToken = m.UnkToken()
	default:
		return nil, nil, errs.Errorf(errs.ErrTraining, "WordLevel trainer can't train a %T model", model)
	}
	words, err := t.sortedWords()
	if err != nil {
		return nil, nil, err
	}
	slices.SortStableFunc(words, func(a, b wordCount) int {
		return cmp.Compare(b.count, a.count)
	})

	vocab, ordered := specialTokensVocab(t.SpecialTokens)
	bar := newProgressBar(t.ShowProgress, len(words), "Build vocabulary")
	for _, wc := range words {
		if len(ordered) >= t.VocabSize || wc.count < t.MinFrequency {
			break
		}
		progressAdd(bar, 1)
		if _, found := vocab[wc.word]; found {
			continue
		}
		vocab[wc.word] = uint32(len(ordered))
		ordered = append(ordered, wc.word)
	}
	progressFinish(bar)
	slog.Debug("WordLevel trained", "vocab_size", len(vocab), "words", len(words))

	wl, err := models.NewWordLevel(vocab, unkToken)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrTraining, err, "building the trained WordLevel model")
	}
	return wl, slices.Clone(t.SpecialTokens), nil
}
