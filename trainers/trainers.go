// Package trainers builds the vocabulary of a model from a corpus.
//
// A Trainer is first fed with the lines of the corpus, which it splits into words (usually
// with the normalizer and pre-tokenizer of a Tokenizer) and counts. Train then builds a new
// model from the word counts. The model given to Train is only used as a template for the
// options that are not learned, e.g. BPE dropout: it is never modified.
//
// The set of trainers is closed: BPE, WordPiece, WordLevel and Unigram.
package trainers

import (
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/tokens"
	progressbar "github.com/schollz/progressbar/v3"
	conciter "github.com/sourcegraph/conc/iter"
)

// Trainer accumulates word counts from a corpus and trains a model from them.
// Trainers are not safe for concurrent use.
type Trainer interface {
	// Feed splits each line into words with process, and counts them. It can be called
	// multiple times. A nil process splits lines on whitespace.
	Feed(lines iter.Seq[string], process func(line string) ([]string, error)) error

	// Train returns a new model trained on the words fed so far, and the special tokens
	// to add to the tokenizer. model (it can be nil) is used as a template for the
	// options that are not learned.
	Train(model models.Model) (models.Model, []tokens.AddedToken, error)

	// ShouldShowProgress returns whether the trainer displays progress bars.
	ShouldShowProgress() bool

	// isTrainer restricts implementations to this package.
	isTrainer()
}

// feedBatchSize is the number of lines processed in parallel by Feed.
const feedBatchSize = 1024

// SplitWhitespace is the default process function of Feed.
func SplitWhitespace(line string) ([]string, error) {
	return strings.Fields(line), nil
}

// wordCounter implements Trainer.Feed, and is embedded by all trainers.
type wordCounter struct {
	counts map[string]uint64
}

// Feed implements Trainer.
func (c *wordCounter) Feed(lines iter.Seq[string], process func(line string) ([]string, error)) error {
	if process == nil {
		process = SplitWhitespace
	}
	if c.counts == nil {
		c.counts = make(map[string]uint64)
	}
	batch := make([]string, 0, feedBatchSize)
	numLines := 0
	flush := func() error {
		words, err := conciter.MapErr(batch, func(line *string) ([]string, error) {
			return process(*line)
		})
		if err != nil {
			return err
		}
		for _, lineWords := range words {
			for _, word := range lineWords {
				c.counts[word]++
			}
		}
		numLines += len(batch)
		batch = batch[:0]
		return nil
	}
	for line := range lines {
		batch = append(batch, line)
		if len(batch) == feedBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	slog.Debug("trainer fed", "lines", numLines, "distinct_words", len(c.counts))
	return nil
}

// wordCount is a word of the corpus and its number of occurrences.
type wordCount struct {
	word  string
	count uint64
}

// sortedWords returns the words fed so far, sorted, so training is deterministic.
// It fails with errs.ErrTraining if there are none.
func (c *wordCounter) sortedWords() ([]wordCount, error) {
	if len(c.counts) == 0 {
		return nil, errs.Errorf(errs.ErrTraining, "no words to train on: the corpus is empty")
	}
	words := slices.Sorted(maps.Keys(c.counts))
	result := make([]wordCount, len(words))
	for ii, word := range words {
		result[ii] = wordCount{word: word, count: c.counts[word]}
	}
	return result, nil
}

// specialTokensVocab returns a vocabulary with the special tokens, in order.
func specialTokensVocab(specialTokens []tokens.AddedToken) (models.Vocab, []string) {
	vocab := make(models.Vocab)
	var ordered []string
	for _, st := range specialTokens {
		if _, found := vocab[st.Content]; found {
			continue
		}
		vocab[st.Content] = uint32(len(ordered))
		ordered = append(ordered, st.Content)
	}
	return vocab, ordered
}

// newProgressBar returns a progress bar writing to stderr, or nil if show is false.
func newProgressBar(show bool, total int, description string) *progressbar.ProgressBar {
	if !show {
		return nil
	}
	return progressbar.Default(int64(total), description)
}

func progressAdd(bar *progressbar.ProgressBar, n int) {
	if bar != nil && n > 0 {
		_ = bar.Add(n)
	}
}

func progressFinish(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
