package tokenizers

import (
	"bufio"
	"iter"
	"log/slog"
	"os"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/gomlx/go-tokenizers/trainers"
	"github.com/pkg/errors"
	progressbar "github.com/schollz/progressbar/v3"
)

// maxLineLength is the longest line read by TrainFromFiles.
const maxLineLength = 16 * 1024 * 1024

// Train feeds the lines to the trainer, split into words with the normalizer and
// pre-tokenizer of the Tokenizer, and returns a copy of the Tokenizer using the trained
// model. The special tokens of the trainer are added to it.
//
// The current model is only used as a template for the options that are not learned: it
// is not modified.
func (t *Tokenizer) Train(trainer trainers.Trainer, lines iter.Seq[string]) (*Tokenizer, error) {
	if err := trainer.Feed(lines, t.wordsOf); err != nil {
		return nil, errors.WithMessage(err, "feeding trainer")
	}
	return t.trainFed(trainer)
}

// trainFed trains the model from what the trainer was fed so far.
func (t *Tokenizer) trainFed(trainer trainers.Trainer) (*Tokenizer, error) {
	model, special, err := trainer.Train(t.model)
	if err != nil {
		return nil, err
	}
	return t.WithModel(model).WithSpecialTokens(special...), nil
}

// TrainFromFiles is like Train, reading the lines of the given text files.
func (t *Tokenizer) TrainFromFiles(trainer trainers.Trainer, filePaths ...string) (*Tokenizer, error) {
	var bar *progressbar.ProgressBar
	if trainer.ShouldShowProgress() {
		var total int64
		for _, filePath := range filePaths {
			info, err := os.Stat(filePath)
			if err != nil {
				return nil, errs.Wrap(errs.ErrIO, err, "can't read training file %q", filePath)
			}
			total += info.Size()
		}
		bar = progressbar.DefaultBytes(total, "reading files")
	}
	var readErr error
	if err := trainer.Feed(fileLines(filePaths, bar, &readErr), t.wordsOf); err != nil {
		return nil, errors.WithMessage(err, "feeding trainer")
	}
	if readErr != nil {
		return nil, readErr
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return t.trainFed(trainer)
}

// fileLines yields the lines of the files, without the line endings. It stops at the first
// error, which is stored in err.
func fileLines(filePaths []string, bar *progressbar.ProgressBar, err *error) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, filePath := range filePaths {
			f, openErr := os.Open(filePath)
			if openErr != nil {
				*err = errs.Wrap(errs.ErrIO, openErr, "can't read training file %q", filePath)
				return
			}
			slog.Debug("reading training file", "path", filePath)
			scanner := bufio.NewScanner(f)
			scanner.Buffer(nil, maxLineLength)
			stopped := false
			for scanner.Scan() {
				if bar != nil {
					_ = bar.Add(len(scanner.Bytes()) + 1)
				}
				if !yield(scanner.Text()) {
					stopped = true
					break
				}
			}
			if scanErr := scanner.Err(); scanErr != nil && !stopped {
				*err = errs.Wrap(errs.ErrIO, scanErr, "reading training file %q", filePath)
			}
			_ = f.Close()
			if stopped || *err != nil {
				return
			}
		}
	}
}

// wordsOf normalizes and pre-tokenizes line, returning the words the model is trained on.
func (t *Tokenizer) wordsOf(line string) ([]string, error) {
	n := normalizers.New(line)
	if t.normalizer != nil {
		if err := t.normalizer.Normalize(n); err != nil {
			return nil, err
		}
	}
	p := pretokenizers.FromNormalized(n)
	if t.preTokenizer != nil {
		if err := t.preTokenizer.PreTokenize(p); err != nil {
			return nil, err
		}
	}
	pieces := p.GetSplits()
	words := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		if piece.Value != "" {
			words = append(words, piece.Value)
		}
	}
	return words, nil
}
