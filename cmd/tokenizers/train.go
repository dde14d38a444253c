package main

import (
	"log/slog"
	"strings"

	"github.com/gomlx/go-tokenizers"
	"github.com/gomlx/go-tokenizers/decoders"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/config"
	"github.com/gomlx/go-tokenizers/models"
	"github.com/gomlx/go-tokenizers/normalizers"
	"github.com/gomlx/go-tokenizers/pretokenizers"
	"github.com/gomlx/go-tokenizers/processors"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/gomlx/go-tokenizers/trainers"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var (
		output string
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "train --output tokenizer.json file...",
		Short: "Train a new tokenizer on text files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, trainer, err := newTrainingSetup(activeCfg.Train)
			if err != nil {
				return err
			}
			trained, err := base.TrainFromFiles(trainer, args...)
			if err != nil {
				return err
			}
			if err := trained.Save(output, pretty); err != nil {
				return err
			}
			slog.Info("trained tokenizer", "model", activeCfg.Train.Model, "vocab_size", trained.GetVocabSize(true), "output", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "tokenizer.json", "Where to save the trained tokenizer")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "Indent the saved JSON")
	return cmd
}

// newTrainingSetup returns the untrained tokenizer pipeline and the trainer for the model
// configured, following the usual pipeline of each model type:
//
//   - bpe: byte-level, as GPT-2.
//   - wordpiece: Bert normalization and pre-tokenization.
//   - wordlevel: whitespace and punctuation split.
//   - unigram: Metaspace, as SentencePiece.
func newTrainingSetup(cfg config.TrainConfig) (*tokenizers.Tokenizer, trainers.Trainer, error) {
	special := tokens.SpecialTokens(cfg.SpecialTokens...)
	unkVocab := models.Vocab{}
	if cfg.UnkToken != "" {
		unkVocab[cfg.UnkToken] = 0
	}

	var (
		t       *tokenizers.Tokenizer
		trainer trainers.Trainer
	)
	switch strings.ToLower(cfg.Model) {
	case "bpe":
		// Byte-level BPE never needs an unknown token.
		model, err := models.NewBPE(nil, nil, models.DefaultBPEConfig())
		if err != nil {
			return nil, nil, err
		}
		preTokenizer := pretokenizers.NewByteLevel()
		t = tokenizers.New(model).
			WithPreTokenizer(preTokenizer).
			WithPostProcessor(processors.NewByteLevel()).
			WithDecoder(decoders.NewByteLevel())
		if cfg.Lowercase {
			t = t.WithNormalizer(normalizers.Lowercase{})
		}
		bpe := trainers.NewBPE()
		bpe.VocabSize, bpe.MinFrequency, bpe.SpecialTokens, bpe.ShowProgress = cfg.VocabSize, cfg.MinFrequency, special, cfg.ShowProgress
		bpe.InitialAlphabet = preTokenizer.Alphabet()
		trainer = bpe

	case "wordpiece":
		wpConfig := models.DefaultWordPieceConfig()
		wpConfig.UnkToken = cfg.UnkToken
		model, err := models.NewWordPiece(unkVocab, wpConfig)
		if err != nil {
			return nil, nil, err
		}
		normalizer := normalizers.NewBert()
		normalizer.Lowercase = cfg.Lowercase
		t = tokenizers.New(model).
			WithNormalizer(normalizer).
			WithPreTokenizer(pretokenizers.Bert{}).
			WithDecoder(decoders.NewWordPiece())
		wp := trainers.NewWordPiece()
		wp.VocabSize, wp.MinFrequency, wp.SpecialTokens, wp.ShowProgress = cfg.VocabSize, cfg.MinFrequency, special, cfg.ShowProgress
		trainer = wp

	case "wordlevel":
		model, err := models.NewWordLevel(unkVocab, cfg.UnkToken)
		if err != nil {
			return nil, nil, err
		}
		t = tokenizers.New(model).WithPreTokenizer(pretokenizers.Whitespace{})
		if cfg.Lowercase {
			t = t.WithNormalizer(normalizers.Lowercase{})
		}
		wl := trainers.NewWordLevel()
		wl.VocabSize, wl.MinFrequency, wl.SpecialTokens, wl.ShowProgress = cfg.VocabSize, cfg.MinFrequency, special, cfg.ShowProgress
		trainer = wl

	case "unigram":
		model, err := models.NewUnigram(nil, -1, false)
		if err != nil {
			return nil, nil, err
		}
		t = tokenizers.New(model).
			WithPreTokenizer(pretokenizers.NewMetaspace()).
			WithDecoder(decoders.NewMetaspace())
		if cfg.Lowercase {
			t = t.WithNormalizer(normalizers.Lowercase{})
		}
		ug := trainers.NewUnigram()
		ug.VocabSize, ug.SpecialTokens, ug.ShowProgress, ug.UnkToken = cfg.VocabSize, special, cfg.ShowProgress, cfg.UnkToken
		trainer = ug

	default:
		return nil, nil, errs.Errorf(errs.ErrConfig, "unknown model type %q to train", cfg.Model)
	}
	return t, trainer, nil
}
