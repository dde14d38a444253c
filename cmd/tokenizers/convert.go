package main

import (
	"log/slog"

	"github.com/gomlx/go-tokenizers"
	"github.com/spf13/cobra"
)

func newConvertSPMCmd() *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "convert-spm input.model output.json",
		Short: "Convert a SentencePiece unigram model to the tokenizer.json format",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			t, err := tokenizers.FromSentencePieceFile(args[0])
			if err != nil {
				return err
			}
			if err := t.Save(args[1], pretty); err != nil {
				return err
			}
			slog.Info("converted SentencePiece model", "input", args[0], "output", args[1], "vocab_size", t.GetVocabSize(true))
			return nil
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", true, "Indent the saved JSON")
	return cmd
}
