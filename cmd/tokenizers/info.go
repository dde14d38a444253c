package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the configured tokenizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := loadTokenizer(activeCfg.Tokenizer)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprint(out, t.String())
			_, _ = fmt.Fprintf(out, "Vocabulary size: %d (%d with added tokens)\n", t.GetVocabSize(false), t.GetVocabSize(true))
			_, err = fmt.Fprintf(out, "Special tokens: %s\n", strings.Join(t.SpecialTokens(), " "))
			return err
		},
	}
}
