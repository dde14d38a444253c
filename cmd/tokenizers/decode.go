package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gomlx/go-tokenizers"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	var (
		skipSpecialTokens bool
		stream            bool
	)

	cmd := &cobra.Command{
		Use:   "decode [id...]",
		Short: "Decode token ids given as arguments, or a sequence per line of the standard input",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTokenizer(activeCfg.Tokenizer)
			if err != nil {
				return err
			}
			sequences := [][]string{args}
			if len(args) == 0 {
				lines, err := readLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
				sequences = sequences[:0]
				for _, line := range lines {
					sequences = append(sequences, strings.Fields(line))
				}
			}
			out := cmd.OutOrStdout()
			for _, fields := range sequences {
				ids, err := parseIDs(fields)
				if err != nil {
					return err
				}
				if stream {
					err = decodeStreaming(out, t, ids, skipSpecialTokens)
				} else {
					var text string
					if text, err = t.Decode(ids, skipSpecialTokens); err == nil {
						_, err = fmt.Fprintln(out, text)
					}
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipSpecialTokens, "skip-special-tokens", true, "Don't output the special tokens")
	cmd.Flags().BoolVar(&stream, "stream", false, "Decode one id at a time, writing the text as soon as it is complete")
	return cmd
}

// decodeStreaming decodes ids with a tokenizers.DecodeStream, as a model generating them would.
func decodeStreaming(w io.Writer, t *tokenizers.Tokenizer, ids []uint32, skipSpecialTokens bool) error {
	stream := t.NewDecodeStream(skipSpecialTokens)
	for _, id := range ids {
		chunk, ready, err := stream.Step(id)
		if err != nil {
			return err
		}
		if ready {
			if _, err := io.WriteString(w, chunk); err != nil {
				return errs.Wrap(errs.ErrIO, err, "writing output")
			}
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

func parseIDs(fields []string) ([]uint32, error) {
	ids := make([]uint32, len(fields))
	for ii, field := range fields {
		id, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidInput, err, "invalid token id %q", field)
		}
		ids[ii] = uint32(id)
	}
	return ids, nil
}
