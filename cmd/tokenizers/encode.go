package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gomlx/go-tokenizers"
	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/jsonutil"
	"github.com/gomlx/go-tokenizers/tokens"
	"github.com/spf13/cobra"
)

func newEncodeCmd() *cobra.Command {
	var pair string

	cmd := &cobra.Command{
		Use:   "encode [text...]",
		Short: "Encode texts given as arguments, or one per line of the standard input",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := loadTokenizer(activeCfg.Tokenizer)
			if err != nil {
				return err
			}
			if t, err = applyEncodeConfig(t, activeCfg.Encode); err != nil {
				return err
			}
			texts := args
			if len(texts) == 0 {
				if texts, err = readLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			inputs := make([]tokenizers.EncodeInput, len(texts))
			for ii, text := range texts {
				if pair != "" {
					inputs[ii] = tokenizers.Pair(text, pair)
				} else {
					inputs[ii] = tokenizers.Single(text)
				}
			}
			encodings, err := t.EncodeBatch(inputs, activeCfg.Encode.AddSpecialTokens)
			if err != nil {
				return err
			}
			return writeEncodings(cmd.OutOrStdout(), encodings, activeCfg.Encode.Output)
		},
	}

	cmd.Flags().StringVar(&pair, "pair", "", "Second sequence, encoded as a pair with each text")
	return cmd
}

// encodingJSON is the output of "encode --encode-output=json", one object per line.
type encodingJSON struct {
	IDs               []uint32         `json:"ids"`
	TypeIDs           []uint32         `json:"type_ids"`
	Tokens            []string         `json:"tokens"`
	Offsets           []tokens.Offsets `json:"offsets"`
	WordIDs           []int            `json:"word_ids"`
	SpecialTokensMask []uint32         `json:"special_tokens_mask"`
	AttentionMask     []uint32         `json:"attention_mask"`
	Overflowing       int              `json:"overflowing"`
}

func writeEncodings(w io.Writer, encodings []*tokenizers.Encoding, format string) error {
	for _, enc := range encodings {
		var line string
		switch strings.ToLower(format) {
		case "ids":
			ids := make([]string, len(enc.IDs))
			for ii, id := range enc.IDs {
				ids[ii] = strconv.FormatUint(uint64(id), 10)
			}
			line = strings.Join(ids, " ")
		case "json":
			data, err := jsonutil.Marshal(encodingJSON{
				IDs:               enc.IDs,
				TypeIDs:           enc.TypeIDs,
				Tokens:            enc.Tokens,
				Offsets:           enc.Offsets,
				WordIDs:           enc.WordIDs,
				SpecialTokensMask: enc.SpecialTokensMask,
				AttentionMask:     enc.AttentionMask,
				Overflowing:       len(enc.Overflowing),
			})
			if err != nil {
				return errs.Wrap(errs.ErrInternal, err, "serializing encoding")
			}
			line = string(data)
		default:
			line = strings.Join(enc.Tokens, " ")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return errs.Wrap(errs.ErrIO, err, "writing output")
		}
	}
	return nil
}

// readLines returns the non-empty lines of r.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "reading standard input")
	}
	return lines, nil
}
